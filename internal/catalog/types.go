package catalog

// Run statuses. A run's completed_at is set exactly when its status leaves
// "running".
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run types, one per pipeline phase.
const (
	RunTypeScan    = "scan"
	RunTypeExtract = "extract"
	RunTypeLabel   = "label"
	RunTypePlan    = "plan"
)

// Extraction statuses.
const (
	ExtractionSuccess = "success"
	ExtractionFailed  = "failed"
	ExtractionSkipped = "skipped"
)

type Run struct {
	ID          int64
	RunType     string
	Config      string // JSON snapshot of the config that produced this run
	StartedAt   int64
	CompletedAt *int64
	Status      string
	Error       *string
}

type File struct {
	ID        int64
	Path      string
	SHA256    string
	Size      int64
	MimeType  *string
	Mtime     int64
	Ctime     int64
	ScanRunID int64
	CreatedAt int64
}

type Extraction struct {
	ID              int64
	FileID          int64
	Method          string
	Status          string
	OutputPath      *string
	Error           *string
	ExtractionRunID int64
	CreatedAt       int64
}

type Label struct {
	ID                int64
	FileID            int64
	DocType           string
	Title             string
	CanonicalFilename string
	SuggestedTags     []string
	TargetGroupPath   string
	Date              *string
	Issuer            *string
	Source            *string
	Confidence        float64
	Why               string
	ModelName         string
	PromptHash        string
	LabelingRunID     int64
	CreatedAt         int64
}

type Plan struct {
	ID             int64
	FileID         int64
	LabelID        *int64
	Operation      string // "copy" or "hardlink"
	SourcePath     string
	TargetPath     string
	TargetFilename string
	Tags           []string
	NeedsReview    bool
	PlanRunID      int64
	CreatedAt      int64
}

// ExtractionTask is the slim row shape the extraction work queue yields;
// everything a worker needs and nothing more.
type ExtractionTask struct {
	FileID int64
	Path   string
	SHA256 string
}

// LabelingCandidate is a file with a successful extraction and no label yet.
// ExtractionPath may point at a sidecar that no longer exists; readers
// tolerate that.
type LabelingCandidate struct {
	FileID           int64
	Path             string
	SHA256           string
	Size             int64
	MimeType         *string
	Mtime            int64
	ExtractionPath   *string
	ExtractionMethod string
}
