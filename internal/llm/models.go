// Package llm labels documents through an OpenAI-compatible
// chat-completions endpoint, with automatic escalation to a stronger model
// for sensitive or low-confidence results.
package llm

// LabelOutput is the structured classification the model returns.
type LabelOutput struct {
	DocType           string   `json:"doc_type"`
	Title             string   `json:"title"`
	CanonicalFilename string   `json:"canonical_filename"`
	SuggestedTags     []string `json:"suggested_tags"`
	TargetGroupPath   string   `json:"target_group_path"`
	Date              *string  `json:"date"`
	Issuer            *string  `json:"issuer"`
	Source            *string  `json:"source"`
	Confidence        float64  `json:"confidence"`
	Why               string   `json:"why"`
}

// LabelingContext is everything the prompt knows about one document.
type LabelingContext struct {
	Filename      string
	ParentFolders []string
	ExtractedText string // empty when no sidecar exists
	FileSize      int64
	MimeType      string
	Mtime         int64
	DocTypes      []string
	Tags          []string
	Taxonomy      []string
	FamilyMembers []string
}
