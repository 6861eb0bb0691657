package lucien

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jward/lucien/internal/catalog"
)

// needsReviewThreshold flags low-confidence labels for manual review.
const needsReviewThreshold = 0.5

// Planner turns a labeling run's labels into concrete placement rows.
type Planner struct {
	cat *catalog.Catalog
}

func NewPlanner(cat *catalog.Catalog) *Planner {
	return &Planner{cat: cat}
}

// PlanStats summarizes one planning run.
type PlanStats struct {
	Planned     int
	NeedsReview int
	Errors      int
}

// needsReview flags labels the staging mirror should not trust blindly.
func needsReview(l *catalog.Label) bool {
	if l.Confidence < needsReviewThreshold {
		return true
	}
	return l.DocType == "other" || l.DocType == "uncategorized"
}

// BuildPlan computes a plan row for every label in labelRunID and stores
// them under planRunID. The target filename is the canonical filename with
// the source file's original extension appended.
func (p *Planner) BuildPlan(labelRunID, planRunID int64, mode string) (*PlanStats, []*catalog.Plan, error) {
	labels, err := p.cat.LabelsByRun(labelRunID)
	if err != nil {
		return nil, nil, fmt.Errorf("labels for run %d: %w", labelRunID, err)
	}

	stats := &PlanStats{}
	var plans []*catalog.Plan
	for _, l := range labels {
		f, err := p.cat.FileByID(l.FileID)
		if err != nil {
			return nil, nil, fmt.Errorf("file %d: %w", l.FileID, err)
		}
		if f == nil {
			stats.Errors++
			continue
		}

		labelID := l.ID
		plan := &catalog.Plan{
			FileID:         l.FileID,
			LabelID:        &labelID,
			Operation:      mode,
			SourcePath:     f.Path,
			TargetPath:     l.TargetGroupPath,
			TargetFilename: l.CanonicalFilename + filepath.Ext(f.Path),
			Tags:           l.SuggestedTags,
			NeedsReview:    needsReview(l),
			PlanRunID:      planRunID,
		}
		if _, err := p.cat.InsertPlan(plan); err != nil {
			return nil, nil, fmt.Errorf("insert plan for %s: %w", f.Path, err)
		}
		plans = append(plans, plan)
		stats.Planned++
		if plan.NeedsReview {
			stats.NeedsReview++
		}
	}
	return stats, plans, nil
}

// ExportJSONL writes plans as one JSON object per line for out-of-band
// review tooling.
func ExportJSONL(plans []*catalog.Plan, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, p := range plans {
		if err := enc.Encode(planRecord(p)); err != nil {
			return fmt.Errorf("encode plan row: %w", err)
		}
	}
	return nil
}

// ExportCSV writes the spreadsheet view of the plan.
func ExportCSV(plans []*catalog.Plan, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"source_path", "target_path", "target_filename", "operation", "tags", "needs_review"}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, p := range plans {
		tags, _ := json.Marshal(p.Tags)
		row := []string{
			p.SourcePath, p.TargetPath, p.TargetFilename, p.Operation,
			string(tags), strconv.FormatBool(p.NeedsReview),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

type planJSON struct {
	SourcePath     string   `json:"source_path"`
	TargetPath     string   `json:"target_path"`
	TargetFilename string   `json:"target_filename"`
	Operation      string   `json:"operation"`
	Tags           []string `json:"tags"`
	NeedsReview    bool     `json:"needs_review"`
}

func planRecord(p *catalog.Plan) planJSON {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return planJSON{
		SourcePath:     p.SourcePath,
		TargetPath:     p.TargetPath,
		TargetFilename: p.TargetFilename,
		Operation:      p.Operation,
		Tags:           tags,
		NeedsReview:    p.NeedsReview,
	}
}
