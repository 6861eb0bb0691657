package llm

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jward/lucien/internal/catalog"
	"github.com/jward/lucien/internal/extract"
)

// Vocabularies are the controlled lists the prompt offers the model.
type Vocabularies struct {
	DocTypes      []string
	Tags          []string
	Taxonomy      []string
	FamilyMembers []string
}

// LabelOutcome reports one labeled file for progress display.
type LabelOutcome struct {
	Path      string
	Label     *LabelOutput
	Escalated bool
	Err       error
}

// Labeler is the sequential labeling loop. One LLM request in flight at a
// time; the endpoint is the bottleneck, not this loop.
type Labeler struct {
	cat      *catalog.Catalog
	client   *Client
	store    *extract.SidecarStore
	vocab    Vocabularies
	version  string
	Progress func(LabelOutcome) // optional
}

func NewLabeler(cat *catalog.Catalog, client *Client, store *extract.SidecarStore, vocab Vocabularies) *Labeler {
	return &Labeler{
		cat:     cat,
		client:  client,
		store:   store,
		vocab:   vocab,
		version: PromptVersion(),
	}
}

// buildContext assembles the prompt context for one candidate: filename,
// the last five parent directory names, and the decompressed sidecar text
// when one exists.
func (l *Labeler) buildContext(cand *catalog.LabelingCandidate) LabelingContext {
	dir := filepath.Dir(cand.Path)
	parts := strings.Split(filepath.ToSlash(dir), "/")
	var parents []string
	for _, p := range parts {
		if p != "" {
			parents = append(parents, p)
		}
	}
	if len(parents) > 5 {
		parents = parents[len(parents)-5:]
	}

	var text string
	if cand.ExtractionPath != nil {
		if s, ok, err := l.store.Read(*cand.ExtractionPath); err == nil && ok {
			text = s
		}
	}

	mime := ""
	if cand.MimeType != nil {
		mime = *cand.MimeType
	}

	return LabelingContext{
		Filename:      filepath.Base(cand.Path),
		ParentFolders: parents,
		ExtractedText: text,
		FileSize:      cand.Size,
		MimeType:      mime,
		Mtime:         cand.Mtime,
		DocTypes:      l.vocab.DocTypes,
		Tags:          l.vocab.Tags,
		Taxonomy:      l.vocab.Taxonomy,
		FamilyMembers: l.vocab.FamilyMembers,
	}
}

// LabelFile classifies one candidate and persists the label under runID.
func (l *Labeler) LabelFile(ctx context.Context, cand *catalog.LabelingCandidate, runID int64) (*LabelOutput, bool, error) {
	lctx := l.buildContext(cand)
	label, escalated, err := l.client.LabelWithEscalation(ctx, lctx)
	if err != nil {
		return nil, false, err
	}

	model := l.client.cfg.DefaultModel
	if escalated {
		model = l.client.cfg.EscalationModel
	}

	_, err = l.cat.RecordLabel(&catalog.Label{
		FileID:            cand.FileID,
		LabelingRunID:     runID,
		DocType:           label.DocType,
		Title:             label.Title,
		CanonicalFilename: label.CanonicalFilename,
		SuggestedTags:     label.SuggestedTags,
		TargetGroupPath:   label.TargetGroupPath,
		Date:              label.Date,
		Issuer:            label.Issuer,
		Source:            label.Source,
		Confidence:        label.Confidence,
		Why:               label.Why,
		ModelName:         model,
		PromptHash:        l.version,
	})
	if err != nil {
		return nil, false, fmt.Errorf("record label for %s: %w", cand.Path, err)
	}
	return label, escalated, nil
}

// RunStats summarizes a labeling run.
type RunStats struct {
	Labeled   int
	Escalated int
	Errors    int
}

// Run labels every candidate in the work queue. Per-file errors are
// counted, reported through Progress, and never abort the run.
func (l *Labeler) Run(ctx context.Context, runID int64, force bool, limit int) (*RunStats, error) {
	cands, err := l.cat.FilesNeedingLabeling(force, limit)
	if err != nil {
		return nil, fmt.Errorf("labeling queue: %w", err)
	}

	stats := &RunStats{}
	for _, cand := range cands {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		label, escalated, err := l.LabelFile(ctx, cand, runID)
		if err != nil {
			stats.Errors++
		} else {
			stats.Labeled++
			if escalated {
				stats.Escalated++
			}
		}
		if l.Progress != nil {
			l.Progress(LabelOutcome{Path: cand.Path, Label: label, Escalated: escalated, Err: err})
		}
	}
	return stats, nil
}
