// Package extract recovers plain text from archived documents. A registry of
// format-specific extractors is tried in priority order per file; the first
// success wins and its text lands in a gzip sidecar addressed by the file's
// content digest.
package extract

import (
	"context"
	"path/filepath"
	"strings"
)

// Result statuses mirror the extraction rows in the catalog.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Result is the outcome of one extraction attempt.
type Result struct {
	Status     string
	Method     string
	Text       string
	OutputPath string
	Error      string
	Metadata   map[string]string
}

// Success reports whether the attempt produced text.
func (r Result) Success() bool {
	return r.Status == StatusSuccess
}

// Extractor is a single format-specific text extractor.
type Extractor interface {
	// Name identifies the method in extraction rows and summaries.
	Name() string
	// CanExtract reports whether this extractor handles the path, by suffix.
	CanExtract(path string) bool
	// Extract recovers text from the file. Implementations honor ctx for
	// their own internal deadlines.
	Extract(ctx context.Context, path string) Result
}

// Registry holds extractors in fallback order.
type Registry struct {
	extractors []Extractor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends an extractor; registration order is fallback order.
func (r *Registry) Register(e Extractor) {
	r.extractors = append(r.extractors, e)
}

// ExtractorsFor returns the registered extractors that handle path, in order.
func (r *Registry) ExtractorsFor(path string) []Extractor {
	var out []Extractor
	for _, e := range r.extractors {
		if e.CanExtract(path) {
			out = append(out, e)
		}
	}
	return out
}

// All returns every registered extractor in order.
func (r *Registry) All() []Extractor {
	return append([]Extractor(nil), r.extractors...)
}

// suffix returns the lowercased extension of path, including the dot.
func suffix(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
