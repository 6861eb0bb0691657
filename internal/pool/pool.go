// Package pool runs the extractor chain across many files using a
// fixed-size set of worker processes. Process isolation is the point:
// native extraction libraries leak memory and occasionally hang or crash,
// and none of that may take down a sibling task or the supervisor. Workers
// are spawned as fresh executable images, recycled after a bounded task
// count, and abandoned when they stop responding.
package pool

import (
	"time"
)

// Task states as classified by elapsed wall-clock time since dispatch.
const (
	StateProcessing = "processing"
	StateSlow       = "processing-slow"
	StateHung       = "hung"
)

// Classification boundaries.
const (
	SlowThreshold = 120 * time.Second
	HangTimeout   = 600 * time.Second
)

// Classify maps elapsed in-flight time to a task state under the default
// boundaries. The slow state is informational; hung triggers abandonment.
func Classify(elapsed time.Duration) string {
	return ClassifyAt(elapsed, SlowThreshold, HangTimeout)
}

// ClassifyAt is Classify with explicit boundaries. Elapsed time exactly at
// the hang boundary counts as hung.
func ClassifyAt(elapsed, slow, hang time.Duration) string {
	switch {
	case elapsed >= hang:
		return StateHung
	case elapsed > slow:
		return StateSlow
	default:
		return StateProcessing
	}
}

// Task is one unit of work sent to a worker process.
type Task struct {
	FileID int64  `json:"file_id"`
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// TaskResult is what a worker returns over IPC. Extracted text never
// crosses this boundary; workers write sidecars directly and return only
// the path.
type TaskResult struct {
	FileID     int64  `json:"file_id"`
	Status     string `json:"status"`
	Method     string `json:"method"`
	OutputPath string `json:"output_path,omitempty"`
	Error      string `json:"error,omitempty"`
}
