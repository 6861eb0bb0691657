package pool

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/lucien/internal/extract"
)

// =============================================================================
// Hang classification
// =============================================================================

func TestClassify_Boundaries(t *testing.T) {
	t.Parallel()
	cases := []struct {
		elapsed time.Duration
		want    string
	}{
		{10 * time.Second, StateProcessing},
		{120 * time.Second, StateProcessing},
		{120*time.Second + time.Millisecond, StateSlow},
		{599*time.Second + 900*time.Millisecond, StateSlow},
		{600 * time.Second, StateHung},
		{3600 * time.Second, StateHung},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.elapsed), "elapsed=%s", tc.elapsed)
	}
}

func TestClassifyAt_CustomBoundaries(t *testing.T) {
	t.Parallel()
	slow, hang := 1*time.Second, 2*time.Second
	assert.Equal(t, StateProcessing, ClassifyAt(time.Second, slow, hang))
	assert.Equal(t, StateSlow, ClassifyAt(1500*time.Millisecond, slow, hang))
	assert.Equal(t, StateHung, ClassifyAt(2*time.Second, slow, hang))
}

// =============================================================================
// Error categorization
// =============================================================================

func TestCategorizeError(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"Extension .jpg in skip list":               "skip-list",
		"No extractor available for this file type": "no-extractor",
		"docling timed out after 90s":               "timeout",
		"All extractors failed. Last error: x":      "all-failed",
		"Worker hung after 612s":                    "worker-hung",
		"Worker error: broken pipe":                 "worker-error",
		"something else entirely":                   "other",
	}
	for in, want := range cases {
		assert.Equal(t, want, CategorizeError(in), "input=%q", in)
	}
}

// =============================================================================
// Worker protocol loop
// =============================================================================

func newWorkerChain(t *testing.T) *extract.Chain {
	t.Helper()
	reg := extract.NewRegistry()
	reg.Register(extract.NewTextExtractor())
	return extract.NewChain(reg, extract.NewSidecarStore(t.TempDir()),
		extract.ChainConfig{MaxTextLength: 50000})
}

func TestRunWorker_RoundTrip(t *testing.T) {
	t.Parallel()
	chain := newWorkerChain(t)

	doc := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(doc, []byte("hello"), 0o644))

	var in bytes.Buffer
	for _, task := range []Task{
		{FileID: 1, Path: doc, SHA256: "d1"},
		{FileID: 2, Path: "/does/not/exist.xyz", SHA256: "d2"},
	} {
		line, err := json.Marshal(task)
		require.NoError(t, err)
		in.Write(append(line, '\n'))
	}

	var out bytes.Buffer
	require.NoError(t, RunWorker(context.Background(), chain, &in, &out, 0))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)

	var r1, r2 TaskResult
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &r1))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &r2))

	assert.EqualValues(t, 1, r1.FileID)
	assert.Equal(t, "success", r1.Status)
	assert.Equal(t, "plaintext", r1.Method)
	assert.NotEmpty(t, r1.OutputPath)

	assert.EqualValues(t, 2, r2.FileID)
	assert.Equal(t, "skipped", r2.Status)
	assert.Equal(t, "No extractor available for this file type", r2.Error)
}

func TestRunWorker_StopsAtMaxTasks(t *testing.T) {
	t.Parallel()
	chain := newWorkerChain(t)

	doc := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(doc, []byte("hello"), 0o644))

	var in bytes.Buffer
	for i := 0; i < 5; i++ {
		line, _ := json.Marshal(Task{FileID: int64(i), Path: doc, SHA256: "d"})
		in.Write(append(line, '\n'))
	}

	var out bytes.Buffer
	require.NoError(t, RunWorker(context.Background(), chain, &in, &out, 3))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 3, "worker exits at the recycling bound")
}

// =============================================================================
// Supervisor
// =============================================================================

// sliceSource serves a fixed task list in pages.
type sliceSource struct {
	mu    sync.Mutex
	tasks []*Task
}

func (s *sliceSource) NextBatch(offset, limit int) ([]*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset >= len(s.tasks) {
		return nil, nil
	}
	end := min(offset+limit, len(s.tasks))
	return s.tasks[offset:end], nil
}

// stubWorkerFactory runs a shell loop that answers every task line with a
// fixed success result, standing in for a real worker process.
func stubWorkerFactory() *exec.Cmd {
	script := `while read line; do echo '{"file_id":0,"status":"success","method":"stub"}'; done`
	return exec.Command("/bin/sh", "-c", script)
}

func TestSupervisor_DrainsQueue(t *testing.T) {
	t.Parallel()
	source := &sliceSource{}
	for i := 0; i < 25; i++ {
		source.tasks = append(source.tasks, &Task{FileID: int64(i), Path: "/f", SHA256: "d"})
	}

	var mu sync.Mutex
	recorded := map[int64]string{}
	record := func(task *Task, result TaskResult) error {
		mu.Lock()
		defer mu.Unlock()
		recorded[task.FileID] = result.Status
		return nil
	}

	sup := NewSupervisor(Config{Workers: 3, BatchSize: 10}, source, record, stubWorkerFactory)
	require.NoError(t, sup.Run(context.Background()))

	assert.Len(t, recorded, 25, "every task resolves exactly once")
	for id, status := range recorded {
		assert.Equal(t, "success", status, "task %d", id)
	}
	_, counts := sup.Board().Snapshot()
	assert.EqualValues(t, 25, counts.Success)
}

func TestSupervisor_RecyclesWorkers(t *testing.T) {
	t.Parallel()
	source := &sliceSource{}
	for i := 0; i < 10; i++ {
		source.tasks = append(source.tasks, &Task{FileID: int64(i), Path: "/f", SHA256: "d"})
	}

	record := func(*Task, TaskResult) error { return nil }
	sup := NewSupervisor(Config{Workers: 1, MaxTasksPerChild: 3, BatchSize: 5},
		source, record, stubWorkerFactory)
	require.NoError(t, sup.Run(context.Background()))

	_, counts := sup.Board().Snapshot()
	assert.EqualValues(t, 10, counts.Success, "recycling must not lose tasks")
}

func TestSupervisor_CrashedWorkerSynthesizesFailure(t *testing.T) {
	t.Parallel()
	source := &sliceSource{tasks: []*Task{{FileID: 1, Path: "/f", SHA256: "d"}}}

	var got TaskResult
	record := func(_ *Task, result TaskResult) error {
		got = result
		return nil
	}

	// Worker exits immediately without answering.
	factory := func() *exec.Cmd { return exec.Command("/bin/sh", "-c", "exit 0") }
	sup := NewSupervisor(Config{Workers: 1, BatchSize: 5}, source, record, factory)
	require.NoError(t, sup.Run(context.Background()))

	assert.Equal(t, "failed", got.Status)
	assert.True(t, strings.HasPrefix(got.Error, "Worker error"), "got %q", got.Error)
	_, counts := sup.Board().Snapshot()
	assert.Zero(t, counts.Hung, "a crash is not a hang")
}

func TestSupervisor_HungWorkerKilledAndSynthesizesFailure(t *testing.T) {
	t.Parallel()
	source := &sliceSource{tasks: []*Task{{FileID: 1, Path: "/f", SHA256: "d"}}}

	var got TaskResult
	record := func(_ *Task, result TaskResult) error {
		got = result
		return nil
	}

	// Worker never answers; a short hang timeout abandons it.
	factory := func() *exec.Cmd { return exec.Command("/bin/sh", "-c", "sleep 60") }
	sup := NewSupervisor(Config{Workers: 1, BatchSize: 5, HangTimeout: 2 * time.Second},
		source, record, factory)
	require.NoError(t, sup.Run(context.Background()), "a hang never aborts the run")

	assert.Equal(t, "failed", got.Status)
	assert.True(t, strings.HasPrefix(got.Error, "Worker hung after"), "got %q", got.Error)
	_, counts := sup.Board().Snapshot()
	assert.EqualValues(t, 1, counts.Hung)
}

func TestSupervisor_CancelDrainsInFlight(t *testing.T) {
	t.Parallel()
	source := &sliceSource{}
	for i := 0; i < 10; i++ {
		source.tasks = append(source.tasks, &Task{FileID: int64(i), Path: "/f", SHA256: "d"})
	}

	var mu sync.Mutex
	recorded := map[int64]string{}
	record := func(task *Task, result TaskResult) error {
		mu.Lock()
		defer mu.Unlock()
		recorded[task.FileID] = result.Status
		return nil
	}

	// Each answer takes a second, so cancellation lands mid-task.
	factory := func() *exec.Cmd {
		script := `while read line; do sleep 1; echo '{"file_id":0,"status":"success","method":"stub"}'; done`
		return exec.Command("/bin/sh", "-c", script)
	}
	sup := NewSupervisor(Config{Workers: 1, BatchSize: 5}, source, record, factory)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(300 * time.Millisecond)
		cancel()
	}()
	err := sup.Run(ctx)
	require.ErrorIs(t, err, context.Canceled, "a cancelled run never looks like a clean drain")

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, recorded, "the in-flight task resolves before the slot exits")
	assert.Less(t, len(recorded), 10, "no new tasks start after cancellation")
	for id, status := range recorded {
		assert.Equal(t, "success", status, "task %d drained rather than being killed", id)
	}
}
