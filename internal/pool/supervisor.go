package pool

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// TaskSource pages tasks out of the work queue. NextBatch returns at most
// limit tasks starting at offset; an empty batch means the queue is
// drained.
type TaskSource interface {
	NextBatch(offset, limit int) ([]*Task, error)
}

// RecordFunc persists one task outcome.
type RecordFunc func(task *Task, result TaskResult) error

// WorkerFactory builds the command for a fresh worker process. The
// supervisor re-execs its own binary rather than forking: the heavy
// extractor's initialization is not fork-safe.
type WorkerFactory func() *exec.Cmd

// Config sizes the pool. Zero values take defaults.
type Config struct {
	Workers          int           // default: host CPU count, min 1
	MaxTasksPerChild int           // recycling bound, default 200
	BatchSize        int           // work-queue page size, default 100
	SlowThreshold    time.Duration // default 120s
	HangTimeout      time.Duration // default 600s
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = max(runtime.NumCPU(), 1)
	}
	if c.MaxTasksPerChild <= 0 {
		c.MaxTasksPerChild = 200
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.SlowThreshold <= 0 {
		c.SlowThreshold = SlowThreshold
	}
	if c.HangTimeout <= 0 {
		c.HangTimeout = HangTimeout
	}
}

// Supervisor owns the worker slots, the ready queue, and the feeder that
// keeps it topped up from the catalog.
type Supervisor struct {
	cfg     Config
	source  TaskSource
	record  RecordFunc
	factory WorkerFactory
	board   *Board
}

func NewSupervisor(cfg Config, source TaskSource, record RecordFunc, factory WorkerFactory) *Supervisor {
	cfg.applyDefaults()
	return &Supervisor{
		cfg:     cfg,
		source:  source,
		record:  record,
		factory: factory,
		board:   NewBoard(cfg.Workers),
	}
}

// Board exposes live slot states for the progress display.
func (s *Supervisor) Board() *Board { return s.board }

// Run drives the pool to completion: a feeder goroutine pages tasks into
// the ready queue and one goroutine per slot drains it through a persistent
// worker process. Returns when the queue is exhausted and every in-flight
// task has resolved, or on the first unrecoverable error.
func (s *Supervisor) Run(ctx context.Context) error {
	ready := make(chan *Task, 3*s.cfg.Workers)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.feed(ctx, ready) })
	for slot := 0; slot < s.cfg.Workers; slot++ {
		g.Go(func() error { return s.runSlot(ctx, slot, ready) })
	}
	return g.Wait()
}

// feed pages the work queue into the ready channel. The channel's capacity
// is the 3x-workers pre-fill target; fetching pauses while the queue holds
// at least 2x workers so catalog queries stay amortized.
func (s *Supervisor) feed(ctx context.Context, ready chan<- *Task) error {
	defer close(ready)
	lowWater := 2 * s.cfg.Workers
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(ready) >= lowWater {
			select {
			case <-time.After(50 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		batch, err := s.source.NextBatch(offset, s.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("fetch task batch: %w", err)
		}
		if len(batch) == 0 {
			return nil
		}
		for _, t := range batch {
			select {
			case ready <- t:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		offset += len(batch)
	}
}

// runSlot drains the ready queue through a persistent worker, recycling it
// after the per-child task bound and replacing it after a hang or crash.
func (s *Supervisor) runSlot(ctx context.Context, slot int, ready <-chan *Task) error {
	var w *workerProc
	defer func() {
		if w != nil {
			w.kill()
		}
		s.board.SetIdle(slot)
	}()

	for {
		// A cancelled run stops taking new tasks; the in-flight dispatch
		// below always resolves first.
		if err := ctx.Err(); err != nil {
			return err
		}
		var task *Task
		select {
		case t, ok := <-ready:
			if !ok {
				// The feeder also closes the queue on cancellation; a
				// cancelled run must not look like a clean drain.
				if err := ctx.Err(); err != nil {
					return err
				}
				if w != nil {
					w.shutdown()
					w = nil
				}
				return nil
			}
			task = t
		case <-ctx.Done():
			return ctx.Err()
		}

		if w == nil {
			proc, err := s.spawn()
			if err != nil {
				return fmt.Errorf("spawn worker for slot %d: %w", slot, err)
			}
			w = proc
		}

		result, alive := s.dispatch(slot, w, task)
		hung := strings.HasPrefix(result.Error, "Worker hung")
		s.board.RecordOutcome(result.Status, hung)
		s.board.SetIdle(slot)
		if err := s.record(task, result); err != nil {
			return fmt.Errorf("record extraction for %s: %w", task.Path, err)
		}

		if !alive {
			w = nil
			continue
		}
		w.tasksDone++
		if w.tasksDone >= s.cfg.MaxTasksPerChild {
			w.shutdown()
			w = nil
		}
	}
}

// dispatch sends one task and waits for its result, reclassifying the slot
// as time passes. On hang the worker is killed and a synthetic failure
// returned; alive=false tells the caller the process is gone. Dispatch is
// deliberately not cancellable: once a task is in flight it runs to its
// result or to the hang timeout, so cancellation never loses an outcome.
func (s *Supervisor) dispatch(slot int, w *workerProc, task *Task) (result TaskResult, alive bool) {
	start := time.Now()
	s.board.SetProcessing(slot, task.Path)

	if err := w.send(task); err != nil {
		w.kill()
		return TaskResult{
			FileID: task.FileID,
			Status: "failed",
			Method: "none",
			Error:  fmt.Sprintf("Worker error: %v", err),
		}, false
	}

	resCh := make(chan TaskResult, 1)
	errCh := make(chan error, 1)
	go func() {
		res, err := w.receive()
		if err != nil {
			errCh <- err
			return
		}
		resCh <- res
	}()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case res := <-resCh:
			return res, true
		case err := <-errCh:
			w.kill()
			return TaskResult{
				FileID: task.FileID,
				Status: "failed",
				Method: "none",
				Error:  fmt.Sprintf("Worker error: %v", err),
			}, false
		case <-ticker.C:
			elapsed := time.Since(start)
			switch ClassifyAt(elapsed, s.cfg.SlowThreshold, s.cfg.HangTimeout) {
			case StateHung:
				w.kill()
				return TaskResult{
					FileID: task.FileID,
					Status: "failed",
					Method: "none",
					Error:  fmt.Sprintf("Worker hung after %ds", int(elapsed.Seconds())),
				}, false
			case StateSlow:
				s.board.SetState(slot, StateSlow)
			}
		}
	}
}

// workerProc wraps one live worker process and its protocol pipes.
type workerProc struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	scanner   *bufio.Scanner
	tasksDone int
}

// spawn starts a fresh worker. Worker stderr is discarded so native-library
// chatter cannot corrupt the progress display.
func (s *Supervisor) spawn() (*workerProc, error) {
	cmd := s.factory()
	cmd.Stderr = nil

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxTaskLine)
	return &workerProc{cmd: cmd, stdin: stdin, scanner: scanner}, nil
}

func (w *workerProc) send(task *Task) error {
	line, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	line = append(line, '\n')
	if _, err := w.stdin.Write(line); err != nil {
		return fmt.Errorf("write task: %w", err)
	}
	return nil
}

func (w *workerProc) receive() (TaskResult, error) {
	if !w.scanner.Scan() {
		if err := w.scanner.Err(); err != nil {
			return TaskResult{}, fmt.Errorf("read result: %w", err)
		}
		return TaskResult{}, fmt.Errorf("worker closed stdout")
	}
	var res TaskResult
	if err := json.Unmarshal(w.scanner.Bytes(), &res); err != nil {
		return TaskResult{}, fmt.Errorf("decode result: %w", err)
	}
	return res, nil
}

// shutdown ends an idle worker cleanly: closing stdin ends its protocol
// loop and the process exits on its own.
func (w *workerProc) shutdown() {
	w.stdin.Close()
	w.cmd.Wait()
}

// kill terminates the process immediately. Used for hangs and crashes; the
// reaped exit status is irrelevant.
func (w *workerProc) kill() {
	w.stdin.Close()
	if w.cmd.Process != nil {
		w.cmd.Process.Kill()
	}
	go w.cmd.Wait()
}
