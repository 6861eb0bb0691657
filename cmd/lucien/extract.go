package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jward/lucien/internal/catalog"
	"github.com/jward/lucien/internal/pool"
)

var (
	flagExtractWorkers   int
	flagExtractLimit     int
	flagExtractForce     bool
	flagExtractNoDocling bool
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract text from scanned files into sidecars",
	Long:  "Drains the files-needing-extraction queue through a pool of isolated worker processes. Each worker runs the extractor chain and writes gzip text sidecars; results land in the catalog.",
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().IntVar(&flagExtractWorkers, "workers", 0, "worker processes (default: CPU count)")
	extractCmd.Flags().IntVar(&flagExtractLimit, "limit", 0, "stop after this many files")
	extractCmd.Flags().BoolVar(&flagExtractForce, "force", false, "re-extract files that already succeeded")
	extractCmd.Flags().BoolVar(&flagExtractNoDocling, "no-docling", false, "disable the docling extractor")
}

// catalogSource adapts the catalog work queue to the pool's task source.
type catalogSource struct {
	cat   *catalog.Catalog
	queue catalog.ExtractionQueue
	limit int
	drawn int
}

func (s *catalogSource) NextBatch(offset, size int) ([]*pool.Task, error) {
	if s.limit > 0 {
		remaining := s.limit - s.drawn
		if remaining <= 0 {
			return nil, nil
		}
		size = min(size, remaining)
	}
	q := s.queue
	q.BatchSize = size
	q.Offset = offset
	rows, err := s.cat.FilesNeedingExtraction(q)
	if err != nil {
		return nil, err
	}
	tasks := make([]*pool.Task, len(rows))
	for i, r := range rows {
		tasks[i] = &pool.Task{FileID: r.FileID, Path: r.Path, SHA256: r.SHA256}
	}
	s.drawn += len(tasks)
	return tasks, nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	ctx, cancel := signalContext()
	defer cancel()

	useDocling := cfg.Extraction.UseDocling && !flagExtractNoDocling
	queue := catalog.ExtractionQueue{
		Force:          flagExtractForce,
		SkipExtensions: cfg.Extraction.SkipExtensions,
	}

	total, err := cat.CountFilesNeedingExtraction(queue)
	if err != nil {
		return err
	}
	if flagExtractLimit > 0 && int64(flagExtractLimit) < total {
		total = int64(flagExtractLimit)
	}
	if total == 0 {
		fmt.Println("Nothing to extract.")
		return nil
	}
	fmt.Printf("Extracting text from %s files\n", humanize.Comma(total))

	runID, err := cat.CreateRun("extract", cfg)
	if err != nil {
		return err
	}

	// Workers that load the heavy extractor get recycled far more often.
	maxTasksPerChild := 200
	if useDocling {
		maxTasksPerChild = 20
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve own executable: %w", err)
	}
	factory := func() *exec.Cmd {
		args := []string{
			"extract-worker",
			"--sidecar-dir", cfg.ExtractedTextDir,
			"--max-text-length", fmt.Sprint(cfg.Extraction.MaxTextLength),
			"--max-tasks", fmt.Sprint(maxTasksPerChild),
		}
		if useDocling {
			args = append(args, "--use-docling")
		}
		for _, ext := range cfg.Extraction.SkipExtensions {
			args = append(args, "--skip-extension", ext)
		}
		return exec.Command(exe, args...)
	}

	var mu sync.Mutex
	reasons := map[string]int{}
	record := func(task *pool.Task, result pool.TaskResult) error {
		var outPath, errMsg *string
		if result.OutputPath != "" {
			outPath = &result.OutputPath
		}
		if result.Error != "" {
			errMsg = &result.Error
			mu.Lock()
			reasons[pool.CategorizeError(result.Error)]++
			mu.Unlock()
		}
		_, err := cat.RecordExtraction(task.FileID, runID, result.Method, result.Status, outPath, errMsg)
		return err
	}

	sup := pool.NewSupervisor(pool.Config{
		Workers:          flagExtractWorkers,
		MaxTasksPerChild: maxTasksPerChild,
	}, &catalogSource{cat: cat, queue: queue, limit: flagExtractLimit}, record, factory)

	start := time.Now()
	done := make(chan struct{})
	go progressLoop(sup.Board(), total, done)

	runErr := sup.Run(ctx)
	close(done)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	if err := cat.CompleteRun(runID, errMsg); err != nil {
		slog.Warn("failed to finalize run", "run_id", runID, "error", err)
	}

	_, counts := sup.Board().Snapshot()
	fmt.Printf("\r%s extracted %s files in %s (%d failed, %d skipped",
		color.GreenString("✓"),
		humanize.Comma(counts.Success),
		time.Since(start).Round(time.Second),
		counts.Failed, counts.Skipped)
	if counts.Hung > 0 {
		fmt.Printf(", %d hung", counts.Hung)
	}
	fmt.Println(")")
	printReasons(reasons)
	return runErr
}

// progressLoop renders a single status line while the pool runs.
func progressLoop(board *pool.Board, total int64, done <-chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			slots, counts := board.Snapshot()
			busy, slow := 0, 0
			for _, s := range slots {
				switch s.State {
				case pool.StateProcessing:
					busy++
				case pool.StateSlow:
					busy++
					slow++
				}
			}
			finished := counts.Success + counts.Failed + counts.Skipped
			line := fmt.Sprintf("\r  %s/%s done, %d workers busy",
				humanize.Comma(finished), humanize.Comma(total), busy)
			if slow > 0 {
				line += fmt.Sprintf(" (%d slow)", slow)
			}
			fmt.Print(line + "   ")
		}
	}
}

// printReasons lists failure categories, most common first.
func printReasons(reasons map[string]int) {
	if len(reasons) == 0 {
		return
	}
	type kv struct {
		k string
		n int
	}
	var sorted []kv
	for k, n := range reasons {
		sorted = append(sorted, kv{k, n})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].n > sorted[j].n })
	fmt.Println("  failure reasons:")
	for _, r := range sorted {
		fmt.Printf("    %-14s %d\n", r.k, r.n)
	}
}
