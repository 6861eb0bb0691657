package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jward/lucien"
)

var flagScanDryRun bool

var scanCmd = &cobra.Command{
	Use:   "scan [root]",
	Short: "Inventory a source tree into the catalog",
	Long:  "Walks the source tree, hashes every regular file, and upserts the results into the catalog. Re-scanning an unchanged tree is a no-op apart from run bookkeeping.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&flagScanDryRun, "dry-run", false, "walk and hash without writing to the catalog")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	root := cfg.SourceRoot
	if len(args) == 1 {
		root = args[0]
	}
	if root == "" {
		return fmt.Errorf("no source root: pass one as an argument or set source_root in config")
	}

	cat, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	ctx, cancel := signalContext()
	defer cancel()

	runID, err := cat.CreateRun("scan", cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	scanner := lucien.NewScanner(cat, cfg.Scan)
	scanner.DryRun = flagScanDryRun

	var count int64
	scanner.Progress = func(path string) {
		count++
		if count%500 == 0 {
			fmt.Printf("\r  scanned %s files", humanize.Comma(count))
		}
	}

	stats, scanErr := scanner.Run(ctx, root, runID)

	errMsg := ""
	if scanErr != nil {
		errMsg = scanErr.Error()
	}
	if err := cat.CompleteRun(runID, errMsg); err != nil {
		slog.Warn("failed to finalize run", "run_id", runID, "error", err)
	}
	if scanErr != nil {
		return scanErr
	}

	fmt.Printf("\r%s scanned %s files (%s) in %s\n",
		color.GreenString("✓"),
		humanize.Comma(stats.FilesScanned),
		humanize.Bytes(uint64(stats.BytesHashed)),
		time.Since(start).Round(time.Millisecond))
	if stats.DirsSkipped > 0 {
		fmt.Printf("  skipped %d directories\n", stats.DirsSkipped)
	}
	if stats.Errors > 0 {
		color.Yellow("  %d files unreadable (permission or I/O errors)", stats.Errors)
	}
	return nil
}
