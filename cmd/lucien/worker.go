package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/lucien/internal/extract"
	"github.com/jward/lucien/internal/pool"
)

var (
	flagWorkerSidecarDir string
	flagWorkerMaxText    int
	flagWorkerMaxTasks   int
	flagWorkerUseDocling bool
	flagWorkerSkipExts   []string
)

// workerCmd is the re-exec target for pool workers. It speaks JSON lines
// over stdin/stdout and is not part of the user-facing surface.
var workerCmd = &cobra.Command{
	Use:    "extract-worker",
	Hidden: true,
	RunE:   runWorker,
}

func init() {
	workerCmd.Flags().StringVar(&flagWorkerSidecarDir, "sidecar-dir", "", "sidecar output directory")
	workerCmd.Flags().IntVar(&flagWorkerMaxText, "max-text-length", 50000, "sidecar truncation bound")
	workerCmd.Flags().IntVar(&flagWorkerMaxTasks, "max-tasks", 0, "exit after this many tasks")
	workerCmd.Flags().BoolVar(&flagWorkerUseDocling, "use-docling", false, "enable the docling extractor")
	workerCmd.Flags().StringArrayVar(&flagWorkerSkipExts, "skip-extension", nil, "suffix to skip (repeatable)")
	workerCmd.MarkFlagRequired("sidecar-dir")
}

func runWorker(cmd *cobra.Command, args []string) error {
	registry := extract.DefaultRegistry(flagWorkerUseDocling, 90*time.Second)
	chain := extract.NewChain(registry,
		extract.NewSidecarStore(flagWorkerSidecarDir),
		extract.ChainConfig{
			SkipExtensions: flagWorkerSkipExts,
			MaxTextLength:  flagWorkerMaxText,
		})
	return pool.RunWorker(cmd.Context(), chain, os.Stdin, os.Stdout, flagWorkerMaxTasks)
}
