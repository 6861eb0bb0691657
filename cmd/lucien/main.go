// Command lucien organizes a personal document library: scan an immutable
// source tree into a catalog, extract text, label documents with a local
// LLM, and materialize a reorganized staging mirror.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jward/lucien"
	"github.com/jward/lucien/internal/catalog"
)

var (
	flagDB     string
	flagConfig string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "lucien",
	Short:         "Organize a document library with hashing, extraction, and AI labeling",
	Long:          "Lucien inventories an immutable source tree, extracts text from documents, labels them through a local LLM, and plans a reorganized staging mirror. The source is never modified.",
	SilenceErrors: true,
	SilenceUsage:  true,
	// No Run — prints help by default.
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "catalog path (default from config)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (overrides the default lookup)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(materializeCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(initConfigCmd)
}

// loadConfig resolves configuration and applies global flag overrides.
func loadConfig() (*lucien.Config, error) {
	cfg, err := lucien.LoadConfigFrom(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.IndexDB = flagDB
	}
	setupLogging(cfg)
	return cfg, nil
}

func setupLogging(cfg *lucien.Config) {
	var level slog.Level
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN", "WARNING":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		if f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			out = f
		}
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
}

// openCatalog opens (and migrates) the configured catalog.
func openCatalog(cfg *lucien.Config) (*catalog.Catalog, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return catalog.Open(cfg.IndexDB)
}

// signalContext is cancelled on SIGINT/SIGTERM so long phases drain
// cleanly.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
