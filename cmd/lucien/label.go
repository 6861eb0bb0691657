package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jward/lucien/internal/extract"
	"github.com/jward/lucien/internal/llm"
)

var (
	flagLabelLimit int
	flagLabelForce bool
	flagLabelModel string
)

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Classify extracted documents with the LLM",
	Long:  "Labels every file that has a successful extraction and no label yet. Sensitive or low-confidence results are automatically re-labeled with the escalation model.",
	RunE:  runLabel,
}

func init() {
	labelCmd.Flags().IntVar(&flagLabelLimit, "limit", 0, "stop after this many files")
	labelCmd.Flags().BoolVar(&flagLabelForce, "force", false, "re-label files that already have labels")
	labelCmd.Flags().StringVar(&flagLabelModel, "model", "", "override the default model")
}

func runLabel(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagLabelModel != "" {
		cfg.LLM.DefaultModel = flagLabelModel
	}

	cat, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	ctx, cancel := signalContext()
	defer cancel()

	client := llm.NewClient(llm.ClientConfig{
		BaseURL:             cfg.LLM.BaseURL,
		DefaultModel:        cfg.LLM.DefaultModel,
		EscalationModel:     cfg.LLM.EscalationModel,
		EscalationThreshold: cfg.LLM.EscalationThreshold,
		EscalationDocTypes:  cfg.LLM.EscalationDocTypes,
		MaxRetries:          cfg.LLM.MaxRetries,
		Timeout:             time.Duration(cfg.LLM.Timeout) * time.Second,
	})
	if err := client.CheckConnection(ctx); err != nil {
		return fmt.Errorf("check LLM endpoint %s: %w", cfg.LLM.BaseURL, err)
	}

	pending, err := cat.CountFilesNeedingLabeling(flagLabelForce)
	if err != nil {
		return err
	}
	if pending == 0 {
		fmt.Println("Nothing to label.")
		return nil
	}
	fmt.Printf("Labeling %s files with %s\n", humanize.Comma(pending), cfg.LLM.DefaultModel)

	runID, err := cat.CreateRun("label", cfg)
	if err != nil {
		return err
	}

	labeler := llm.NewLabeler(cat, client, extract.NewSidecarStore(cfg.ExtractedTextDir), llm.Vocabularies{
		DocTypes:      cfg.DocTypes,
		Tags:          cfg.Tags,
		Taxonomy:      cfg.Taxonomy.TopLevel,
		FamilyMembers: cfg.Taxonomy.FamilyMembers,
	})
	labeler.Progress = func(o llm.LabelOutcome) {
		switch {
		case o.Err != nil:
			color.Red("  ✗ %s: %v", o.Path, o.Err)
		case o.Escalated:
			color.Yellow("  ↑ %s → %s (%.2f, escalated)", o.Path, o.Label.DocType, o.Label.Confidence)
		default:
			fmt.Printf("  %s %s → %s (%.2f)\n", color.GreenString("✓"), o.Path, o.Label.DocType, o.Label.Confidence)
		}
	}

	start := time.Now()
	stats, runErr := labeler.Run(ctx, runID, flagLabelForce, flagLabelLimit)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	if err := cat.CompleteRun(runID, errMsg); err != nil {
		slog.Warn("failed to finalize run", "run_id", runID, "error", err)
	}
	if runErr != nil {
		return runErr
	}

	fmt.Printf("%s labeled %d files in %s (%d escalated, %d errors)\n",
		color.GreenString("✓"), stats.Labeled,
		time.Since(start).Round(time.Second),
		stats.Escalated, stats.Errors)
	return nil
}
