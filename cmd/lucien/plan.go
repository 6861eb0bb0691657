package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jward/lucien"
	"github.com/jward/lucien/internal/catalog"
)

var (
	flagPlanLabelRun int64
	flagPlanOutput   string
	flagPlanMode     string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Turn labels into a reviewable placement plan",
	Long:  "Computes target paths and filenames for every label in a labeling run, stores the plan in the catalog, and exports plan.jsonl and plan.csv for review before anything is materialized.",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().Int64Var(&flagPlanLabelRun, "label-run", 0, "labeling run to plan from (default: latest)")
	planCmd.Flags().StringVar(&flagPlanOutput, "output", ".", "directory for plan.jsonl and plan.csv")
	planCmd.Flags().StringVar(&flagPlanMode, "mode", "", "placement operation: copy or hardlink (default from config)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	labelRunID := flagPlanLabelRun
	if labelRunID == 0 {
		run, err := cat.LatestRun(catalog.RunTypeLabel)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("no labeling runs found; run `lucien label` first")
		}
		labelRunID = run.ID
	}

	mode := flagPlanMode
	if mode == "" {
		mode = cfg.Materialize.DefaultMode
	}
	if mode != "copy" && mode != "hardlink" {
		return fmt.Errorf("invalid mode %q: must be copy or hardlink", mode)
	}

	planRunID, err := cat.CreateRun("plan", cfg)
	if err != nil {
		return err
	}

	planner := lucien.NewPlanner(cat)
	stats, plans, planErr := planner.BuildPlan(labelRunID, planRunID, mode)

	errMsg := ""
	if planErr != nil {
		errMsg = planErr.Error()
	}
	if err := cat.CompleteRun(planRunID, errMsg); err != nil {
		slog.Warn("failed to finalize run", "run_id", planRunID, "error", err)
	}
	if planErr != nil {
		return planErr
	}

	jsonlPath := filepath.Join(flagPlanOutput, "plan.jsonl")
	csvPath := filepath.Join(flagPlanOutput, "plan.csv")
	if err := lucien.ExportJSONL(plans, jsonlPath); err != nil {
		return err
	}
	if err := lucien.ExportCSV(plans, csvPath); err != nil {
		return err
	}

	fmt.Printf("%s planned %d placements from labeling run %d (plan run %d)\n",
		color.GreenString("✓"), stats.Planned, labelRunID, planRunID)
	if stats.NeedsReview > 0 {
		color.Yellow("  %d rows flagged needs_review", stats.NeedsReview)
	}
	fmt.Printf("  exported %s and %s\n", jsonlPath, csvPath)
	return nil
}
