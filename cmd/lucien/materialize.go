package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jward/lucien"
	"github.com/jward/lucien/internal/catalog"
)

var flagMatApplyTags bool

var materializeCmd = &cobra.Command{
	Use:   "materialize [plan-run-id]",
	Short: "Build the staging mirror from a plan",
	Long:  "Copies or hardlinks every plan row into the staging root and applies tags. Sources are never modified; the mirror can be deleted and rebuilt at any time.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMaterialize,
}

func init() {
	materializeCmd.Flags().BoolVar(&flagMatApplyTags, "apply-tags", true, "apply filesystem tags after placement")
}

func runMaterialize(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	var planRunID int64
	if len(args) == 1 {
		planRunID, err = strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid plan run id %q", args[0])
		}
	} else {
		run, err := cat.LatestRun(catalog.RunTypePlan)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("no plan runs found; run `lucien plan` first")
		}
		planRunID = run.ID
	}

	var tagFn lucien.TagFunc
	if flagMatApplyTags && cfg.Materialize.ApplyTags {
		tagFn = lucien.ApplyFinderTags
	}

	mat := lucien.NewMaterializer(cat, cfg.StagingRoot, tagFn)
	mat.Progress = func(target string, err error) {
		if err != nil {
			color.Red("  ✗ %s: %v", target, err)
		}
	}

	stats, err := mat.Run(planRunID)
	if err != nil {
		return err
	}

	fmt.Printf("%s materialized %d files into %s (%d tagged, %d errors)\n",
		color.GreenString("✓"), stats.Placed, cfg.StagingRoot, stats.Tagged, stats.Errors)
	return nil
}
