package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog totals and labeling quality",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cat, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer cat.Close()

	stats, err := cat.GetStats()
	if err != nil {
		return err
	}
	extStats, err := cat.ExtractionStats(0)
	if err != nil {
		return err
	}
	labelStats, err := cat.GetLabelingStats(0)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Catalog", "Count"})
	t.AppendRows([]table.Row{
		{"files", humanize.Comma(stats.TotalFiles)},
		{"extractions (success)", humanize.Comma(stats.TotalExtractions)},
		{"labels", humanize.Comma(stats.TotalLabels)},
		{"plans", humanize.Comma(stats.TotalPlans)},
		{"runs", humanize.Comma(stats.TotalRuns)},
	})
	t.Render()

	if len(extStats) > 0 {
		t = table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Extraction status", "Count"})
		for _, status := range sortedKeys(extStats) {
			t.AppendRow(table.Row{status, humanize.Comma(extStats[status])})
		}
		t.Render()
	}

	if labelStats.Total > 0 {
		t = table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Doc type", "Count"})
		for _, dt := range sortedKeys(labelStats.ByDocType) {
			t.AppendRow(table.Row{dt, humanize.Comma(labelStats.ByDocType[dt])})
		}
		t.Render()

		fmt.Printf("confidence: avg %.2f, min %.2f, max %.2f (%s below 0.7)\n",
			labelStats.ConfidenceAvg, labelStats.ConfidenceMin, labelStats.ConfidenceMax,
			humanize.Comma(labelStats.LowConfidenceCount))
	}

	if len(stats.RunsByType) > 0 {
		fmt.Print("completed runs:")
		for _, rt := range sortedKeys(stats.RunsByType) {
			fmt.Printf(" %s=%d", rt, stats.RunsByType[rt])
		}
		fmt.Println()
	}
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
