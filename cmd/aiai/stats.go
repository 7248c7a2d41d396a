package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/baldhumanity/aiai-go/stats"
)

var flagDBPath string

var statsCmd = &cobra.Command{
	Use:   "stats [run-id]",
	Short: "Show recorded generation statistics",
	Long: `Without arguments, list the runs stored in the statistics database.
With a run id, print best, mean and standard deviation per generation.

Examples:
  aiai stats
  aiai stats 6f1c2a9e-0b7d-4d43-9a55-3c1f0f3f8e21`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&flagDBPath, "db", "", "Statistics database (overrides [Stats] sqlite)")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	path := cfg.Stats.SQLite
	if flagDBPath != "" {
		path = flagDBPath
	}
	if path == "" {
		return fmt.Errorf("no statistics database: set [Stats] sqlite or pass --db")
	}
	db, err := stats.OpenSQLite(path)
	if err != nil {
		return err
	}
	defer db.Close()
	ctx := cmd.Context()

	if len(args) == 0 {
		runs, err := db.Runs(ctx)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded yet.")
			return nil
		}
		fmt.Printf("  %-36s  %11s  %8s  %s\n", "Run", "Generations", "Best", "Updated")
		for _, r := range runs {
			fmt.Printf("  %-36s  %11s  %8.2f  %s\n", r.RunID, humanize.Comma(int64(r.Generations)), r.Best, humanize.Time(r.Updated))
		}
		return nil
	}

	recs, err := db.Records(ctx, args[0])
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		return fmt.Errorf("no statistics for run %q", args[0])
	}
	fmt.Printf("Run %s\n\n", args[0])
	fmt.Printf("  %10s  %8s  %8s  %8s  %s\n", "Generation", "Best", "Mean", "Stdev", "Recorded")
	for _, r := range recs {
		fmt.Printf("  %10s  %8.2f  %8.2f  %8.2f  %s\n",
			humanize.Comma(int64(r.Generation)), r.Best, r.Mean, r.Stdev, humanize.Time(r.RecordedAt))
	}
	return nil
}
