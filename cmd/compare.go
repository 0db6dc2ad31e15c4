package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/loceval/internal/compare"
	"github.com/sells-group/loceval/internal/registry"
)

var (
	compareBefore string
	compareAfter  string
	compareLast   int
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare two evaluation runs",
	Long:  "Prints metric deltas between two registry runs, cross-validated against their full summaries, with optional trends over recent runs.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := registry.Open(cfg.Paths.Registry)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		c := compare.New(store, cfg.Paths.Reports)
		return c.Compare(cmd.Context(), cmd.OutOrStdout(), compareBefore, compareAfter, compareLast)
	},
}

func init() {
	compareCmd.Flags().StringVar(&compareBefore, "before", "", "before run_id")
	compareCmd.Flags().StringVar(&compareAfter, "after", "", "after run_id")
	compareCmd.Flags().IntVar(&compareLast, "last", 0, "also show trends over the last N runs")
	_ = compareCmd.MarkFlagRequired("before")
	_ = compareCmd.MarkFlagRequired("after")
	rootCmd.AddCommand(compareCmd)
}
