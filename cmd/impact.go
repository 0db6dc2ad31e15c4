package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/loceval/internal/judge"
	"github.com/sells-group/loceval/internal/model"
	"github.com/sells-group/loceval/internal/report"
	"github.com/sells-group/loceval/internal/suite"
)

var impactCmd = &cobra.Command{
	Use:   "impact",
	Short: "Run the change-impact evaluation suite",
	Long:  "Scores change-impact answers on anchor coverage, groundedness, and forbidden claims, with an optional LLM judge.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate(); err != nil {
			return err
		}

		j, err := judge.ForConfig(cfg.Judge, cfg.Paths.Judges)
		if err != nil {
			return err
		}

		runner := suite.NewRunner(cfg)
		rows, err := runner.RunImpact(ctx, j)
		if err != nil {
			return err
		}

		runID := suite.NewRunID()
		summary := suite.AggregateImpact(runID, rows)
		if _, err := report.WriteImpact(cfg.Paths.Reports, runID, rows, summary, cfg.Run.ReportFormat); err != nil {
			return err
		}
		if err := appendRegistry(ctx, model.RegistryRowFromImpactSummary(summary)); err != nil {
			return err
		}

		printImpactSummary(cmd.OutOrStdout(), summary)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(impactCmd)
}

func printImpactSummary(w io.Writer, s model.ImpactSummary) {
	if s.NumTasks == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "W2 Summary (run %s)\n", s.RunID)
	fmt.Fprintf(w, "- Anchor Coverage: %.2f | Anchor Faithful: %.2f | Pass (det core): %.2f | Pass Overall: %.2f | p95 Latency: %.0f ms | Avg Tokens: %.1f\n",
		s.AnchorCoverageMean, s.AnchorFaithfulRateMean, s.PassDetCore, s.PassOverall, s.P95LatencyMs, s.AvgTokens)
}
