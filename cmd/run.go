package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/loceval/internal/model"
	"github.com/sells-group/loceval/internal/registry"
	"github.com/sells-group/loceval/internal/report"
	"github.com/sells-group/loceval/internal/suite"
	"github.com/sells-group/loceval/internal/taskstore"
)

var (
	runSuiteFlag       string
	runIncludeVariants bool
	runDryRun          bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the localization evaluation suite",
	Long:  "Runs the canary gate and the full localization suite, writes per-run artifacts, and appends the run to the registry.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if runDryRun {
			return printDryRun(cmd.OutOrStdout())
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		runner := suite.NewRunner(cfg)

		if runSuiteFlag == "canary" {
			gate, err := runner.CanaryGate(ctx)
			if err != nil {
				return err
			}
			printCanary(cmd.OutOrStdout(), gate)
			if !gate.Pass {
				return eris.New("run: canary gate failed")
			}
			return nil
		}

		// The canary gate always fronts a full run.
		gate, err := runner.CanaryGate(ctx)
		if err != nil {
			return err
		}
		printCanary(cmd.OutOrStdout(), gate)
		if !gate.Pass && cfg.Run.FailFastOnCanary {
			return eris.New("run: canary gate failed")
		}

		rows, err := runner.RunLocalization(ctx, runIncludeVariants)
		if err != nil {
			return err
		}

		runID := suite.NewRunID()
		summary := suite.Aggregate(runID, rows, gate.Pass)
		if _, err := report.WriteLocalization(cfg.Paths.Reports, runID, rows, summary, cfg.Run.ReportFormat); err != nil {
			return err
		}
		if err := appendRegistry(ctx, model.RegistryRowFromSummary(summary)); err != nil {
			return err
		}

		printRunSummary(cmd.OutOrStdout(), summary, rows)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runSuiteFlag, "suite", "all", "which suite to run (canary, w1, all)")
	runCmd.Flags().BoolVar(&runIncludeVariants, "include-variants", false, "fold generated variant tasks into the run")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "print effective config and task counts, then exit")
	rootCmd.AddCommand(runCmd)
}

func appendRegistry(ctx context.Context, row model.RegistryRow) error {
	store, err := registry.Open(cfg.Paths.Registry)
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck
	return store.Append(ctx, row)
}

func printDryRun(w io.Writer) error {
	effective, err := yaml.Marshal(cfg)
	if err != nil {
		return eris.Wrap(err, "run: marshal config")
	}
	fmt.Fprintln(w, "Effective eval config:")
	fmt.Fprintln(w)
	fmt.Fprint(w, string(effective))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Task counts:")
	fmt.Fprintf(w, "  w1_canary: %d\n", taskstore.CountTasks(filepath.Join(cfg.Paths.Canary, "w1_localization")))
	fmt.Fprintf(w, "  w1:        %d\n", taskstore.CountTasks(filepath.Join(cfg.Paths.Scenarios, "w1_localization")))
	fmt.Fprintf(w, "  w2:        %d\n", taskstore.CountTasks(filepath.Join(cfg.Paths.Scenarios, "w2_change_impact")))
	return nil
}

func printCanary(w io.Writer, gate suite.CanaryResult) {
	fmt.Fprintf(w, "Canaries: %d | thresholds.w1.line_iou_min=%v\n", gate.NumTasks, cfg.Thresholds.W1.LineIoUMin)
	if gate.Pass {
		fmt.Fprintln(w, "Canary gate PASSED")
		return
	}
	fmt.Fprintln(w, "Canary gate FAILED:")
	for _, f := range gate.Failures {
		fmt.Fprintf(w, "- %s\n", f)
	}
}

func printRunSummary(w io.Writer, s model.RunSummary, rows []model.EvaluationRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "W1 Summary (run %s)\n", s.RunID)
	fmt.Fprintf(w, "- %s\n", report.SummaryLine(s, suite.AccuracyPathFaithful(rows)))

	printTopFailureLabels(w, rows)
}

// printTopFailureLabels lists the three most common primary labels
// among failed tasks.
func printTopFailureLabels(w io.Writer, rows []model.EvaluationRow) {
	counts := map[string]int{}
	for _, row := range rows {
		if row.Passed == 0 {
			counts[row.LabelPrimary]++
		}
	}
	if len(counts) == 0 {
		return
	}
	type labelCount struct {
		label string
		n     int
	}
	top := make([]labelCount, 0, len(counts))
	for label, n := range counts {
		top = append(top, labelCount{label, n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].n != top[j].n {
			return top[i].n > top[j].n
		}
		return top[i].label < top[j].label
	})
	if len(top) > 3 {
		top = top[:3]
	}
	fmt.Fprintln(w, "Top failure labels:")
	for _, lc := range top {
		fmt.Fprintf(w, "- %s: %d\n", lc.label, lc.n)
	}
}
