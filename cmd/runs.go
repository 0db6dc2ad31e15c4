package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/loceval/internal/model"
	"github.com/sells-group/loceval/internal/registry"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect evaluation run history",
	Long:  "Commands for listing and viewing registry runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs from the registry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := registry.Open(cfg.Paths.Registry)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		rows, err := store.Last(cmd.Context(), limit)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(rows) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(cmd.OutOrStdout(), rows)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the full registry row of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := registry.Open(cfg.Paths.Registry)
		if err != nil {
			return err
		}
		defer store.Close() //nolint:errcheck

		row, err := store.Get(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(row)
	},
}

func init() {
	runsListCmd.Flags().Int("limit", 20, "max number of runs to display")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of registry rows to out.
func formatRunsList(out io.Writer, rows []model.RegistryRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RUN_ID\tSUITE\tCREATED\tACCURACY\tPASS_OVERALL\tP95_MS\tCANARY")
	_, _ = fmt.Fprintln(w, "------\t-----\t-------\t--------\t------------\t------\t------")

	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RunID,
			r.Suite,
			r.CreatedAt.Format("2006-01-02 15:04"),
			floatCell(r.AccuracyLocalization),
			floatCell(r.W2PassOverall),
			p95Cell(r),
			canaryCell(r.CanaryPass),
		)
	}
	_ = w.Flush()
}

func floatCell(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func p95Cell(r model.RegistryRow) string {
	switch {
	case r.P95LatencyMs != nil:
		return fmt.Sprintf("%.0f", *r.P95LatencyMs)
	case r.W2P95LatencyMs != nil:
		return fmt.Sprintf("%.0f", *r.W2P95LatencyMs)
	default:
		return "-"
	}
}

func canaryCell(v *bool) string {
	switch {
	case v == nil:
		return "-"
	case *v:
		return "pass"
	default:
		return "FAIL"
	}
}
