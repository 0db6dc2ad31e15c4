// Package compare renders run-to-run deltas and short trends from the
// registry ledger. Registry rows are the source of truth; summary.json
// files are only consulted to cross-check that the ledger has not
// drifted from the full artifacts.
package compare

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/loceval/internal/model"
	"github.com/sells-group/loceval/internal/registry"
	"github.com/sells-group/loceval/internal/report"
)

// metric binds a display name to its registry field.
type metric struct {
	name      string
	get       func(model.RegistryRow) *float64
	isPercent bool
}

var w1Metrics = []metric{
	{"W1 Accuracy", func(r model.RegistryRow) *float64 { return r.AccuracyLocalization }, true},
	{"W1 Faithfulness", func(r model.RegistryRow) *float64 { return r.FaithfulnessRate }, true},
	{"W1 IoU Avg", func(r model.RegistryRow) *float64 { return r.LineIoUAvg }, false},
	{"W1 p95 Latency", func(r model.RegistryRow) *float64 { return r.P95LatencyMs }, false},
	{"W1 Avg Tokens", func(r model.RegistryRow) *float64 { return r.AvgTokensTotal }, false},
	{"W1 Canary OK", canaryAsFloat, false},
}

var w2Metrics = []metric{
	{"W2 Pass Overall", func(r model.RegistryRow) *float64 { return r.W2PassOverall }, true},
	{"W2 Anchor Coverage", func(r model.RegistryRow) *float64 { return r.W2AnchorCoverageMean }, true},
	{"W2 Anchor Faithful", func(r model.RegistryRow) *float64 { return r.W2AnchorFaithfulRateMean }, true},
	{"W2 p95 Latency", func(r model.RegistryRow) *float64 { return r.W2P95LatencyMs }, false},
	{"W2 Avg Tokens", func(r model.RegistryRow) *float64 { return r.W2AvgTokens }, false},
}

func canaryAsFloat(r model.RegistryRow) *float64 {
	if r.CanaryPass == nil {
		return nil
	}
	v := 0.0
	if *r.CanaryPass {
		v = 1.0
	}
	return &v
}

// FormatDelta renders an after-minus-before delta with a direction
// arrow. Deltas under a thousandth collapse to "=".
func FormatDelta(before, after float64, isPercent bool) string {
	diff := after - before
	if math.Abs(diff) < 0.001 {
		return "="
	}
	sign := "▲"
	if diff < 0 {
		sign = "▼"
	}
	unit := ""
	if isPercent {
		unit = "pp"
	}
	return fmt.Sprintf("%s %+.1f%s", sign, diff, unit)
}

// FormatTrend condenses a chronological value series to its first-to-
// last movement.
func FormatTrend(values []float64, isPercent bool) string {
	if len(values) < 2 {
		return "="
	}
	diff := values[len(values)-1] - values[0]
	if math.Abs(diff) < 0.001 {
		return "="
	}
	unit := ""
	if isPercent {
		unit = "pp"
	}
	return fmt.Sprintf("%+.1f%s", diff, unit)
}

// CrossValidate compares the flattened registry row against the run's
// full summary and reports any aggregate drifted past 0.01.
func CrossValidate(row model.RegistryRow, summary model.RunSummary) []string {
	checks := []struct {
		key    string
		regVal *float64
		sumVal float64
	}{
		{"accuracy_localization", row.AccuracyLocalization, summary.AccuracyLocalization},
		{"p95_latency_ms", row.P95LatencyMs, summary.P95LatencyMs},
		{"avg_tokens_in", row.AvgTokensIn, summary.AvgTokensIn},
		{"avg_tokens_out", row.AvgTokensOut, summary.AvgTokensOut},
	}
	var warnings []string
	for _, c := range checks {
		if c.regVal != nil && math.Abs(*c.regVal-c.sumVal) > 0.01 {
			warnings = append(warnings, fmt.Sprintf(
				"%s: %s mismatch: reg=%v, sum=%v", row.RunID, c.key, *c.regVal, c.sumVal,
			))
		}
	}
	return warnings
}

// Comparator reads the registry and report artifacts.
type Comparator struct {
	store      registry.Store
	reportsDir string
}

// New builds a comparator over an open registry store.
func New(store registry.Store, reportsDir string) *Comparator {
	return &Comparator{store: store, reportsDir: reportsDir}
}

// Compare prints the before/after table, a conclusion line, and
// optional trends over the last N runs. A run id missing from the
// registry is reported on the writer, not as an error.
func (c *Comparator) Compare(ctx context.Context, w io.Writer, beforeID, afterID string, lastN int) error {
	before, err := c.store.Get(ctx, beforeID)
	if err != nil {
		if eris.Is(err, registry.ErrRunNotFound) {
			fmt.Fprintf(w, "Run %s not found in registry.\n", beforeID)
			return nil
		}
		return err
	}
	after, err := c.store.Get(ctx, afterID)
	if err != nil {
		if eris.Is(err, registry.ErrRunNotFound) {
			fmt.Fprintf(w, "Run %s not found in registry.\n", afterID)
			return nil
		}
		return err
	}

	var warnings []string
	for _, row := range []model.RegistryRow{before, after} {
		summary, err := report.ReadSummary(c.reportsDir, row.RunID)
		if err != nil {
			continue // no full summary to check against
		}
		warnings = append(warnings, CrossValidate(row, summary)...)
	}
	if len(warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warning := range warnings {
			fmt.Fprintf(w, "  %s\n", warning)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Run Comparison: %s → %s\n", beforeID, afterID)
	fmt.Fprintln(w, strings.Repeat("-", 50))
	for _, m := range append(append([]metric{}, w1Metrics...), w2Metrics...) {
		bv, av := m.get(before), m.get(after)
		if bv == nil || av == nil {
			fmt.Fprintf(w, "%-20s | N/A\n", m.name)
			continue
		}
		fmt.Fprintf(w, "%-20s | %6.2f → %6.2f %s\n", m.name, *bv, *av, FormatDelta(*bv, *av, m.isPercent))
	}

	c.printConclusion(w, before, after)

	if lastN > 1 {
		if err := c.printTrends(ctx, w, lastN); err != nil {
			return err
		}
	}
	return nil
}

func (c *Comparator) printConclusion(w io.Writer, before, after model.RegistryRow) {
	var parts []string
	if before.AccuracyLocalization != nil && after.AccuracyLocalization != nil {
		diff := *after.AccuracyLocalization - *before.AccuracyLocalization
		arrow := "▼"
		if diff > 0 {
			arrow = "▲"
		}
		parts = append(parts, fmt.Sprintf("W1 accuracy %s %+.1fpp", arrow, diff))
	}
	if after.CanaryPass != nil {
		if *after.CanaryPass {
			parts = append(parts, "canaries OK")
		} else {
			parts = append(parts, "canaries FAIL")
		}
	}
	if before.P95LatencyMs != nil && after.P95LatencyMs != nil {
		diff := *after.P95LatencyMs - *before.P95LatencyMs
		arrow := "▲"
		if diff < 0 {
			arrow = "▼"
		}
		parts = append(parts, fmt.Sprintf("p95 latency %s %+.0fms", arrow, diff))
	}
	fmt.Fprintf(w, "\nConclusion: %s.\n", strings.Join(parts, "; "))
}

func (c *Comparator) printTrends(ctx context.Context, w io.Writer, lastN int) error {
	rows, err := c.store.Last(ctx, lastN)
	if err != nil {
		return err
	}
	// Last returns newest first; trends read chronologically.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	fmt.Fprintf(w, "\nTrends (last %d runs):\n", lastN)
	fmt.Fprintln(w, strings.Repeat("-", 30))
	for _, m := range append(append([]metric{}, w1Metrics...), w2Metrics...) {
		var values []float64
		for _, row := range rows {
			if v := m.get(row); v != nil {
				values = append(values, *v)
			}
		}
		if len(values) == 0 {
			continue
		}
		fmt.Fprintf(w, "%-20s | %s\n", m.name, FormatTrend(values, m.isPercent))
	}
	return nil
}
