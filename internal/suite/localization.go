// Package suite runs evaluation suites end to end: load fixtures,
// invoke the SUT once per task, score, and aggregate. Tasks run
// sequentially so observed latencies stay attributable to the SUT.
package suite

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/loceval/internal/config"
	"github.com/sells-group/loceval/internal/metrics"
	"github.com/sells-group/loceval/internal/model"
	"github.com/sells-group/loceval/internal/sut"
	"github.com/sells-group/loceval/internal/taskstore"
)

// InvokeFunc produces one prediction for one task. Extracted so tests
// can substitute a canned SUT.
type InvokeFunc func(ctx context.Context, task model.Task) model.Prediction

// Runner drives localization suites against one SUT.
type Runner struct {
	cfg    *config.Config
	invoke InvokeFunc
}

// NewRunner builds a runner invoking the configured SUT command.
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{cfg: cfg, invoke: sut.NewInvoker(cfg.SUT).Invoke}
}

// NewRunnerWithInvoker builds a runner with a custom invoker.
func NewRunnerWithInvoker(cfg *config.Config, invoke InvokeFunc) *Runner {
	return &Runner{cfg: cfg, invoke: invoke}
}

// NewRunID mints a short run identifier, unique enough for a local
// registry.
func NewRunID() string {
	u := uuid.New()
	return fmt.Sprintf("%x", u[:4])
}

func (r *Runner) thresholds() metrics.LabelThresholds {
	return metrics.LabelThresholds{
		LineIoUMin:       r.cfg.Thresholds.W1.LineIoUMin,
		P95LatencyMs:     r.cfg.SLO.P95LatencyMs,
		MaxTokensIn:      r.cfg.SLO.MaxTokensIn,
		MaxTokensOut:     r.cfg.SLO.MaxTokensOut,
		MaxContextTokens: r.cfg.SLO.MaxContextTokens,
	}
}

// EvaluateTask scores one prediction against its golden and applies
// the configured pass gates. An absent golden scores as zero across
// the board rather than erroring.
func (r *Runner) EvaluateTask(task model.Task, pred model.Prediction, golden model.Golden) model.EvaluationRow {
	loc := metrics.EvaluateLocalization(pred.Answer, golden, task.Inputs)
	faith := metrics.EvaluateFaithfulness(pred.Answer, pred.Citations)
	labels := metrics.MapLocalizationLabels(pred, golden, loc, faith, r.thresholds())

	w1 := r.cfg.Thresholds.W1
	passed := 1
	if w1.PathMatchRequired && loc.PathMatch != 1 {
		passed = 0
	}
	if loc.LineIoUMin < w1.LineIoUMin {
		passed = 0
	}
	if w1.RequireSymbolMatch && loc.SymbolMatch != 1 {
		passed = 0
	}
	if w1.FaithfulnessRequired && faith.Faithful != 1 {
		passed = 0
	}

	return model.EvaluationRow{
		TaskID:             task.ID,
		PathMatch:          loc.PathMatch,
		LineIoUAvg:         loc.LineIoUAvg,
		LineIoUMin:         loc.LineIoUMin,
		SymbolMatch:        loc.SymbolMatch,
		SymbolPresenceRate: loc.SymbolPresenceRate,
		Faithful:           faith.Faithful,
		FaithfulnessReason: faith.Reason,
		LabelPrimary:       labels.Primary,
		LabelSecondary:     strings.Join(labels.Secondary, ","),
		LatencyMs:          pred.Timing.LatencyMs,
		TokensIn:           pred.Tokens.In,
		TokensOut:          pred.Tokens.Out,
		ContextTokens:      pred.Tokens.Context,
		Passed:             passed,
		Tags:               strings.Join(task.Tags, ","),
	}
}

// RunSuite loads tasks and goldens from the given directory sets and
// evaluates every task in order. A task without a golden is still
// invoked and scored against the empty golden.
func (r *Runner) RunSuite(ctx context.Context, taskDirs, goldenDirs []string) ([]model.EvaluationRow, error) {
	tasks, err := taskstore.LoadTasks(taskDirs...)
	if err != nil {
		return nil, err
	}
	goldens, err := taskstore.LoadGoldens(goldenDirs...)
	if err != nil {
		return nil, err
	}

	rows := make([]model.EvaluationRow, 0, len(tasks))
	for _, task := range tasks {
		pred := r.invoke(ctx, task)
		row := r.EvaluateTask(task, pred, goldens[task.ID])
		rows = append(rows, row)
		zap.L().Debug("suite: task scored",
			zap.String("task_id", task.ID),
			zap.Int("passed", row.Passed),
			zap.String("label", row.LabelPrimary),
		)
	}
	return rows, nil
}

// RunLocalization runs the full localization suite, optionally folding
// in generated variants.
func (r *Runner) RunLocalization(ctx context.Context, includeVariants bool) ([]model.EvaluationRow, error) {
	taskDirs := []string{filepath.Join(r.cfg.Paths.Scenarios, "w1_localization")}
	goldenDirs := []string{filepath.Join(r.cfg.Paths.Goldens, "w1_localization")}
	if includeVariants && r.cfg.Variants.Enabled {
		taskDirs = append(taskDirs, filepath.Join(taskDirs[0], "variants"))
		goldenDirs = append(goldenDirs, filepath.Join(goldenDirs[0], "variants"))
	}
	return r.RunSuite(ctx, taskDirs, goldenDirs)
}

// CanaryResult is the gate verdict plus per-task failure details.
type CanaryResult struct {
	Pass     bool
	NumTasks int
	// Failures lists "<task_id>: fail(<check,...>)" per failing canary.
	Failures []string
}

// CanaryGate runs the canary set and checks every task against the
// configured gates. Each failing canary names exactly which checks it
// failed.
func (r *Runner) CanaryGate(ctx context.Context) (CanaryResult, error) {
	rows, err := r.RunSuite(ctx,
		[]string{filepath.Join(r.cfg.Paths.Canary, "w1_localization")},
		[]string{filepath.Join(r.cfg.Paths.Goldens, "w1_localization")},
	)
	if err != nil {
		return CanaryResult{}, err
	}

	w1 := r.cfg.Thresholds.W1
	result := CanaryResult{NumTasks: len(rows)}
	for _, row := range rows {
		var checks []string
		if w1.PathMatchRequired && row.PathMatch != 1 {
			checks = append(checks, "path_match")
		}
		if row.LineIoUMin < w1.LineIoUMin {
			checks = append(checks, "line_iou_min")
		}
		if w1.RequireSymbolMatch && row.SymbolMatch != 1 {
			checks = append(checks, "symbol_match")
		}
		if w1.FaithfulnessRequired && row.Faithful != 1 {
			checks = append(checks, "faithful")
		}
		if len(checks) > 0 {
			result.Failures = append(result.Failures, fmt.Sprintf("%s: fail(%s)", row.TaskID, strings.Join(checks, ",")))
		}
	}

	result.Pass = !r.cfg.Thresholds.Canary.Require100Percent || len(result.Failures) == 0
	if result.Pass {
		zap.L().Info("suite: canary gate passed", zap.Int("canaries", result.NumTasks))
	} else {
		zap.L().Warn("suite: canary gate failed",
			zap.Int("canaries", result.NumTasks),
			zap.Strings("failures", result.Failures),
		)
	}
	return result, nil
}

// variantKinds recognized in task tags for per-kind accuracy breakdown.
var variantKinds = map[string]struct{}{
	"case": {}, "reexport": {}, "test": {}, "vendor": {}, "nearname": {},
}

// Aggregate folds per-task rows into the run summary. Accuracy counts
// tasks whose full pass gate held; latency percentiles use the median
// for p50 and nearest rank for p95.
func Aggregate(runID string, rows []model.EvaluationRow, canaryPass bool) model.RunSummary {
	s := model.RunSummary{
		RunID:                 runID,
		NumTasks:              len(rows),
		CanaryPass:            canaryPass,
		AccuracyByVariantKind: map[string]float64{},
	}
	if len(rows) == 0 {
		return s
	}

	latencies := make([]float64, 0, len(rows))
	passByKind := map[string][]int{}
	var passCount, faithfulCount int
	var iouSum, inSum, outSum float64
	for _, row := range rows {
		if row.Passed == 1 {
			passCount++
		}
		if row.Faithful == 1 {
			faithfulCount++
		}
		iouSum += row.LineIoUAvg
		inSum += float64(row.TokensIn)
		outSum += float64(row.TokensOut)
		latencies = append(latencies, float64(row.LatencyMs))

		kind := "normal"
		for _, tag := range strings.Split(row.Tags, ",") {
			if _, ok := variantKinds[strings.TrimSpace(tag)]; ok {
				kind = strings.TrimSpace(tag)
				break
			}
		}
		passByKind[kind] = append(passByKind[kind], row.Passed)
	}

	n := float64(len(rows))
	s.AccuracyLocalization = float64(passCount) / n
	s.FaithfulnessRate = float64(faithfulCount) / n
	s.LineIoUAvg = iouSum / n
	s.P50LatencyMs = percentileMedian(latencies)
	s.P95LatencyMs = percentileNearestRank(latencies, 0.95)
	s.AvgTokensIn = inSum / n
	s.AvgTokensOut = outSum / n
	s.AvgTokensTotal = s.AvgTokensIn + s.AvgTokensOut
	for kind, passes := range passByKind {
		sum := 0
		for _, p := range passes {
			sum += p
		}
		s.AccuracyByVariantKind[kind] = float64(sum) / float64(len(passes))
	}
	return s
}

// AccuracyPathFaithful is the CLI digest accuracy: the fraction of
// rows that hit a golden path and were judged faithful. It ignores the
// line-overlap and symbol gates, so it is not the persisted
// accuracy_localization (the full pass-gate fraction).
func AccuracyPathFaithful(rows []model.EvaluationRow) float64 {
	if len(rows) == 0 {
		return 0
	}
	hits := 0
	for _, row := range rows {
		if row.PathMatch == 1 && row.Faithful == 1 {
			hits++
		}
	}
	return float64(hits) / float64(len(rows))
}

// percentileMedian is the classic median: mean of the two middle
// values for even-sized inputs.
func percentileMedian(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// percentileNearestRank picks sorted[int(p*(n-1))], the deliberately
// simple estimator the rest of the reporting stack expects.
func percentileNearestRank(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return sorted[int(p*float64(len(sorted)-1))]
}
