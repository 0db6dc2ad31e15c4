package suite

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/loceval/internal/judge"
	"github.com/sells-group/loceval/internal/metrics"
	"github.com/sells-group/loceval/internal/model"
	"github.com/sells-group/loceval/internal/taskstore"
)

// impactCore is the deterministic part of a change-impact score: how
// many required anchors were cited, and how many were grounded.
type impactCore struct {
	faith              metrics.FaithfulnessVerdict
	anchorsRequired    int
	anchorsFound       int
	anchorCoverage     float64
	anchorsFaithful    int
	anchorFaithfulRate float64
	forbiddenHit       bool
}

// deterministicCore scores one change-impact prediction without the
// judge. An anchor counts as found when any citation names its path,
// and as faithful when the anchor symbol appears in the rationale and
// some citation range overlaps an example quote for that path at or
// above the IoU floor. Forbidden claims are plain substring hits in
// the rationale.
func (r *Runner) deterministicCore(pred model.Prediction, golden model.Golden) impactCore {
	core := impactCore{
		faith:           metrics.EvaluateFaithfulness(pred.Answer, pred.Citations),
		anchorsRequired: len(golden.RequiredAnchors),
	}
	iouMin := r.cfg.Thresholds.W1.LineIoUMin

	for _, anchor := range golden.RequiredAnchors {
		var cited []model.Citation
		for _, c := range pred.Citations {
			if c.Path == anchor.Path {
				cited = append(cited, c)
			}
		}
		if len(cited) == 0 {
			continue
		}
		core.anchorsFound++

		if anchor.Symbol != "" && !strings.Contains(pred.Answer.Rationale, anchor.Symbol) {
			continue
		}
		if anchorGrounded(cited, golden.ExampleQuotes, anchor.Path, iouMin) {
			core.anchorsFaithful++
		}
	}

	for _, claim := range golden.ForbiddenClaims {
		if claim != "" && strings.Contains(pred.Answer.Rationale, claim) {
			core.forbiddenHit = true
			break
		}
	}

	if core.anchorsRequired > 0 {
		core.anchorCoverage = float64(core.anchorsFound) / float64(core.anchorsRequired)
		core.anchorFaithfulRate = float64(core.anchorsFaithful) / float64(core.anchorsRequired)
	}
	return core
}

// anchorGrounded reports whether any citation for the anchor path
// overlaps any example quote for that path at iouMin or better.
func anchorGrounded(cited []model.Citation, examples []model.QuoteRange, path string, iouMin float64) bool {
	for _, ex := range examples {
		if ex.Path != path {
			continue
		}
		quote := model.LineRange{Start: ex.Start, End: ex.End}
		for _, c := range cited {
			if metrics.IoU(model.LineRange{Start: c.Start, End: c.End}, quote) >= iouMin {
				return true
			}
		}
	}
	return false
}

// EvaluateImpactTask scores one change-impact prediction, including
// the judge verdict. The judge is advisory: it lands in the row but
// never flips the deterministic faithful_overall.
func (r *Runner) EvaluateImpactTask(ctx context.Context, task model.Task, pred model.Prediction, golden model.Golden, j judge.Judge) model.ImpactRow {
	core := r.deterministicCore(pred, golden)

	verdict, err := j.Evaluate(ctx, pred.Answer, golden)
	if err != nil {
		zap.L().Warn("suite: judge failed, scoring deterministically",
			zap.String("task_id", task.ID),
			zap.Error(err),
		)
		verdict = judge.Verdict{Used: true, Pass: false, Reasons: []string{"judge_error"}}
	}

	faithfulOverall := 0
	if core.anchorFaithfulRate == 1.0 && !core.forbiddenHit &&
		(core.faith.Faithful == 1 || !r.cfg.Thresholds.W1.FaithfulnessRequired) {
		faithfulOverall = 1
	}

	labels := metrics.MapImpactLabels(
		core.forbiddenHit, core.anchorsFound, core.anchorsFaithful, core.anchorsRequired,
		pred, r.thresholds(),
	)

	return model.ImpactRow{
		TaskID:             task.ID,
		AnchorsRequired:    core.anchorsRequired,
		AnchorsFound:       core.anchorsFound,
		AnchorCoverage:     core.anchorCoverage,
		AnchorsFaithful:    core.anchorsFaithful,
		AnchorFaithfulRate: core.anchorFaithfulRate,
		ForbiddenHit:       boolToInt(core.forbiddenHit),
		JudgeUsed:          boolToInt(verdict.Used),
		JudgePass:          boolToInt(verdict.Pass),
		FaithfulOverall:    faithfulOverall,
		LabelPrimary:       labels.Primary,
		LabelSecondary:     strings.Join(labels.Secondary, ","),
		LatencyMs:          pred.Timing.LatencyMs,
		TokensIn:           pred.Tokens.In,
		TokensOut:          pred.Tokens.Out,
	}
}

// RunImpact runs the full change-impact suite.
func (r *Runner) RunImpact(ctx context.Context, j judge.Judge) ([]model.ImpactRow, error) {
	tasks, err := taskstore.LoadTasks(filepath.Join(r.cfg.Paths.Scenarios, "w2_change_impact"))
	if err != nil {
		return nil, err
	}
	goldens, err := taskstore.LoadGoldens(filepath.Join(r.cfg.Paths.Goldens, "w2_change_impact"))
	if err != nil {
		return nil, err
	}

	rows := make([]model.ImpactRow, 0, len(tasks))
	for _, task := range tasks {
		pred := r.invoke(ctx, task)
		row := r.EvaluateImpactTask(ctx, task, pred, goldens[task.ID], j)
		rows = append(rows, row)
		zap.L().Debug("suite: impact task scored",
			zap.String("task_id", task.ID),
			zap.Int("faithful_overall", row.FaithfulOverall),
			zap.String("label", row.LabelPrimary),
		)
	}
	return rows, nil
}

// AggregateImpact folds per-task impact rows into the run summary.
func AggregateImpact(runID string, rows []model.ImpactRow) model.ImpactSummary {
	s := model.ImpactSummary{RunID: runID, NumTasks: len(rows)}
	if len(rows) == 0 {
		return s
	}

	latencies := make([]float64, 0, len(rows))
	var coverageSum, faithRateSum, inSum, outSum float64
	var detCore, overall int
	for _, row := range rows {
		coverageSum += row.AnchorCoverage
		faithRateSum += row.AnchorFaithfulRate
		inSum += float64(row.TokensIn)
		outSum += float64(row.TokensOut)
		latencies = append(latencies, float64(row.LatencyMs))
		if row.AnchorFaithfulRate == 1.0 && row.ForbiddenHit == 0 {
			detCore++
		}
		if row.FaithfulOverall == 1 {
			overall++
		}
	}

	n := float64(len(rows))
	s.AnchorCoverageMean = coverageSum / n
	s.AnchorFaithfulRateMean = faithRateSum / n
	s.PassDetCore = float64(detCore) / n
	s.PassOverall = float64(overall) / n
	s.P95LatencyMs = percentileNearestRank(latencies, 0.95)
	s.AvgTokens = inSum/n + outSum/n
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
