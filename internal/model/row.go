package model

import "time"

// EvaluationRow is one localization task's scores within a run.
// Rows are append-only within a run and immutable once written.
type EvaluationRow struct {
	TaskID             string  `json:"task_id"`
	PathMatch          int     `json:"path_match"`
	LineIoUAvg         float64 `json:"line_iou_avg"`
	LineIoUMin         float64 `json:"line_iou_min"`
	SymbolMatch        int     `json:"symbol_match"`
	SymbolPresenceRate float64 `json:"symbol_presence_rate"`
	Faithful           int     `json:"faithful"`
	FaithfulnessReason string  `json:"faithfulness_reason"`
	LabelPrimary       string  `json:"label_primary"`
	LabelSecondary     string  `json:"label_secondary"`
	LatencyMs          int64   `json:"latency_ms"`
	TokensIn           int64   `json:"tokens_in"`
	TokensOut          int64   `json:"tokens_out"`
	ContextTokens      int64   `json:"context_tokens"`
	Passed             int     `json:"passed"`
	Tags               string  `json:"tags,omitempty"`
}

// ImpactRow is one change-impact task's scores within a run.
type ImpactRow struct {
	TaskID             string  `json:"task_id"`
	AnchorsRequired    int     `json:"anchors_required"`
	AnchorsFound       int     `json:"anchors_found"`
	AnchorCoverage     float64 `json:"anchor_coverage"`
	AnchorsFaithful    int     `json:"anchors_faithful"`
	AnchorFaithfulRate float64 `json:"anchor_faithful_rate"`
	ForbiddenHit       int     `json:"forbidden_hit"`
	JudgeUsed          int     `json:"judge_used"`
	JudgePass          int     `json:"judge_pass"`
	FaithfulOverall    int     `json:"faithful_overall"`
	LabelPrimary       string  `json:"label_primary"`
	LabelSecondary     string  `json:"label_secondary"`
	LatencyMs          int64   `json:"latency_ms"`
	TokensIn           int64   `json:"tokens_in"`
	TokensOut          int64   `json:"tokens_out"`
}

// RunSummary aggregates a localization run.
type RunSummary struct {
	RunID                 string             `json:"run_id"`
	NumTasks              int                `json:"num_tasks"`
	AccuracyLocalization  float64            `json:"accuracy_localization"`
	FaithfulnessRate      float64            `json:"faithfulness_rate"`
	LineIoUAvg            float64            `json:"line_iou_avg"`
	P50LatencyMs          float64            `json:"p50_latency_ms"`
	P95LatencyMs          float64            `json:"p95_latency_ms"`
	AvgTokensIn           float64            `json:"avg_tokens_in"`
	AvgTokensOut          float64            `json:"avg_tokens_out"`
	AvgTokensTotal        float64            `json:"avg_tokens_total"`
	CanaryPass            bool               `json:"canary_pass"`
	AccuracyByVariantKind map[string]float64 `json:"accuracy_by_variant_kind,omitempty"`
}

// ImpactSummary aggregates a change-impact run.
type ImpactSummary struct {
	RunID                  string  `json:"run_id"`
	NumTasks               int     `json:"num_tasks"`
	AnchorCoverageMean     float64 `json:"anchor_coverage_mean"`
	AnchorFaithfulRateMean float64 `json:"anchor_faithful_rate_mean"`
	PassDetCore            float64 `json:"pass_det_core"`
	PassOverall            float64 `json:"pass_overall"`
	P95LatencyMs           float64 `json:"p95_latency_ms"`
	AvgTokens              float64 `json:"avg_tokens"`
}

// RegistryRow is the durable flattened subset of a run summary that
// lands in the cross-run registry. run_id is unique within the
// registry. Metric pointers are nil for the workflow a run did not
// execute.
type RegistryRow struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Suite     string    `json:"suite"`

	AccuracyLocalization *float64 `json:"accuracy_localization,omitempty"`
	FaithfulnessRate     *float64 `json:"faithfulness_rate,omitempty"`
	LineIoUAvg           *float64 `json:"line_iou_avg,omitempty"`
	P50LatencyMs         *float64 `json:"p50_latency_ms,omitempty"`
	P95LatencyMs         *float64 `json:"p95_latency_ms,omitempty"`
	AvgTokensIn          *float64 `json:"avg_tokens_in,omitempty"`
	AvgTokensOut         *float64 `json:"avg_tokens_out,omitempty"`
	AvgTokensTotal       *float64 `json:"avg_tokens_total,omitempty"`
	CanaryPass           *bool    `json:"canary_pass,omitempty"`

	W2AnchorCoverageMean     *float64 `json:"w2_anchor_coverage_mean,omitempty"`
	W2AnchorFaithfulRateMean *float64 `json:"w2_anchor_faithful_rate_mean,omitempty"`
	W2PassOverall            *float64 `json:"w2_pass_overall,omitempty"`
	W2P95LatencyMs           *float64 `json:"w2_p95_latency_ms,omitempty"`
	W2AvgTokens              *float64 `json:"w2_avg_tokens,omitempty"`
}

// RegistryRowFromSummary flattens a localization summary.
func RegistryRowFromSummary(s RunSummary) RegistryRow {
	canary := s.CanaryPass
	return RegistryRow{
		RunID:                s.RunID,
		CreatedAt:            time.Now().UTC(),
		Suite:                "w1",
		AccuracyLocalization: f64ptr(s.AccuracyLocalization),
		FaithfulnessRate:     f64ptr(s.FaithfulnessRate),
		LineIoUAvg:           f64ptr(s.LineIoUAvg),
		P50LatencyMs:         f64ptr(s.P50LatencyMs),
		P95LatencyMs:         f64ptr(s.P95LatencyMs),
		AvgTokensIn:          f64ptr(s.AvgTokensIn),
		AvgTokensOut:         f64ptr(s.AvgTokensOut),
		AvgTokensTotal:       f64ptr(s.AvgTokensTotal),
		CanaryPass:           &canary,
	}
}

// RegistryRowFromImpactSummary flattens a change-impact summary.
func RegistryRowFromImpactSummary(s ImpactSummary) RegistryRow {
	return RegistryRow{
		RunID:                    s.RunID,
		CreatedAt:                time.Now().UTC(),
		Suite:                    "w2",
		W2AnchorCoverageMean:     f64ptr(s.AnchorCoverageMean),
		W2AnchorFaithfulRateMean: f64ptr(s.AnchorFaithfulRateMean),
		W2PassOverall:            f64ptr(s.PassOverall),
		W2P95LatencyMs:           f64ptr(s.P95LatencyMs),
		W2AvgTokens:              f64ptr(s.AvgTokens),
	}
}

func f64ptr(v float64) *float64 { return &v }
