package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/loceval/internal/config"
	"github.com/sells-group/loceval/internal/model"
	"github.com/sells-group/loceval/internal/suite"
)

func TestPrintCanary(t *testing.T) {
	cfg = &config.Config{Thresholds: config.ThresholdsConfig{W1: config.W1Thresholds{LineIoUMin: 0.6}}}

	var buf bytes.Buffer
	printCanary(&buf, suite.CanaryResult{Pass: true, NumTasks: 3})
	assert.Contains(t, buf.String(), "Canaries: 3 | thresholds.w1.line_iou_min=0.6")
	assert.Contains(t, buf.String(), "Canary gate PASSED")

	buf.Reset()
	printCanary(&buf, suite.CanaryResult{
		Pass:     false,
		NumTasks: 3,
		Failures: []string{"W1-C02: fail(path_match,faithful)"},
	})
	assert.Contains(t, buf.String(), "Canary gate FAILED:")
	assert.Contains(t, buf.String(), "- W1-C02: fail(path_match,faithful)")
}

func TestPrintRunSummaryEmpty(t *testing.T) {
	var buf bytes.Buffer
	printRunSummary(&buf, model.RunSummary{}, nil)
	assert.Equal(t, "No tasks.\n", buf.String())
}

func TestPrintRunSummaryDigestAccuracy(t *testing.T) {
	// A row can hit the golden path faithfully and still fail the full
	// pass gate on line overlap; the digest counts it, the persisted
	// accuracy does not.
	rows := []model.EvaluationRow{
		{PathMatch: 1, Faithful: 1, Passed: 0, LabelPrimary: "wrong_line"},
	}
	summary := model.RunSummary{RunID: "ab12cd34", AccuracyLocalization: 0.0}

	var buf bytes.Buffer
	printRunSummary(&buf, summary, rows)
	assert.Contains(t, buf.String(), "Accuracy: 1.00")
}

func TestPrintTopFailureLabels(t *testing.T) {
	rows := []model.EvaluationRow{
		{Passed: 1, LabelPrimary: "ok"},
		{Passed: 0, LabelPrimary: "wrong_path"},
		{Passed: 0, LabelPrimary: "wrong_path"},
		{Passed: 0, LabelPrimary: "wrong_line"},
		{Passed: 0, LabelPrimary: "wrong_line"},
		{Passed: 0, LabelPrimary: "missing_path"},
		{Passed: 0, LabelPrimary: "missing_path"},
		{Passed: 0, LabelPrimary: "missing_path"},
		{Passed: 0, LabelPrimary: "symbol_absent"},
	}

	var buf bytes.Buffer
	printTopFailureLabels(&buf, rows)
	out := buf.String()

	assert.Contains(t, out, "Top failure labels:")
	assert.Contains(t, out, "- missing_path: 3")
	assert.Contains(t, out, "- wrong_path: 2")
	// Only the top three labels appear.
	assert.NotContains(t, out, "symbol_absent")
	assert.NotContains(t, out, "ok")
}

func TestPrintTopFailureLabelsAllPassed(t *testing.T) {
	var buf bytes.Buffer
	printTopFailureLabels(&buf, []model.EvaluationRow{{Passed: 1, LabelPrimary: "ok"}})
	assert.Empty(t, buf.String())
}

func TestFormatRunsListCells(t *testing.T) {
	acc := 0.85
	canary := true
	rows := []model.RegistryRow{
		{RunID: "run00001", Suite: "w1", CreatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC), AccuracyLocalization: &acc, CanaryPass: &canary},
		{RunID: "run00002", Suite: "w2"},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, rows)
	out := buf.String()

	assert.Contains(t, out, "RUN_ID")
	assert.Contains(t, out, "run00001")
	assert.Contains(t, out, "0.85")
	assert.Contains(t, out, "pass")
	// The w2 row shows dashes for w1-only columns.
	assert.Contains(t, out, "run00002")
	assert.Contains(t, out, "-")
}
