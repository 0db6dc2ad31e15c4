// Package report persists run artifacts. Each run gets its own
// directory under the reports root containing the summary and the
// per-task table in every requested format.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/loceval/internal/model"
)

// table is a per-task result set flattened to strings, shared by the
// CSV and XLSX writers.
type table struct {
	header []string
	rows   [][]string
}

var localizationHeader = []string{
	"task_id", "path_match", "line_iou_avg", "line_iou_min",
	"symbol_match", "symbol_presence_rate", "faithful", "faithfulness_reason",
	"label_primary", "label_secondary", "latency_ms",
	"tokens_in", "tokens_out", "context_tokens", "passed", "tags",
}

var impactHeader = []string{
	"task_id", "anchors_required", "anchors_found", "anchor_coverage",
	"anchors_faithful", "anchor_faithful_rate", "forbidden_hit",
	"judge_used", "judge_pass", "faithful_overall",
	"label_primary", "label_secondary", "latency_ms", "tokens_in", "tokens_out",
}

func localizationTable(rows []model.EvaluationRow) table {
	t := table{header: localizationHeader}
	for _, r := range rows {
		t.rows = append(t.rows, []string{
			r.TaskID,
			strconv.Itoa(r.PathMatch),
			formatFloat(r.LineIoUAvg),
			formatFloat(r.LineIoUMin),
			strconv.Itoa(r.SymbolMatch),
			formatFloat(r.SymbolPresenceRate),
			strconv.Itoa(r.Faithful),
			r.FaithfulnessReason,
			r.LabelPrimary,
			r.LabelSecondary,
			strconv.FormatInt(r.LatencyMs, 10),
			strconv.FormatInt(r.TokensIn, 10),
			strconv.FormatInt(r.TokensOut, 10),
			strconv.FormatInt(r.ContextTokens, 10),
			strconv.Itoa(r.Passed),
			r.Tags,
		})
	}
	return t
}

func impactTable(rows []model.ImpactRow) table {
	t := table{header: impactHeader}
	for _, r := range rows {
		t.rows = append(t.rows, []string{
			r.TaskID,
			strconv.Itoa(r.AnchorsRequired),
			strconv.Itoa(r.AnchorsFound),
			formatFloat(r.AnchorCoverage),
			strconv.Itoa(r.AnchorsFaithful),
			formatFloat(r.AnchorFaithfulRate),
			strconv.Itoa(r.ForbiddenHit),
			strconv.Itoa(r.JudgeUsed),
			strconv.Itoa(r.JudgePass),
			strconv.Itoa(r.FaithfulOverall),
			r.LabelPrimary,
			r.LabelSecondary,
			strconv.FormatInt(r.LatencyMs, 10),
			strconv.FormatInt(r.TokensIn, 10),
			strconv.FormatInt(r.TokensOut, 10),
		})
	}
	return t
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteLocalization writes a localization run's artifacts: summary.json
// and by_task.json always, by_task.csv and by_task.xlsx per the
// requested formats.
func WriteLocalization(reportsDir, runID string, rows []model.EvaluationRow, summary model.RunSummary, formats []string) (string, error) {
	return writeRun(reportsDir, runID, "by_task", localizationTable(rows), rows, summary, formats)
}

// WriteImpact writes a change-impact run's artifacts using the
// w2-prefixed table names alongside the shared summary.
func WriteImpact(reportsDir, runID string, rows []model.ImpactRow, summary model.ImpactSummary, formats []string) (string, error) {
	return writeRun(reportsDir, runID, "w2_by_task", impactTable(rows), rows, summary, formats)
}

func writeRun(reportsDir, runID, tableName string, tbl table, rows any, summary any, formats []string) (string, error) {
	runDir := filepath.Join(reportsDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", eris.Wrapf(err, "report: create run dir %s", runDir)
	}

	if err := writeJSON(filepath.Join(runDir, "summary.json"), summary); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, tableName+".json"), rows); err != nil {
		return "", err
	}

	for _, format := range formats {
		switch format {
		case "json":
			// Always written above.
		case "csv":
			if err := writeCSV(filepath.Join(runDir, tableName+".csv"), tbl); err != nil {
				return "", err
			}
		case "xlsx":
			// Spreadsheet export is best effort; a failure never sinks
			// the run whose JSON artifacts already exist.
			if err := writeXLSX(filepath.Join(runDir, tableName+".xlsx"), tbl); err != nil {
				zap.L().Warn("report: xlsx export skipped", zap.Error(err))
			}
		default:
			zap.L().Warn("report: unknown format ignored", zap.String("format", format))
		}
	}

	zap.L().Info("report: run artifacts written",
		zap.String("run_id", runID),
		zap.String("dir", runDir),
		zap.Int("tasks", len(tbl.rows)),
	)
	return runDir, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "report: marshal %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "report: write %s", path)
	}
	return nil
}

func writeCSV(path string, tbl table) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(tbl.header); err != nil {
		return eris.Wrapf(err, "report: write header %s", path)
	}
	for _, row := range tbl.rows {
		if err := w.Write(row); err != nil {
			return eris.Wrapf(err, "report: write row %s", path)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "report: flush %s", path)
	}
	return nil
}

func writeXLSX(path string, tbl table) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("by_task")
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}
	addRow(sheet, tbl.header)
	for _, row := range tbl.rows {
		addRow(sheet, row)
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save %s", path)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

// ReadSummary loads a run's summary.json back for cross-validation.
func ReadSummary(reportsDir, runID string) (model.RunSummary, error) {
	path := filepath.Join(reportsDir, runID, "summary.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return model.RunSummary{}, eris.Wrapf(err, "report: read %s", path)
	}
	var s model.RunSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return model.RunSummary{}, eris.Wrapf(err, "report: parse %s", path)
	}
	return s, nil
}

// ListRuns returns the run ids present under the reports root, sorted.
func ListRuns(reportsDir string) ([]string, error) {
	entries, err := os.ReadDir(reportsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "report: list %s", reportsDir)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// SummaryLine renders the one-line CLI digest of a localization run.
// accuracy is the digest's path-and-faithful fraction, which is
// stricter than the persisted pass-gate accuracy_localization and is
// computed from the rows by the caller.
func SummaryLine(s model.RunSummary, accuracy float64) string {
	return fmt.Sprintf(
		"Accuracy: %.2f | Faithfulness Rate: %.2f | Avg IoU: %.2f | p95 Latency: %.0f ms | Avg Tokens: %.1f",
		accuracy, s.FaithfulnessRate, s.LineIoUAvg, s.P95LatencyMs, s.AvgTokensTotal,
	)
}
