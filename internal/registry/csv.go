package registry

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/loceval/internal/model"
)

// csvStore keeps the ledger in registry/runs.csv with a fixed column
// set. Appends are single O_APPEND writes; reads load the whole file.
type csvStore struct {
	path string
}

var csvHeader = []string{
	"run_id", "created_at", "suite",
	"accuracy_localization", "faithfulness_rate", "line_iou_avg",
	"p50_latency_ms", "p95_latency_ms",
	"avg_tokens_in", "avg_tokens_out", "avg_tokens_total", "canary_pass",
	"w2_anchor_coverage_mean", "w2_anchor_faithful_rate_mean",
	"w2_pass_overall", "w2_p95_latency_ms", "w2_avg_tokens",
}

func openCSV(dir string) (Store, error) {
	return &csvStore{path: filepath.Join(dir, "runs.csv")}, nil
}

func (s *csvStore) Append(ctx context.Context, row model.RegistryRow) error {
	existing, err := s.readAll()
	if err != nil {
		return err
	}
	for _, r := range existing {
		if r.RunID == row.RunID {
			return eris.Wrapf(ErrDuplicateRun, "%s", row.RunID)
		}
	}

	_, statErr := os.Stat(s.path)
	writeHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "registry: open %s", s.path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if writeHeader {
		if err := w.Write(csvHeader); err != nil {
			return eris.Wrap(err, "registry: write header")
		}
	}
	if err := w.Write(csvRecord(row)); err != nil {
		return eris.Wrapf(err, "registry: write run %s", row.RunID)
	}
	w.Flush()
	return eris.Wrap(w.Error(), "registry: flush")
}

func (s *csvStore) Get(ctx context.Context, runID string) (model.RegistryRow, error) {
	rows, err := s.readAll()
	if err != nil {
		return model.RegistryRow{}, err
	}
	for _, r := range rows {
		if r.RunID == runID {
			return r, nil
		}
	}
	return model.RegistryRow{}, eris.Wrapf(ErrRunNotFound, "%s", runID)
}

func (s *csvStore) Last(ctx context.Context, n int) ([]model.RegistryRow, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.readAll()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].RunID > rows[j].RunID
	})
	if len(rows) > n {
		rows = rows[:n]
	}
	return rows, nil
}

func (s *csvStore) Close() error { return nil }

func (s *csvStore) readAll() ([]model.RegistryRow, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "registry: open %s", s.path)
	}
	defer f.Close() //nolint:errcheck

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, eris.Wrapf(err, "registry: parse %s", s.path)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	rows := make([]model.RegistryRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		row, err := parseCSVRecord(rec)
		if err != nil {
			return nil, eris.Wrapf(err, "registry: parse row in %s", s.path)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func csvRecord(row model.RegistryRow) []string {
	return []string{
		row.RunID,
		row.CreatedAt.UTC().Format(time.RFC3339Nano),
		row.Suite,
		floatField(row.AccuracyLocalization),
		floatField(row.FaithfulnessRate),
		floatField(row.LineIoUAvg),
		floatField(row.P50LatencyMs),
		floatField(row.P95LatencyMs),
		floatField(row.AvgTokensIn),
		floatField(row.AvgTokensOut),
		floatField(row.AvgTokensTotal),
		boolField(row.CanaryPass),
		floatField(row.W2AnchorCoverageMean),
		floatField(row.W2AnchorFaithfulRateMean),
		floatField(row.W2PassOverall),
		floatField(row.W2P95LatencyMs),
		floatField(row.W2AvgTokens),
	}
}

func parseCSVRecord(rec []string) (model.RegistryRow, error) {
	if len(rec) != len(csvHeader) {
		return model.RegistryRow{}, eris.Errorf("expected %d fields, got %d", len(csvHeader), len(rec))
	}
	createdAt, err := time.Parse(time.RFC3339Nano, rec[1])
	if err != nil {
		return model.RegistryRow{}, eris.Wrap(err, "parse created_at")
	}
	row := model.RegistryRow{RunID: rec[0], CreatedAt: createdAt, Suite: rec[2]}

	floats := []**float64{
		&row.AccuracyLocalization, &row.FaithfulnessRate, &row.LineIoUAvg,
		&row.P50LatencyMs, &row.P95LatencyMs,
		&row.AvgTokensIn, &row.AvgTokensOut, &row.AvgTokensTotal,
	}
	for i, dst := range floats {
		v, err := parseFloatField(rec[3+i])
		if err != nil {
			return model.RegistryRow{}, err
		}
		*dst = v
	}
	if rec[11] != "" {
		v := rec[11] == "true"
		row.CanaryPass = &v
	}
	w2 := []**float64{
		&row.W2AnchorCoverageMean, &row.W2AnchorFaithfulRateMean,
		&row.W2PassOverall, &row.W2P95LatencyMs, &row.W2AvgTokens,
	}
	for i, dst := range w2 {
		v, err := parseFloatField(rec[12+i])
		if err != nil {
			return model.RegistryRow{}, err
		}
		*dst = v
	}
	return row, nil
}

func parseFloatField(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, eris.Wrapf(err, "parse float %q", s)
	}
	return &v, nil
}

func floatField(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func boolField(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}
