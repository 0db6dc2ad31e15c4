package registry

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/loceval/internal/model"
)

// sqliteStore keeps the ledger in registry/runs.db. WAL plus a busy
// timeout makes concurrent appends from separate processes safe.
type sqliteStore struct {
	db *sql.DB
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	run_id     TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL,
	suite      TEXT NOT NULL,

	accuracy_localization REAL,
	faithfulness_rate     REAL,
	line_iou_avg          REAL,
	p50_latency_ms        REAL,
	p95_latency_ms        REAL,
	avg_tokens_in         REAL,
	avg_tokens_out        REAL,
	avg_tokens_total      REAL,
	canary_pass           INTEGER,

	w2_anchor_coverage_mean      REAL,
	w2_anchor_faithful_rate_mean REAL,
	w2_pass_overall              REAL,
	w2_p95_latency_ms            REAL,
	w2_avg_tokens                REAL
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// openSQLite opens and migrates the SQLite ledger. Failures to open or
// migrate (an unreadable or non-database file, say) surface as
// ErrFormatUnavailable so Open can negotiate down to CSV.
func openSQLite(dir string) (Store, error) {
	path := filepath.Join(dir, "runs.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(ErrFormatUnavailable, "open %s: %v", path, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(ErrFormatUnavailable, "pragma %s: %v", pragma, err)
		}
	}
	if _, err := db.Exec(sqliteMigration); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrapf(ErrFormatUnavailable, "migrate %s: %v", path, err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Append(ctx context.Context, row model.RegistryRow) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, created_at, suite,
			accuracy_localization, faithfulness_rate, line_iou_avg,
			p50_latency_ms, p95_latency_ms,
			avg_tokens_in, avg_tokens_out, avg_tokens_total, canary_pass,
			w2_anchor_coverage_mean, w2_anchor_faithful_rate_mean,
			w2_pass_overall, w2_p95_latency_ms, w2_avg_tokens
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.RunID, row.CreatedAt, row.Suite,
		row.AccuracyLocalization, row.FaithfulnessRate, row.LineIoUAvg,
		row.P50LatencyMs, row.P95LatencyMs,
		row.AvgTokensIn, row.AvgTokensOut, row.AvgTokensTotal, boolPtrToInt(row.CanaryPass),
		row.W2AnchorCoverageMean, row.W2AnchorFaithfulRateMean,
		row.W2PassOverall, row.W2P95LatencyMs, row.W2AvgTokens,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return eris.Wrapf(ErrDuplicateRun, "%s", row.RunID)
		}
		return eris.Wrapf(err, "registry: append run %s", row.RunID)
	}
	return nil
}

const selectColumns = `
	run_id, created_at, suite,
	accuracy_localization, faithfulness_rate, line_iou_avg,
	p50_latency_ms, p95_latency_ms,
	avg_tokens_in, avg_tokens_out, avg_tokens_total, canary_pass,
	w2_anchor_coverage_mean, w2_anchor_faithful_rate_mean,
	w2_pass_overall, w2_p95_latency_ms, w2_avg_tokens`

func (s *sqliteStore) Get(ctx context.Context, runID string) (model.RegistryRow, error) {
	row, err := scanRegistryRow(s.db.QueryRowContext(ctx,
		`SELECT`+selectColumns+` FROM runs WHERE run_id = ?`, runID,
	))
	if err == sql.ErrNoRows {
		return model.RegistryRow{}, eris.Wrapf(ErrRunNotFound, "%s", runID)
	}
	if err != nil {
		return model.RegistryRow{}, eris.Wrapf(err, "registry: get run %s", runID)
	}
	return row, nil
}

func (s *sqliteStore) Last(ctx context.Context, n int) ([]model.RegistryRow, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT`+selectColumns+` FROM runs ORDER BY created_at DESC, run_id DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, eris.Wrap(err, "registry: query last runs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.RegistryRow
	for rows.Next() {
		row, err := scanRegistryRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "registry: scan run")
		}
		out = append(out, row)
	}
	return out, eris.Wrap(rows.Err(), "registry: iterate runs")
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRegistryRow(sc scannable) (model.RegistryRow, error) {
	var row model.RegistryRow
	var canary sql.NullInt64
	err := sc.Scan(
		&row.RunID, &row.CreatedAt, &row.Suite,
		&row.AccuracyLocalization, &row.FaithfulnessRate, &row.LineIoUAvg,
		&row.P50LatencyMs, &row.P95LatencyMs,
		&row.AvgTokensIn, &row.AvgTokensOut, &row.AvgTokensTotal, &canary,
		&row.W2AnchorCoverageMean, &row.W2AnchorFaithfulRateMean,
		&row.W2PassOverall, &row.W2P95LatencyMs, &row.W2AvgTokens,
	)
	if err != nil {
		return model.RegistryRow{}, err
	}
	if canary.Valid {
		v := canary.Int64 == 1
		row.CanaryPass = &v
	}
	return row, nil
}

func boolPtrToInt(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return 1
	}
	return 0
}
