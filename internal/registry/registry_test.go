package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/loceval/internal/model"
)

func w1Row(runID string, createdAt time.Time, accuracy float64) model.RegistryRow {
	canary := true
	return model.RegistryRow{
		RunID:                runID,
		CreatedAt:            createdAt,
		Suite:                "w1",
		AccuracyLocalization: &accuracy,
		P95LatencyMs:         f64(1500),
		AvgTokensIn:          f64(2000),
		AvgTokensOut:         f64(300),
		CanaryPass:           &canary,
	}
}

func f64(v float64) *float64 { return &v }

// backends runs the same conformance suite against every Store
// implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqliteDir := t.TempDir()
	s, err := openSQLite(sqliteDir)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() }) //nolint:errcheck

	c, err := openCSV(t.TempDir())
	require.NoError(t, err)
	return map[string]Store{"sqlite": s, "csv": c}
}

func TestStoreAppendAndGet(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			row := w1Row("run00001", time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC), 0.85)
			require.NoError(t, store.Append(ctx, row))

			got, err := store.Get(ctx, "run00001")
			require.NoError(t, err)
			assert.Equal(t, "run00001", got.RunID)
			assert.Equal(t, "w1", got.Suite)
			require.NotNil(t, got.AccuracyLocalization)
			assert.InDelta(t, 0.85, *got.AccuracyLocalization, 1e-9)
			require.NotNil(t, got.CanaryPass)
			assert.True(t, *got.CanaryPass)
			// W2 metrics were never set for a w1 run.
			assert.Nil(t, got.W2PassOverall)
		})
	}
}

func TestStoreDuplicateRunID(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			row := w1Row("run00001", time.Now().UTC(), 0.85)
			require.NoError(t, store.Append(ctx, row))

			err := store.Append(ctx, row)
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrDuplicateRun))
		})
	}
}

func TestStoreGetMissing(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(context.Background(), "nope")
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrRunNotFound))
		})
	}
}

func TestStoreLastNewestFirst(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
			for i, id := range []string{"run-a", "run-b", "run-c"} {
				require.NoError(t, store.Append(ctx, w1Row(id, base.Add(time.Duration(i)*time.Hour), 0.5)))
			}

			rows, err := store.Last(ctx, 2)
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, "run-c", rows[0].RunID)
			assert.Equal(t, "run-b", rows[1].RunID)

			rows, err = store.Last(ctx, 100)
			require.NoError(t, err)
			assert.Len(t, rows, 3)
		})
	}
}

func TestStoreW2Row(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			row := model.RegistryRow{
				RunID:         "w2run001",
				CreatedAt:     time.Now().UTC(),
				Suite:         "w2",
				W2PassOverall: f64(0.75),
				W2AvgTokens:   f64(2400),
			}
			require.NoError(t, store.Append(ctx, row))

			got, err := store.Get(ctx, "w2run001")
			require.NoError(t, err)
			assert.Equal(t, "w2", got.Suite)
			require.NotNil(t, got.W2PassOverall)
			assert.InDelta(t, 0.75, *got.W2PassOverall, 1e-9)
			assert.Nil(t, got.AccuracyLocalization)
			assert.Nil(t, got.CanaryPass)
		})
	}
}

func TestOpenPrefersSQLite(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close() //nolint:errcheck

	assert.IsType(t, &sqliteStore{}, store)
	require.NoError(t, store.Append(context.Background(), w1Row("run00001", time.Now().UTC(), 0.9)))
	assert.FileExists(t, filepath.Join(dir, "runs.db"))
}

func TestOpenMissingDir(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestOpenSurvivesAcrossProcessesLikeReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, w1Row("run00001", time.Now().UTC(), 0.8)))
	require.NoError(t, store.Close())

	store, err = Open(dir)
	require.NoError(t, err)
	defer store.Close() //nolint:errcheck
	got, err := store.Get(ctx, "run00001")
	require.NoError(t, err)
	require.NotNil(t, got.AccuracyLocalization)
	assert.InDelta(t, 0.8, *got.AccuracyLocalization, 1e-9)
}

func TestCSVAppendPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := openCSV(dir)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, w1Row("run00001", time.Now().UTC(), 0.8)))
	require.NoError(t, store.Append(ctx, w1Row("run00002", time.Now().UTC(), 0.9)))

	reopened, err := openCSV(dir)
	require.NoError(t, err)
	rows, err := reopened.Last(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	data, err := os.ReadFile(filepath.Join(dir, "runs.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "run_id,created_at,suite")
}
