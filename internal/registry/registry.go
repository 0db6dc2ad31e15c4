// Package registry is the append-only cross-run ledger. The preferred
// backend is SQLite; when that backend cannot be established the store
// falls back to a flat CSV file. The fallback is an explicit format
// negotiation: only ErrFormatUnavailable triggers it, every other
// error propagates.
package registry

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/loceval/internal/model"
)

// ErrFormatUnavailable marks a backend that cannot serve this registry
// directory. Open falls back to the next format on this error only.
var ErrFormatUnavailable = eris.New("registry: format unavailable")

// ErrDuplicateRun is returned when a run id is appended twice.
var ErrDuplicateRun = eris.New("registry: duplicate run_id")

// ErrRunNotFound is returned when a run id is absent from the ledger.
var ErrRunNotFound = eris.New("registry: run not found")

// Store is the run ledger. Rows are append-only; nothing updates or
// deletes them.
type Store interface {
	// Append adds one run row. Appending an existing run_id fails with
	// ErrDuplicateRun.
	Append(ctx context.Context, row model.RegistryRow) error
	// Get returns the row for one run id, or ErrRunNotFound.
	Get(ctx context.Context, runID string) (model.RegistryRow, error)
	// Last returns up to n rows, newest first.
	Last(ctx context.Context, n int) ([]model.RegistryRow, error)
	Close() error
}

// Open negotiates a backend for the registry directory: SQLite first,
// CSV when SQLite reports itself unavailable.
func Open(dir string) (Store, error) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, eris.Errorf("registry: directory %s does not exist", dir)
	}

	store, err := openSQLite(dir)
	if err == nil {
		return store, nil
	}
	if !eris.Is(err, ErrFormatUnavailable) {
		return nil, err
	}
	zap.L().Warn("registry: sqlite unavailable, falling back to csv",
		zap.String("dir", dir),
		zap.Error(err),
	)
	return openCSV(dir)
}
