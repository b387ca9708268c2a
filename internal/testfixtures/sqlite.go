package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/attendance-tracker/internal/persistence"
	"github.com/example/attendance-tracker/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// file for integration-style persistence tests.
type SQLiteHarness struct {
	Organizations persistence.OrganizationRepository
	Users         persistence.UserRepository
	Batches       persistence.BatchRepository
	Sessions      persistence.SessionRepository
	CheckIns      persistence.CheckInRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file
// that is migrated automatically. Callers may optionally invoke Close,
// but the helper also registers a cleanup callback with the provided
// testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "attendance.db")

	store, err := sqlite.Open(path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := store.Migrate(context.Background()); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Organizations: store,
		Users:         store,
		Batches:       store,
		Sessions:      store,
		CheckIns:      store,
		cleanup: func() {
			_ = store.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
