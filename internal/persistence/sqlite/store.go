// Package sqlite implements the persistence repositories on SQLite via
// the modernc driver. Dates and times travel as TEXT: calendar dates as
// YYYY-MM-DD, clock times as HH:MM, and instants as RFC 3339 in UTC.
package sqlite

import (
	"context"
	"fmt"
	"net/url"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/example/attendance-tracker/internal/persistence"
)

// Store owns one SQLite database handle and implements every
// persistence repository. It is safe for concurrent use.
type Store struct {
	db *sqlx.DB
}

var (
	_ persistence.OrganizationRepository = (*Store)(nil)
	_ persistence.UserRepository         = (*Store)(nil)
	_ persistence.BatchRepository        = (*Store)(nil)
	_ persistence.SessionRepository      = (*Store)(nil)
	_ persistence.CheckInRepository      = (*Store)(nil)
)

// Open opens the database at path, creating it if necessary, and
// applies the pragmas the store depends on. Call Migrate before using
// the repositories.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		url.PathEscape(path),
	)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// The driver serializes writes anyway; a single connection keeps
	// concurrent transactions from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type txFunc func(tx *sqlx.Tx) error

// withTx runs fn inside a transaction, rolling back on error or panic.
func (s *Store) withTx(ctx context.Context, fn txFunc) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("sqlite: transaction failed (rollback error: %v): %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit transaction: %w", err)
	}
	return nil
}
