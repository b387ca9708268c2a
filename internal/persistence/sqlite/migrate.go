package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type migration struct {
	version    int
	name       string
	statements []string
}

// migrations is append-only. Never edit a released entry; add a new
// version instead.
var migrations = []migration{
	{
		version: 1,
		name:    "core schema",
		statements: []string{
			`CREATE TABLE organizations (
				id         TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				timezone   TEXT NOT NULL DEFAULT 'UTC',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE users (
				id         TEXT PRIMARY KEY,
				org_id     TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
				email      TEXT NOT NULL,
				first_name TEXT NOT NULL,
				last_name  TEXT NOT NULL,
				role       TEXT NOT NULL DEFAULT 'member',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX idx_users_org_email ON users(org_id, email)`,
			`CREATE TABLE batches (
				id           TEXT PRIMARY KEY,
				org_id       TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
				title        TEXT NOT NULL,
				slug         TEXT NOT NULL,
				frequency    TEXT NOT NULL,
				start_date   TEXT NOT NULL,
				end_date     TEXT,
				weekdays     TEXT,
				custom_dates TEXT,
				start_time   TEXT NOT NULL,
				end_time     TEXT NOT NULL,
				session_type TEXT NOT NULL,
				location_spec TEXT,
				radius_meters INTEGER,
				virtual_link TEXT,
				roster       TEXT NOT NULL DEFAULT '[]',
				created_at   TEXT NOT NULL,
				updated_at   TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX idx_batches_org_slug ON batches(org_id, slug)`,
			`CREATE TABLE sessions (
				id            TEXT PRIMARY KEY,
				org_id        TEXT NOT NULL REFERENCES organizations(id) ON DELETE CASCADE,
				batch_id      TEXT REFERENCES batches(id) ON DELETE CASCADE,
				title         TEXT NOT NULL,
				start_date    TEXT NOT NULL,
				end_date      TEXT,
				start_time    TEXT NOT NULL,
				end_time      TEXT,
				session_type  TEXT NOT NULL,
				location_spec TEXT,
				radius_meters INTEGER,
				virtual_link  TEXT,
				roster        TEXT NOT NULL DEFAULT '[]',
				scan_code     TEXT NOT NULL,
				cancelled     INTEGER NOT NULL DEFAULT 0,
				cancellation_reason TEXT,
				completed     INTEGER NOT NULL DEFAULT 0,
				created_at    TEXT NOT NULL,
				updated_at    TEXT NOT NULL
			)`,
			`CREATE INDEX idx_sessions_org_date ON sessions(org_id, start_date)`,
			`CREATE INDEX idx_sessions_batch ON sessions(batch_id)`,
		},
	},
	{
		version: 2,
		name:    "check-ins",
		statements: []string{
			`CREATE TABLE check_ins (
				id            TEXT PRIMARY KEY,
				org_id        TEXT NOT NULL,
				session_id    TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				user_id       TEXT NOT NULL,
				mode          TEXT NOT NULL,
				late          INTEGER NOT NULL DEFAULT 0,
				checked_in_at TEXT NOT NULL
			)`,
			`CREATE UNIQUE INDEX idx_check_ins_session_user ON check_ins(session_id, user_id)`,
		},
	},
	{
		version: 3,
		name:    "open session sweep index",
		statements: []string{
			`CREATE INDEX idx_sessions_open ON sessions(cancelled, completed)`,
		},
	},
}

// Migrate applies every pending migration in order, each inside its own
// transaction. Calling it on an up-to-date database is a no-op.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		name       TEXT NOT NULL,
		applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
	)`); err != nil {
		return fmt.Errorf("sqlite: create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.GetContext(ctx, &current,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := s.withTx(ctx, func(tx *sqlx.Tx) error {
			for _, stmt := range m.statements {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("statement %q: %w", firstLine(stmt), err)
				}
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`,
				m.version, m.name)
			return err
		})
		if err != nil {
			return fmt.Errorf("sqlite: migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func firstLine(stmt string) string {
	for i := 0; i < len(stmt); i++ {
		if stmt[i] == '\n' {
			return stmt[:i]
		}
	}
	return stmt
}
