package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/attendance-tracker/internal/persistence"
)

type sessionRow struct {
	ID                 string  `db:"id"`
	OrgID              string  `db:"org_id"`
	BatchID            *string `db:"batch_id"`
	Title              string  `db:"title"`
	StartDate          string  `db:"start_date"`
	EndDate            *string `db:"end_date"`
	StartTime          string  `db:"start_time"`
	EndTime            *string `db:"end_time"`
	SessionType        string  `db:"session_type"`
	LocationSpec       *string `db:"location_spec"`
	RadiusMeters       *int    `db:"radius_meters"`
	VirtualLink        *string `db:"virtual_link"`
	Roster             string  `db:"roster"`
	ScanCode           string  `db:"scan_code"`
	Cancelled          bool    `db:"cancelled"`
	CancellationReason *string `db:"cancellation_reason"`
	Completed          bool    `db:"completed"`
	CreatedAt          string  `db:"created_at"`
	UpdatedAt          string  `db:"updated_at"`
}

func newSessionRow(session persistence.Session) (sessionRow, error) {
	roster, err := encodeRoster(session.Roster)
	if err != nil {
		return sessionRow{}, err
	}
	return sessionRow{
		ID:                 session.ID,
		OrgID:              session.OrgID,
		BatchID:            session.BatchID,
		Title:              session.Title,
		StartDate:          session.StartDate,
		EndDate:            session.EndDate,
		StartTime:          session.StartTime,
		EndTime:            session.EndTime,
		SessionType:        session.SessionType,
		LocationSpec:       session.LocationSpec,
		RadiusMeters:       session.RadiusMeters,
		VirtualLink:        session.VirtualLink,
		Roster:             roster,
		ScanCode:           session.ScanCode,
		Cancelled:          session.Cancelled,
		CancellationReason: session.CancellationReason,
		Completed:          session.Completed,
		CreatedAt:          formatInstant(session.CreatedAt),
		UpdatedAt:          formatInstant(session.UpdatedAt),
	}, nil
}

func sessionFromRow(row sessionRow) (persistence.Session, error) {
	roster, err := decodeRoster(row.Roster)
	if err != nil {
		return persistence.Session{}, err
	}
	createdAt, err := parseInstant(row.CreatedAt)
	if err != nil {
		return persistence.Session{}, err
	}
	updatedAt, err := parseInstant(row.UpdatedAt)
	if err != nil {
		return persistence.Session{}, err
	}
	return persistence.Session{
		ID:                 row.ID,
		OrgID:              row.OrgID,
		BatchID:            row.BatchID,
		Title:              row.Title,
		StartDate:          row.StartDate,
		EndDate:            row.EndDate,
		StartTime:          row.StartTime,
		EndTime:            row.EndTime,
		SessionType:        row.SessionType,
		LocationSpec:       row.LocationSpec,
		RadiusMeters:       row.RadiusMeters,
		VirtualLink:        row.VirtualLink,
		Roster:             roster,
		ScanCode:           row.ScanCode,
		Cancelled:          row.Cancelled,
		CancellationReason: row.CancellationReason,
		Completed:          row.Completed,
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
	}, nil
}

const insertSessionSQL = `
	INSERT INTO sessions (
		id, org_id, batch_id, title, start_date, end_date, start_time, end_time,
		session_type, location_spec, radius_meters, virtual_link, roster,
		scan_code, cancelled, cancellation_reason, completed, created_at, updated_at
	) VALUES (
		:id, :org_id, :batch_id, :title, :start_date, :end_date, :start_time, :end_time,
		:session_type, :location_spec, :radius_meters, :virtual_link, :roster,
		:scan_code, :cancelled, :cancellation_reason, :completed, :created_at, :updated_at
	)`

// upsertSessionSQL keeps the existing row on conflict. INSERT OR
// REPLACE would delete the old row first and cascade away its
// check-ins.
const upsertSessionSQL = insertSessionSQL + `
	ON CONFLICT(id) DO UPDATE SET
		batch_id = excluded.batch_id,
		title = excluded.title,
		start_date = excluded.start_date,
		end_date = excluded.end_date,
		start_time = excluded.start_time,
		end_time = excluded.end_time,
		session_type = excluded.session_type,
		location_spec = excluded.location_spec,
		radius_meters = excluded.radius_meters,
		virtual_link = excluded.virtual_link,
		roster = excluded.roster,
		scan_code = excluded.scan_code,
		cancelled = excluded.cancelled,
		cancellation_reason = excluded.cancellation_reason,
		completed = excluded.completed,
		updated_at = excluded.updated_at`

const updateSessionSQL = `
	UPDATE sessions SET
		batch_id = :batch_id,
		title = :title,
		start_date = :start_date,
		end_date = :end_date,
		start_time = :start_time,
		end_time = :end_time,
		session_type = :session_type,
		location_spec = :location_spec,
		radius_meters = :radius_meters,
		virtual_link = :virtual_link,
		roster = :roster,
		scan_code = :scan_code,
		cancelled = :cancelled,
		cancellation_reason = :cancellation_reason,
		completed = :completed,
		updated_at = :updated_at
	WHERE id = :id AND org_id = :org_id`

func (s *Store) CreateSession(ctx context.Context, session persistence.Session) error {
	row, err := newSessionRow(session)
	if err != nil {
		return err
	}
	_, err = s.db.NamedExecContext(ctx, insertSessionSQL, row)
	return mapError("create session", err)
}

func (s *Store) UpdateSession(ctx context.Context, session persistence.Session) error {
	row, err := newSessionRow(session)
	if err != nil {
		return err
	}
	res, err := s.db.NamedExecContext(ctx, updateSessionSQL, row)
	if err != nil {
		return mapError("update session", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if affected == 0 {
		return mapError("update session", sql.ErrNoRows)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, orgID, id string) (persistence.Session, error) {
	var row sessionRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM sessions WHERE id = ? AND org_id = ?`, id, orgID)
	if err != nil {
		return persistence.Session{}, mapError("get session", err)
	}
	return sessionFromRow(row)
}

func (s *Store) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	var conditions []string
	var args []any
	if filter.OrgID != "" {
		conditions = append(conditions, "org_id = ?")
		args = append(args, filter.OrgID)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, "batch_id = ?")
		args = append(args, filter.BatchID)
	}
	if filter.Date != "" {
		conditions = append(conditions, "start_date = ?")
		args = append(args, filter.Date)
	}
	if filter.UserID != "" {
		conditions = append(conditions,
			`EXISTS (SELECT 1 FROM json_each(sessions.roster) AS entry
				WHERE json_extract(entry.value, '$.userId') = ?)`)
		args = append(args, filter.UserID)
	}

	query := `SELECT * FROM sessions`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_date, start_time, id"

	var rows []sessionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapError("list sessions", err)
	}
	return sessionsFromRows(rows)
}

func (s *Store) DeleteSession(ctx context.Context, orgID, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE id = ? AND org_id = ?`, id, orgID)
	if err != nil {
		return mapError("delete session", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if affected == 0 {
		return mapError("delete session", sql.ErrNoRows)
	}
	return nil
}

func (s *Store) ListOpenSessions(ctx context.Context) ([]persistence.Session, error) {
	var rows []sessionRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM sessions WHERE cancelled = 0 AND completed = 0
		ORDER BY start_date, start_time, id`)
	if err != nil {
		return nil, mapError("list open sessions", err)
	}
	return sessionsFromRows(rows)
}

func (s *Store) MarkCompleted(ctx context.Context, ids []string, completedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		`UPDATE sessions SET completed = 1, updated_at = ? WHERE id IN (?)`,
		formatInstant(completedAt), ids)
	if err != nil {
		return mapError("mark completed", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return mapError("mark completed", err)
	}
	return nil
}

func sessionsFromRows(rows []sessionRow) ([]persistence.Session, error) {
	out := make([]persistence.Session, 0, len(rows))
	for _, row := range rows {
		session, err := sessionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, nil
}
