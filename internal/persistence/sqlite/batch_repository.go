package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/attendance-tracker/internal/persistence"
)

type batchRow struct {
	ID           string  `db:"id"`
	OrgID        string  `db:"org_id"`
	Title        string  `db:"title"`
	Slug         string  `db:"slug"`
	Frequency    string  `db:"frequency"`
	StartDate    string  `db:"start_date"`
	EndDate      *string `db:"end_date"`
	Weekdays     *string `db:"weekdays"`
	CustomDates  *string `db:"custom_dates"`
	StartTime    string  `db:"start_time"`
	EndTime      string  `db:"end_time"`
	SessionType  string  `db:"session_type"`
	LocationSpec *string `db:"location_spec"`
	RadiusMeters *int    `db:"radius_meters"`
	VirtualLink  *string `db:"virtual_link"`
	Roster       string  `db:"roster"`
	CreatedAt    string  `db:"created_at"`
	UpdatedAt    string  `db:"updated_at"`
}

func newBatchRow(batch persistence.Batch) (batchRow, error) {
	weekdays, err := encodeWeekdays(batch.Weekdays)
	if err != nil {
		return batchRow{}, err
	}
	customDates, err := encodeDateList(batch.CustomDates)
	if err != nil {
		return batchRow{}, err
	}
	roster, err := encodeRoster(batch.Roster)
	if err != nil {
		return batchRow{}, err
	}
	return batchRow{
		ID:           batch.ID,
		OrgID:        batch.OrgID,
		Title:        batch.Title,
		Slug:         batch.Slug,
		Frequency:    batch.Frequency,
		StartDate:    batch.StartDate,
		EndDate:      batch.EndDate,
		Weekdays:     weekdays,
		CustomDates:  customDates,
		StartTime:    batch.StartTime,
		EndTime:      batch.EndTime,
		SessionType:  batch.SessionType,
		LocationSpec: batch.LocationSpec,
		RadiusMeters: batch.RadiusMeters,
		VirtualLink:  batch.VirtualLink,
		Roster:       roster,
		CreatedAt:    formatInstant(batch.CreatedAt),
		UpdatedAt:    formatInstant(batch.UpdatedAt),
	}, nil
}

func batchFromRow(row batchRow) (persistence.Batch, error) {
	weekdays, err := decodeWeekdays(row.Weekdays)
	if err != nil {
		return persistence.Batch{}, err
	}
	customDates, err := decodeDateList(row.CustomDates)
	if err != nil {
		return persistence.Batch{}, err
	}
	roster, err := decodeRoster(row.Roster)
	if err != nil {
		return persistence.Batch{}, err
	}
	createdAt, err := parseInstant(row.CreatedAt)
	if err != nil {
		return persistence.Batch{}, err
	}
	updatedAt, err := parseInstant(row.UpdatedAt)
	if err != nil {
		return persistence.Batch{}, err
	}
	return persistence.Batch{
		ID:           row.ID,
		OrgID:        row.OrgID,
		Title:        row.Title,
		Slug:         row.Slug,
		Frequency:    row.Frequency,
		StartDate:    row.StartDate,
		EndDate:      row.EndDate,
		Weekdays:     weekdays,
		CustomDates:  customDates,
		StartTime:    row.StartTime,
		EndTime:      row.EndTime,
		SessionType:  row.SessionType,
		LocationSpec: row.LocationSpec,
		RadiusMeters: row.RadiusMeters,
		VirtualLink:  row.VirtualLink,
		Roster:       roster,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

const insertBatchSQL = `
	INSERT INTO batches (
		id, org_id, title, slug, frequency, start_date, end_date, weekdays,
		custom_dates, start_time, end_time, session_type, location_spec,
		radius_meters, virtual_link, roster, created_at, updated_at
	) VALUES (
		:id, :org_id, :title, :slug, :frequency, :start_date, :end_date, :weekdays,
		:custom_dates, :start_time, :end_time, :session_type, :location_spec,
		:radius_meters, :virtual_link, :roster, :created_at, :updated_at
	)`

const updateBatchSQL = `
	UPDATE batches SET
		title = :title,
		slug = :slug,
		frequency = :frequency,
		start_date = :start_date,
		end_date = :end_date,
		weekdays = :weekdays,
		custom_dates = :custom_dates,
		start_time = :start_time,
		end_time = :end_time,
		session_type = :session_type,
		location_spec = :location_spec,
		radius_meters = :radius_meters,
		virtual_link = :virtual_link,
		roster = :roster,
		updated_at = :updated_at
	WHERE id = :id AND org_id = :org_id`

// CreateBatch writes the batch and its expanded sessions in one
// transaction.
func (s *Store) CreateBatch(ctx context.Context, batch persistence.Batch, sessions []persistence.Session) error {
	row, err := newBatchRow(batch)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insertBatchSQL, row); err != nil {
			return mapError("create batch", err)
		}
		for _, session := range sessions {
			sessionRow, err := newSessionRow(session)
			if err != nil {
				return err
			}
			if _, err := tx.NamedExecContext(ctx, insertSessionSQL, sessionRow); err != nil {
				return mapError("create batch session", err)
			}
		}
		return nil
	})
}

// UpdateBatch rewrites the batch row, removes the named sessions, and
// upserts the given sessions, all in one transaction.
func (s *Store) UpdateBatch(ctx context.Context, batch persistence.Batch, removeSessionIDs []string, upsertSessions []persistence.Session) error {
	row, err := newBatchRow(batch)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, updateBatchSQL, row)
		if err != nil {
			return mapError("update batch", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update batch: %w", err)
		}
		if affected == 0 {
			return mapError("update batch", sql.ErrNoRows)
		}

		if len(removeSessionIDs) > 0 {
			query, args, err := sqlx.In(
				`DELETE FROM sessions WHERE org_id = ? AND id IN (?)`,
				batch.OrgID, removeSessionIDs)
			if err != nil {
				return mapError("remove batch sessions", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return mapError("remove batch sessions", err)
			}
		}

		for _, session := range upsertSessions {
			sessionRow, err := newSessionRow(session)
			if err != nil {
				return err
			}
			if _, err := tx.NamedExecContext(ctx, upsertSessionSQL, sessionRow); err != nil {
				return mapError("upsert batch session", err)
			}
		}
		return nil
	})
}

func (s *Store) GetBatch(ctx context.Context, orgID, id string) (persistence.Batch, error) {
	var row batchRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM batches WHERE id = ? AND org_id = ?`, id, orgID)
	if err != nil {
		return persistence.Batch{}, mapError("get batch", err)
	}
	return batchFromRow(row)
}

func (s *Store) GetBatchBySlug(ctx context.Context, orgID, slug string) (persistence.Batch, error) {
	var row batchRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM batches WHERE org_id = ? AND slug = ?`, orgID, slug)
	if err != nil {
		return persistence.Batch{}, mapError("get batch by slug", err)
	}
	return batchFromRow(row)
}

func (s *Store) ListBatches(ctx context.Context, orgID string) ([]persistence.Batch, error) {
	var rows []batchRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM batches WHERE org_id = ? ORDER BY created_at, id`, orgID)
	if err != nil {
		return nil, mapError("list batches", err)
	}
	out := make([]persistence.Batch, 0, len(rows))
	for _, row := range rows {
		batch, err := batchFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, batch)
	}
	return out, nil
}

func (s *Store) SlugExists(ctx context.Context, orgID, slug string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM batches WHERE org_id = ? AND slug = ?)`, orgID, slug)
	if err != nil {
		return false, mapError("slug exists", err)
	}
	return exists, nil
}
