package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/attendance-tracker/internal/persistence"
)

type checkInRow struct {
	ID          string `db:"id"`
	OrgID       string `db:"org_id"`
	SessionID   string `db:"session_id"`
	UserID      string `db:"user_id"`
	Mode        string `db:"mode"`
	Late        bool   `db:"late"`
	CheckedInAt string `db:"checked_in_at"`
}

func newCheckInRow(checkIn persistence.CheckIn) checkInRow {
	return checkInRow{
		ID:          checkIn.ID,
		OrgID:       checkIn.OrgID,
		SessionID:   checkIn.SessionID,
		UserID:      checkIn.UserID,
		Mode:        checkIn.Mode,
		Late:        checkIn.Late,
		CheckedInAt: formatInstant(checkIn.CheckedInAt),
	}
}

func checkInFromRow(row checkInRow) (persistence.CheckIn, error) {
	checkedInAt, err := parseInstant(row.CheckedInAt)
	if err != nil {
		return persistence.CheckIn{}, err
	}
	return persistence.CheckIn{
		ID:          row.ID,
		OrgID:       row.OrgID,
		SessionID:   row.SessionID,
		UserID:      row.UserID,
		Mode:        row.Mode,
		Late:        row.Late,
		CheckedInAt: checkedInAt,
	}, nil
}

// CreateCheckIn records one attendance. The session must exist in the
// caller's organization; a second check-in by the same user fails with
// ErrDuplicate.
func (s *Store) CreateCheckIn(ctx context.Context, checkIn persistence.CheckIn) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		var exists bool
		err := tx.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = ? AND org_id = ?)`,
			checkIn.SessionID, checkIn.OrgID)
		if err != nil {
			return mapError("create check-in", err)
		}
		if !exists {
			return fmt.Errorf("create check-in: %w", persistence.ErrForeignKey)
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO check_ins (id, org_id, session_id, user_id, mode, late, checked_in_at)
			VALUES (:id, :org_id, :session_id, :user_id, :mode, :late, :checked_in_at)`,
			newCheckInRow(checkIn))
		return mapError("create check-in", err)
	})
}

func (s *Store) ListCheckIns(ctx context.Context, orgID, sessionID string) ([]persistence.CheckIn, error) {
	var rows []checkInRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM check_ins WHERE org_id = ? AND session_id = ?
		ORDER BY checked_in_at, id`, orgID, sessionID)
	if err != nil {
		return nil, mapError("list check-ins", err)
	}
	out := make([]persistence.CheckIn, 0, len(rows))
	for _, row := range rows {
		checkIn, err := checkInFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, checkIn)
	}
	return out, nil
}
