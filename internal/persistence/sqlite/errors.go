package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/example/attendance-tracker/internal/persistence"
)

// mapError translates driver errors into the persistence sentinels the
// application layer matches on. The modernc driver exposes constraint
// failures only through their message text.
func mapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", operation, persistence.ErrNotFound)
	case containsAny(err.Error(), "UNIQUE constraint failed"):
		return fmt.Errorf("%s: %w", operation, persistence.ErrDuplicate)
	case containsAny(err.Error(), "FOREIGN KEY constraint failed", "foreign key constraint"):
		return fmt.Errorf("%s: %w", operation, persistence.ErrForeignKey)
	case containsAny(err.Error(), "database is locked", "database is busy", "SQLITE_BUSY"):
		return fmt.Errorf("%s: %w", operation, persistence.ErrConflict)
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}

func containsAny(message string, fragments ...string) bool {
	for _, fragment := range fragments {
		if strings.Contains(message, fragment) {
			return true
		}
	}
	return false
}
