package sqlite

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/example/attendance-tracker/internal/persistence"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", sql.ErrNoRows, persistence.ErrNotFound},
		{"unique", errors.New("UNIQUE constraint failed: users.email"), persistence.ErrDuplicate},
		{"foreign key", errors.New("FOREIGN KEY constraint failed (787)"), persistence.ErrForeignKey},
		{"locked", errors.New("database is locked (5) (SQLITE_BUSY)"), persistence.ErrConflict},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := mapError("op", tc.in)
			if !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}

	t.Run("nil passes through", func(t *testing.T) {
		t.Parallel()

		if err := mapError("op", nil); err != nil {
			t.Fatalf("expected nil, got %v", err)
		}
	})

	t.Run("unknown errors stay matchable", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("disk I/O error")
		got := mapError("op", cause)
		if !errors.Is(got, cause) {
			t.Fatalf("expected wrapped cause, got %v", got)
		}
	})
}
