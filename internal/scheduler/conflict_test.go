package scheduler

import (
	"testing"

	"github.com/example/attendance-tracker/internal/session"
)

func conflictSession(id, date, start, end string, userIDs ...string) session.Session {
	roster := make([]session.Attendee, 0, len(userIDs))
	for _, userID := range userIDs {
		roster = append(roster, session.Attendee{UserID: userID, Mode: session.ModePhysical})
	}
	return session.Session{
		ID:        id,
		OrgID:     "org-1",
		StartDate: date,
		StartTime: start,
		EndTime:   end,
		Type:      session.TypePhysical,
		Roster:    roster,
	}
}

func TestDetectDoubleBookings(t *testing.T) {
	t.Parallel()

	classifier := session.NewClassifier(nil)

	t.Run("shared attendee on overlapping windows conflicts", func(t *testing.T) {
		t.Parallel()

		existing := []session.Session{
			conflictSession("held", "2025-03-10", "09:00", "11:00", "alice", "bob"),
		}
		candidate := conflictSession("new", "2025-03-10", "10:00", "12:00", "alice", "carol")

		conflicts := DetectDoubleBookings(classifier, existing, candidate)
		if len(conflicts) != 1 {
			t.Fatalf("expected 1 conflict, got %d: %v", len(conflicts), conflicts)
		}
		got := conflicts[0]
		if got.UserID != "alice" || got.SessionID != "new" || got.WithSessionID != "held" {
			t.Fatalf("unexpected conflict %+v", got)
		}
	})

	t.Run("adjacent windows do not conflict", func(t *testing.T) {
		t.Parallel()

		existing := []session.Session{
			conflictSession("held", "2025-03-10", "09:00", "10:00", "alice"),
		}
		candidate := conflictSession("new", "2025-03-10", "10:00", "11:00", "alice")

		if conflicts := DetectDoubleBookings(classifier, existing, candidate); len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %v", conflicts)
		}
	})

	t.Run("different dates do not conflict", func(t *testing.T) {
		t.Parallel()

		existing := []session.Session{
			conflictSession("held", "2025-03-10", "09:00", "11:00", "alice"),
		}
		candidate := conflictSession("new", "2025-03-11", "09:00", "11:00", "alice")

		if conflicts := DetectDoubleBookings(classifier, existing, candidate); len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %v", conflicts)
		}
	})

	t.Run("cancelled sessions are ignored on both sides", func(t *testing.T) {
		t.Parallel()

		cancelled := conflictSession("held", "2025-03-10", "09:00", "11:00", "alice")
		cancelled.Cancelled = true
		candidate := conflictSession("new", "2025-03-10", "10:00", "12:00", "alice")

		if conflicts := DetectDoubleBookings(classifier, []session.Session{cancelled}, candidate); len(conflicts) != 0 {
			t.Fatalf("expected no conflicts against cancelled session, got %v", conflicts)
		}

		live := conflictSession("held", "2025-03-10", "09:00", "11:00", "alice")
		candidate.Cancelled = true
		if conflicts := DetectDoubleBookings(classifier, []session.Session{live}, candidate); len(conflicts) != 0 {
			t.Fatalf("expected no conflicts for cancelled candidate, got %v", conflicts)
		}
	})

	t.Run("candidate skips its own stored row", func(t *testing.T) {
		t.Parallel()

		stored := conflictSession("same", "2025-03-10", "09:00", "11:00", "alice")
		updated := conflictSession("same", "2025-03-10", "09:30", "11:30", "alice")

		if conflicts := DetectDoubleBookings(classifier, []session.Session{stored}, updated); len(conflicts) != 0 {
			t.Fatalf("expected no self conflict, got %v", conflicts)
		}
	})

	t.Run("one conflict per shared attendee in roster order", func(t *testing.T) {
		t.Parallel()

		existing := []session.Session{
			conflictSession("held", "2025-03-10", "09:00", "11:00", "bob", "alice", "dave"),
		}
		candidate := conflictSession("new", "2025-03-10", "10:00", "12:00", "alice", "bob", "carol")

		conflicts := DetectDoubleBookings(classifier, existing, candidate)
		if len(conflicts) != 2 {
			t.Fatalf("expected 2 conflicts, got %d: %v", len(conflicts), conflicts)
		}
		if conflicts[0].UserID != "alice" || conflicts[1].UserID != "bob" {
			t.Fatalf("expected alice then bob, got %v", conflicts)
		}
	})

	t.Run("missing end time conflicts through end of day", func(t *testing.T) {
		t.Parallel()

		existing := []session.Session{
			conflictSession("held", "2025-03-10", "09:00", "", "alice"),
		}
		candidate := conflictSession("new", "2025-03-10", "21:00", "22:00", "alice")

		if conflicts := DetectDoubleBookings(classifier, existing, candidate); len(conflicts) != 1 {
			t.Fatalf("expected end-of-day window to conflict, got %v", conflicts)
		}
	})
}
