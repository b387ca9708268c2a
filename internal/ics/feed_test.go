package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/example/attendance-tracker/internal/session"
)

func feedSession(id, date string) session.Session {
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return session.Session{
		ID:           id,
		OrgID:        "org-1",
		Title:        "Team Standup",
		StartDate:    date,
		StartTime:    "09:00",
		EndTime:      "09:30",
		Type:         session.TypeHybrid,
		LocationSpec: "Meeting Room A",
		VirtualLink:  "https://example.com/standup",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestFeed_RendersSessionsAsEvents(t *testing.T) {
	t.Parallel()

	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}

	out := Feed([]session.Session{feedSession("session-1", "2026-03-23")}, tokyo, Options{Name: "My Sessions"})

	if got := strings.Count(out, "BEGIN:VEVENT"); got != 1 {
		t.Fatalf("expected 1 event, got %d in %q", got, out)
	}
	if !strings.Contains(out, "UID:session-1") {
		t.Fatalf("expected session id as UID, got %q", out)
	}
	if !strings.Contains(out, "SUMMARY:Team Standup") {
		t.Fatalf("expected title as summary, got %q", out)
	}
	// 09:00 JST is midnight UTC.
	if !strings.Contains(out, "DTSTART:20260323T000000Z") {
		t.Fatalf("expected UTC start instant, got %q", out)
	}
	if !strings.Contains(out, "DTEND:20260323T003000Z") {
		t.Fatalf("expected UTC end instant, got %q", out)
	}
	if !strings.Contains(out, "LOCATION:Meeting Room A") {
		t.Fatalf("expected location, got %q", out)
	}
	if !strings.Contains(out, "https://example.com/standup") {
		t.Fatalf("expected virtual link, got %q", out)
	}
	if !strings.Contains(out, "X-WR-CALNAME:My Sessions") {
		t.Fatalf("expected calendar name, got %q", out)
	}
	if !strings.Contains(out, "STATUS:CONFIRMED") {
		t.Fatalf("expected confirmed status, got %q", out)
	}
}

func TestFeed_DropsCancelledByDefault(t *testing.T) {
	t.Parallel()

	cancelled := feedSession("session-2", "2026-03-24")
	cancelled.Cancelled = true
	sessions := []session.Session{feedSession("session-1", "2026-03-23"), cancelled}

	out := Feed(sessions, time.UTC, Options{})
	if got := strings.Count(out, "BEGIN:VEVENT"); got != 1 {
		t.Fatalf("expected cancelled session dropped, got %d events", got)
	}
	if strings.Contains(out, "UID:session-2") {
		t.Fatalf("expected cancelled session absent, got %q", out)
	}
}

func TestFeed_MarksCancelledWhenIncluded(t *testing.T) {
	t.Parallel()

	cancelled := feedSession("session-2", "2026-03-24")
	cancelled.Cancelled = true
	sessions := []session.Session{feedSession("session-1", "2026-03-23"), cancelled}

	out := Feed(sessions, time.UTC, Options{IncludeCancelled: true})
	if got := strings.Count(out, "BEGIN:VEVENT"); got != 2 {
		t.Fatalf("expected both sessions, got %d events", got)
	}
	if !strings.Contains(out, "STATUS:CANCELLED") {
		t.Fatalf("expected cancelled status, got %q", out)
	}
}

func TestFeed_FallsBackToEndOfDayWithoutEndTime(t *testing.T) {
	t.Parallel()

	open := feedSession("session-3", "2026-03-25")
	open.EndTime = ""

	out := Feed([]session.Session{open}, time.UTC, Options{})
	if !strings.Contains(out, "DTEND:20260325T235959Z") {
		t.Fatalf("expected end-of-day fallback, got %q", out)
	}
}
