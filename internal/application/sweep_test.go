package application

import (
	"context"
	"testing"
	"time"

	"github.com/example/attendance-tracker/internal/session"
)

func TestCompletionSweep_Run_CompletesElapsedSessions(t *testing.T) {
	t.Parallel()

	elapsed := remoteSession("session-elapsed", "2026-03-10")
	live := remoteSession("session-live", "2026-03-20")
	live.StartTime = "09:30"
	live.EndTime = "10:30"
	upcoming := remoteSession("session-upcoming", "2026-03-23")
	cancelled := remoteSession("session-cancelled", "2026-03-05")
	cancelled.Cancelled = true
	alreadyDone := remoteSession("session-done", "2026-03-06")
	alreadyDone.Completed = true

	store := &sessionStoreStub{sessions: []session.Session{elapsed, live, upcoming, cancelled, alreadyDone}}
	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	sweep := NewCompletionSweep(store, &orgDirectoryStub{}, nil, time.UTC, fixedClock(now), nil)

	count, err := sweep.Run(context.Background())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one completed session, got %d", count)
	}
	if len(store.completedIDs) != 1 || store.completedIDs[0] != "session-elapsed" {
		t.Fatalf("expected only the elapsed session marked, got %v", store.completedIDs)
	}
	if !store.completedAt.Equal(now) {
		t.Fatalf("expected completion stamped with now, got %v", store.completedAt)
	}
}

func TestCompletionSweep_Run_NoopWhenNothingElapsed(t *testing.T) {
	t.Parallel()

	store := &sessionStoreStub{sessions: []session.Session{remoteSession("session-upcoming", "2026-03-23")}}
	sweep := NewCompletionSweep(store, &orgDirectoryStub{}, nil, time.UTC, fixedClock(time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)), nil)

	count, err := sweep.Run(context.Background())
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero completions, got %d", count)
	}
	if store.completedIDs != nil {
		t.Fatalf("expected no mark call, got %v", store.completedIDs)
	}
}

func TestCompletionSweep_Run_SkipsWhileAnotherRunIsInFlight(t *testing.T) {
	t.Parallel()

	store := &sessionStoreStub{sessions: []session.Session{remoteSession("session-elapsed", "2026-03-10")}}
	sweep := NewCompletionSweep(store, &orgDirectoryStub{}, nil, time.UTC, fixedClock(time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)), nil)

	sweep.running.Store(true)
	count, err := sweep.Run(context.Background())
	if err != nil {
		t.Fatalf("expected skip to report success, got %v", err)
	}
	if count != 0 {
		t.Fatalf("expected zero completions from a skipped run, got %d", count)
	}
	if store.completedIDs != nil {
		t.Fatalf("expected no writes from a skipped run, got %v", store.completedIDs)
	}

	sweep.running.Store(false)
	if count, err = sweep.Run(context.Background()); err != nil || count != 1 {
		t.Fatalf("expected the released sweep to complete one session, got %d, %v", count, err)
	}
}

func TestCompletionSweep_Run_InvalidatesIndicatorCache(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	cache := NewIndicatorCache(time.Minute, 8, fixedClock(now))
	cache.store("org-1||2026-03", map[string]session.Indicator{"2026-03-10": session.IndicatorGreen})

	store := &sessionStoreStub{sessions: []session.Session{remoteSession("session-elapsed", "2026-03-10")}}
	sweep := NewCompletionSweep(store, &orgDirectoryStub{}, cache, time.UTC, fixedClock(now), nil)

	if _, err := sweep.Run(context.Background()); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if _, ok := cache.get("org-1||2026-03"); ok {
		t.Fatalf("expected cache invalidated after completing sessions")
	}
}
