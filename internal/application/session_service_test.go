package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/attendance-tracker/internal/session"
)

func newSessionService(store *sessionStoreStub, users *userDirectoryStub, cache *IndicatorCache, now time.Time) *SessionService {
	return NewSessionService(SessionServiceDeps{
		Sessions:  store,
		Users:     users,
		Orgs:      &orgDirectoryStub{},
		Cache:     cache,
		IDs:       sequence("session"),
		ScanCodes: sequence("code"),
		Now:       fixedClock(now),
	})
}

func remoteSession(id, date string) session.Session {
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	return session.Session{
		ID:          id,
		OrgID:       "org-1",
		Title:       "Office Hours",
		StartDate:   date,
		StartTime:   "15:00",
		EndTime:     "16:00",
		Type:        session.TypeRemote,
		VirtualLink: "https://example.com/office-hours",
		ScanCode:    "scan-original",
		CreatedAt:   created,
		UpdatedAt:   created,
	}
}

func TestSessionService_CreateSession_PersistsOneOff(t *testing.T) {
	t.Parallel()

	store := &sessionStoreStub{}
	users := &userDirectoryStub{users: []User{{ID: "user-1", Email: "sam@example.com"}}}
	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	svc := newSessionService(store, users, nil, now)

	sess, err := svc.CreateSession(context.Background(), CreateSessionParams{
		Principal: operatorPrincipal(),
		Input: SessionInput{
			Title:        "Office Hours",
			StartDate:    "2026-03-23",
			StartTime:    "15:00",
			EndTime:      "16:00",
			SessionType:  "PHYSICAL",
			LocationSpec: "40.7128,-74.0060",
			RadiusMeters: 75,
			Roster:       []RosterEntryInput{{UserID: "user-1"}},
		},
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if sess.BatchID != "" {
		t.Fatalf("expected one-off session without batch, got %s", sess.BatchID)
	}
	if sess.ScanCode != "code-1" {
		t.Fatalf("expected generated scan code, got %s", sess.ScanCode)
	}
	if !sess.CreatedAt.Equal(now) || !sess.UpdatedAt.Equal(now) {
		t.Fatalf("expected timestamps stamped with now, got %v / %v", sess.CreatedAt, sess.UpdatedAt)
	}
	if store.created.ID != sess.ID {
		t.Fatalf("expected session persisted, got %+v", store.created)
	}
	if len(sess.Roster) != 1 || sess.Roster[0].Mode != session.ModePhysical {
		t.Fatalf("expected physical mode stamped on roster, got %v", sess.Roster)
	}
}

func TestSessionService_CreateSession_ValidatesTemporalFields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input SessionInput
		field string
	}{
		{
			name:  "missing start date",
			input: SessionInput{Title: "T", StartTime: "15:00", SessionType: "REMOTE", VirtualLink: "https://example.com/m"},
			field: "startDate",
		},
		{
			name:  "malformed start date",
			input: SessionInput{Title: "T", StartDate: "03/23/2026", StartTime: "15:00", SessionType: "REMOTE", VirtualLink: "https://example.com/m"},
			field: "startDate",
		},
		{
			name:  "missing start time",
			input: SessionInput{Title: "T", StartDate: "2026-03-23", SessionType: "REMOTE", VirtualLink: "https://example.com/m"},
			field: "startTime",
		},
		{
			name:  "malformed end time",
			input: SessionInput{Title: "T", StartDate: "2026-03-23", StartTime: "15:00", EndTime: "4pm", SessionType: "REMOTE", VirtualLink: "https://example.com/m"},
			field: "endTime",
		},
		{
			name:  "end date before start date",
			input: SessionInput{Title: "T", StartDate: "2026-03-23", EndDate: "2026-03-22", StartTime: "15:00", SessionType: "REMOTE", VirtualLink: "https://example.com/m"},
			field: "endDate",
		},
		{
			name:  "single-day end time not after start",
			input: SessionInput{Title: "T", StartDate: "2026-03-23", EndDate: "2026-03-23", StartTime: "15:00", EndTime: "15:00", SessionType: "REMOTE", VirtualLink: "https://example.com/m"},
			field: "endTime",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := newSessionService(&sessionStoreStub{}, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))
			_, err := svc.CreateSession(context.Background(), CreateSessionParams{
				Principal: operatorPrincipal(),
				Input:     tc.input,
			})

			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := vErr.FieldErrors[tc.field]; !ok {
				t.Fatalf("expected %s validation error, got %v", tc.field, vErr.FieldErrors)
			}
		})
	}
}

func TestSessionService_CreateSession_AcceptsOvernightSpan(t *testing.T) {
	t.Parallel()

	store := &sessionStoreStub{}
	svc := newSessionService(store, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))

	// 22:00 to 01:00 without an end date rolls over midnight.
	_, err := svc.CreateSession(context.Background(), CreateSessionParams{
		Principal: operatorPrincipal(),
		Input: SessionInput{
			Title:       "Night Shift Briefing",
			StartDate:   "2026-03-23",
			StartTime:   "22:00",
			EndTime:     "01:00",
			SessionType: "REMOTE",
			VirtualLink: "https://example.com/night",
		},
	})
	if err != nil {
		t.Fatalf("expected overnight session accepted, got %v", err)
	}
}

func TestSessionService_UpdateSession_RejectsEndedSessions(t *testing.T) {
	t.Parallel()

	store := &sessionStoreStub{sessions: []session.Session{remoteSession("session-1", "2026-03-10")}}
	svc := newSessionService(store, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))

	_, err := svc.UpdateSession(context.Background(), UpdateSessionParams{
		Principal: operatorPrincipal(),
		SessionID: "session-1",
		Patch:     SessionPatch{Title: Value("Renamed")},
	})
	if !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("expected ErrSessionEnded, got %v", err)
	}
}

func TestSessionService_UpdateSession_RejectsCancelledSessions(t *testing.T) {
	t.Parallel()

	cancelled := remoteSession("session-1", "2026-03-23")
	cancelled.Cancelled = true
	cancelled.CancellationReason = "speaker ill"
	store := &sessionStoreStub{sessions: []session.Session{cancelled}}
	svc := newSessionService(store, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))

	_, err := svc.UpdateSession(context.Background(), UpdateSessionParams{
		Principal: operatorPrincipal(),
		SessionID: "session-1",
		Patch:     SessionPatch{Title: Value("Renamed")},
	})
	if !errors.Is(err, ErrSessionCancelled) {
		t.Fatalf("expected ErrSessionCancelled, got %v", err)
	}
}

func TestSessionService_UpdateSession_AppliesPatchSemantics(t *testing.T) {
	t.Parallel()

	store := &sessionStoreStub{sessions: []session.Session{remoteSession("session-1", "2026-03-23")}}
	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	svc := newSessionService(store, &userDirectoryStub{}, nil, now)

	updated, err := svc.UpdateSession(context.Background(), UpdateSessionParams{
		Principal: operatorPrincipal(),
		SessionID: "session-1",
		Patch: SessionPatch{
			Title:   Value("Extended Office Hours"),
			EndTime: Clear[string](),
		},
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}

	if updated.Title != "Extended Office Hours" {
		t.Fatalf("expected patched title, got %s", updated.Title)
	}
	if updated.EndTime != "" {
		t.Fatalf("expected cleared end time, got %s", updated.EndTime)
	}
	if updated.StartDate != "2026-03-23" || updated.StartTime != "15:00" {
		t.Fatalf("expected untouched fields preserved, got %s %s", updated.StartDate, updated.StartTime)
	}
	if updated.ScanCode != "scan-original" {
		t.Fatalf("expected scan code untouched, got %s", updated.ScanCode)
	}
	if !updated.UpdatedAt.Equal(now) {
		t.Fatalf("expected updatedAt bumped, got %v", updated.UpdatedAt)
	}
	if store.updated.ID != "session-1" {
		t.Fatalf("expected update persisted, got %+v", store.updated)
	}
}

func TestSessionService_CancelSession_SetsFlagAndReason(t *testing.T) {
	t.Parallel()

	store := &sessionStoreStub{sessions: []session.Session{remoteSession("session-1", "2026-03-23")}}
	svc := newSessionService(store, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))

	cancelled, err := svc.CancelSession(context.Background(), operatorPrincipal(), "session-1", "  venue flooded  ")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !cancelled.Cancelled {
		t.Fatalf("expected cancelled flag set")
	}
	if cancelled.CancellationReason != "venue flooded" {
		t.Fatalf("expected trimmed reason, got %q", cancelled.CancellationReason)
	}
	if store.updated.ID != "session-1" || !store.updated.Cancelled {
		t.Fatalf("expected cancellation persisted, got %+v", store.updated)
	}
}

func TestSessionService_CancelSession_RejectsCompletedSessions(t *testing.T) {
	t.Parallel()

	completed := remoteSession("session-1", "2026-03-10")
	completed.Completed = true
	store := &sessionStoreStub{sessions: []session.Session{completed}}
	svc := newSessionService(store, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))

	_, err := svc.CancelSession(context.Background(), operatorPrincipal(), "session-1", "too late")
	if !errors.Is(err, ErrSessionCompleted) {
		t.Fatalf("expected ErrSessionCompleted, got %v", err)
	}
}

func TestSessionService_ReinstateSession_ClearsCancellation(t *testing.T) {
	t.Parallel()

	cancelled := remoteSession("session-1", "2026-03-23")
	cancelled.Cancelled = true
	cancelled.CancellationReason = "speaker ill"
	store := &sessionStoreStub{sessions: []session.Session{cancelled}}
	svc := newSessionService(store, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))

	reinstated, err := svc.ReinstateSession(context.Background(), operatorPrincipal(), "session-1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if reinstated.Cancelled || reinstated.CancellationReason != "" {
		t.Fatalf("expected cancellation cleared, got %+v", reinstated)
	}
	if store.updated.ID != "session-1" {
		t.Fatalf("expected reinstatement persisted, got %+v", store.updated)
	}
}

func TestSessionService_ReinstateSession_NoopWhenActive(t *testing.T) {
	t.Parallel()

	store := &sessionStoreStub{sessions: []session.Session{remoteSession("session-1", "2026-03-23")}}
	svc := newSessionService(store, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))

	if _, err := svc.ReinstateSession(context.Background(), operatorPrincipal(), "session-1"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if store.updated.ID != "" {
		t.Fatalf("expected no write for an active session, got %+v", store.updated)
	}
}

func TestSessionService_CompleteSession_MarksCompleted(t *testing.T) {
	t.Parallel()

	store := &sessionStoreStub{sessions: []session.Session{remoteSession("session-1", "2026-03-23")}}
	svc := newSessionService(store, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))

	completed, err := svc.CompleteSession(context.Background(), operatorPrincipal(), "session-1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !completed.Completed {
		t.Fatalf("expected completed flag set")
	}
}

func TestSessionService_CompleteSession_RejectsCancelledSessions(t *testing.T) {
	t.Parallel()

	cancelled := remoteSession("session-1", "2026-03-23")
	cancelled.Cancelled = true
	store := &sessionStoreStub{sessions: []session.Session{cancelled}}
	svc := newSessionService(store, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))

	_, err := svc.CompleteSession(context.Background(), operatorPrincipal(), "session-1")
	if !errors.Is(err, ErrSessionCancelled) {
		t.Fatalf("expected ErrSessionCancelled, got %v", err)
	}
}

func TestSessionService_RotateScanCode_GeneratesFreshCode(t *testing.T) {
	t.Parallel()

	store := &sessionStoreStub{sessions: []session.Session{remoteSession("session-1", "2026-03-23")}}
	svc := newSessionService(store, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))

	rotated, err := svc.RotateScanCode(context.Background(), operatorPrincipal(), "session-1")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if rotated.ScanCode == "scan-original" || rotated.ScanCode == "" {
		t.Fatalf("expected fresh scan code, got %q", rotated.ScanCode)
	}
	if store.updated.ScanCode != rotated.ScanCode {
		t.Fatalf("expected rotation persisted, got %+v", store.updated)
	}
}

func TestSessionService_RotateScanCode_RejectsEndedSessions(t *testing.T) {
	t.Parallel()

	store := &sessionStoreStub{sessions: []session.Session{remoteSession("session-1", "2026-03-10")}}
	svc := newSessionService(store, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))

	_, err := svc.RotateScanCode(context.Background(), operatorPrincipal(), "session-1")
	if !errors.Is(err, ErrSessionEnded) {
		t.Fatalf("expected ErrSessionEnded, got %v", err)
	}
}

func TestSessionService_GetSession_AnnotatesClassification(t *testing.T) {
	t.Parallel()

	live := remoteSession("session-live", "2026-03-20")
	live.StartTime = "09:30"
	live.EndTime = "10:30"
	past := remoteSession("session-past", "2026-03-10")
	store := &sessionStoreStub{sessions: []session.Session{live, past}}
	svc := newSessionService(store, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))

	view, err := svc.GetSession(context.Background(), operatorPrincipal(), "session-live")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if view.Status != session.StatusLive || !view.IsToday {
		t.Fatalf("expected live today, got %s today=%v", view.Status, view.IsToday)
	}

	view, err = svc.GetSession(context.Background(), operatorPrincipal(), "session-past")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if view.Status != session.StatusPast || view.IsToday {
		t.Fatalf("expected past, got %s today=%v", view.Status, view.IsToday)
	}
}

func TestSessionService_VisibleSessionsFor_TruncatesUpcomingList(t *testing.T) {
	t.Parallel()

	var stored []session.Session
	for i := 0; i < 9; i++ {
		stored = append(stored, remoteSession(
			"session-"+string(rune('a'+i)),
			time.Date(2026, 3, 23+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02"),
		))
	}
	stored = append(stored,
		remoteSession("session-past-1", "2026-03-09"),
		remoteSession("session-past-2", "2026-03-10"),
	)
	store := &sessionStoreStub{sessions: stored}
	svc := newSessionService(store, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))

	visible, err := svc.VisibleSessionsFor(context.Background(), VisibleSessionsParams{Principal: operatorPrincipal()})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(visible.Sessions) != 7 {
		t.Fatalf("expected display limit of 7, got %d", len(visible.Sessions))
	}
	if visible.RemainingCount != 2 {
		t.Fatalf("expected 2 remaining, got %d", visible.RemainingCount)
	}
	for _, view := range visible.Sessions {
		if view.Status == session.StatusPast {
			t.Fatalf("expected past sessions hidden, got %s", view.Session.ID)
		}
	}

	visible, err = svc.VisibleSessionsFor(context.Background(), VisibleSessionsParams{Principal: operatorPrincipal(), ShowPast: true})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(visible.Sessions) != 7 || visible.RemainingCount != 4 {
		t.Fatalf("expected 7 visible with 4 remaining, got %d with %d", len(visible.Sessions), visible.RemainingCount)
	}
}

func TestSessionService_VisibleSessionsFor_SelectedDateShowsEverything(t *testing.T) {
	t.Parallel()

	past := remoteSession("session-past", "2026-03-10")
	cancelled := remoteSession("session-cancelled", "2026-03-10")
	cancelled.Cancelled = true
	store := &sessionStoreStub{sessions: []session.Session{past, cancelled, remoteSession("session-future", "2026-03-23")}}
	svc := newSessionService(store, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))

	visible, err := svc.VisibleSessionsFor(context.Background(), VisibleSessionsParams{
		Principal:    operatorPrincipal(),
		SelectedDate: "2026-03-10",
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(visible.Sessions) != 2 {
		t.Fatalf("expected both sessions on the selected date, got %d", len(visible.Sessions))
	}
	if visible.RemainingCount != 0 {
		t.Fatalf("expected zero remaining on a selected date, got %d", visible.RemainingCount)
	}
}

func TestSessionService_VisibleSessionsFor_ClampsNegativeRemainder(t *testing.T) {
	t.Parallel()

	store := &sessionStoreStub{sessions: []session.Session{remoteSession("session-1", "2026-03-23")}}
	svc := newSessionService(store, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))

	visible, err := svc.VisibleSessionsFor(context.Background(), VisibleSessionsParams{Principal: operatorPrincipal()})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if visible.RemainingCount != 0 {
		t.Fatalf("expected clamped remainder, got %d", visible.RemainingCount)
	}
}

func TestSessionService_DayIndicators_AggregatesAndCaches(t *testing.T) {
	t.Parallel()

	edited := remoteSession("session-edited", "2026-03-27")
	edited.UpdatedAt = edited.CreatedAt.Add(time.Hour)
	cancelled := remoteSession("session-cancelled", "2026-03-25")
	cancelled.Cancelled = true

	store := &sessionStoreStub{sessions: []session.Session{
		remoteSession("session-green", "2026-03-23"),
		remoteSession("session-red", "2026-03-10"),
		edited,
		cancelled,
	}}
	now := time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC)
	cache := NewIndicatorCache(time.Minute, 16, fixedClock(now))
	svc := newSessionService(store, &userDirectoryStub{}, cache, now)

	params := DayIndicatorsParams{Principal: operatorPrincipal(), Year: 2026, Month: time.March}

	indicators, err := svc.DayIndicators(context.Background(), params)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if indicators["2026-03-23"] != session.IndicatorGreen {
		t.Fatalf("expected green on 03-23, got %q", indicators["2026-03-23"])
	}
	if indicators["2026-03-10"] != session.IndicatorRed {
		t.Fatalf("expected red on 03-10, got %q", indicators["2026-03-10"])
	}
	if indicators["2026-03-27"] != session.IndicatorYellow {
		t.Fatalf("expected yellow on 03-27, got %q", indicators["2026-03-27"])
	}
	if _, ok := indicators["2026-03-25"]; ok {
		t.Fatalf("expected cancelled day to carry no indicator, got %v", indicators)
	}

	if _, err := svc.DayIndicators(context.Background(), params); err != nil {
		t.Fatalf("expected cached success, got %v", err)
	}
	if store.listCalls != 1 {
		t.Fatalf("expected second read served from cache, got %d store reads", store.listCalls)
	}

	if _, err := svc.CancelSession(context.Background(), operatorPrincipal(), "session-green", "moved"); err != nil {
		t.Fatalf("expected cancel to succeed, got %v", err)
	}
	if _, err := svc.DayIndicators(context.Background(), params); err != nil {
		t.Fatalf("expected success after invalidation, got %v", err)
	}
	if store.listCalls != 2 {
		t.Fatalf("expected cache invalidated by the cancellation, got %d store reads", store.listCalls)
	}
}

func TestSessionService_ListSessions_MineFiltersByRoster(t *testing.T) {
	t.Parallel()

	mine := remoteSession("session-mine", "2026-03-23")
	mine.Roster = []session.Attendee{{UserID: "op-1", Mode: session.ModeRemote}}
	other := remoteSession("session-other", "2026-03-24")
	other.Roster = []session.Attendee{{UserID: "user-9", Mode: session.ModeRemote}}
	store := &sessionStoreStub{sessions: []session.Session{mine, other}}
	svc := newSessionService(store, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))

	views, err := svc.ListSessions(context.Background(), ListSessionsParams{Principal: operatorPrincipal(), Mine: true})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(views) != 1 || views[0].Session.ID != "session-mine" {
		t.Fatalf("expected only the principal's session, got %+v", views)
	}
}

func TestSessionService_ListUserSessions_ScopesToRoster(t *testing.T) {
	t.Parallel()

	assigned := remoteSession("session-assigned", "2026-03-23")
	assigned.Roster = []session.Attendee{{UserID: "user-7", Mode: session.ModeRemote}}
	other := remoteSession("session-other", "2026-03-24")
	other.Roster = []session.Attendee{{UserID: "user-9", Mode: session.ModeRemote}}
	store := &sessionStoreStub{sessions: []session.Session{assigned, other}}
	svc := newSessionService(store, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))

	views, err := svc.ListUserSessions(context.Background(), operatorPrincipal(), "user-7")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(views) != 1 || views[0].Session.ID != "session-assigned" {
		t.Fatalf("expected only the user's session, got %+v", views)
	}
}

func TestSessionService_ListUserSessions_MembersOnlySeeTheirOwn(t *testing.T) {
	t.Parallel()

	store := &sessionStoreStub{}
	svc := newSessionService(store, &userDirectoryStub{}, nil, time.Date(2026, 3, 20, 10, 0, 0, 0, time.UTC))

	member := Principal{UserID: "user-1", OrgID: "org-1", Role: RoleMember}
	if _, err := svc.ListUserSessions(context.Background(), member, "user-2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.ListUserSessions(context.Background(), member, "user-1"); err != nil {
		t.Fatalf("expected own listing to succeed, got %v", err)
	}
}
