package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/attendance-tracker/internal/scheduler"
	"github.com/example/attendance-tracker/internal/session"
)

// warnDoubleBookings logs an advisory warning per attendee assigned to
// a freshly written session while already assigned to an overlapping
// one. Detection runs after the write succeeds and never affects it; a
// listing failure just ends detection for the call.
func warnDoubleBookings(ctx context.Context, store SessionStore, location *time.Location, logger *slog.Logger, orgID string, candidates ...session.Session) {
	if store == nil || len(candidates) == 0 {
		return
	}
	existing, err := store.ListSessions(ctx, SessionQuery{OrgID: orgID})
	if err != nil {
		return
	}
	classifier := session.NewClassifier(location)
	for _, conflict := range scheduler.DetectDoubleBookings(classifier, existing, candidates...) {
		logger.WarnContext(ctx, "attendee double booked",
			"org_id", orgID,
			"user_id", conflict.UserID,
			"session_id", conflict.SessionID,
			"conflicts_with", conflict.WithSessionID)
	}
}
