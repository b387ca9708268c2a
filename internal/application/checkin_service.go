package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/attendance-tracker/internal/persistence"
	"github.com/example/attendance-tracker/internal/session"
)

// DefaultLateGrace is how long after a session's start a check-in still
// counts as on time. Tuned separately from the Live display cutoff.
const DefaultLateGrace = 15 * time.Minute

// CheckInStore captures the persistence interactions of the check-in
// service. CreateCheckIn reports persistence.ErrDuplicate when the user
// already checked in to the session.
type CheckInStore interface {
	CreateCheckIn(ctx context.Context, checkIn CheckIn) error
	ListCheckIns(ctx context.Context, orgID, sessionID string) ([]CheckIn, error)
}

// GeofenceVerifier decides whether a reported position lies within a
// session's physical attendance area.
type GeofenceVerifier interface {
	Inside(ctx context.Context, locationSpec string, radiusMeters int, position Position) (bool, error)
}

// CheckInService validates scans and records attendance.
type CheckInService struct {
	sessions  SessionStore
	checkIns  CheckInStore
	orgs      OrgDirectory
	verifier  GeofenceVerifier
	grace     time.Duration
	generator func() string
	now       func() time.Time
	location  *time.Location
	logger    *slog.Logger
}

// NewCheckInService wires dependencies for check-in handling. A zero
// grace falls back to DefaultLateGrace.
func NewCheckInService(sessions SessionStore, checkIns CheckInStore, orgs OrgDirectory, verifier GeofenceVerifier, grace time.Duration, idGenerator func() string, now func() time.Time, logger *slog.Logger) *CheckInService {
	if grace <= 0 {
		grace = DefaultLateGrace
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &CheckInService{
		sessions:  sessions,
		checkIns:  checkIns,
		orgs:      orgs,
		verifier:  verifier,
		grace:     grace,
		generator: idGenerator,
		now:       now,
		location:  time.UTC,
		logger:    defaultLogger(logger),
	}
}

// CheckIn records attendance for the scanning principal. The gates run
// in a fixed order so a caller always sees the most specific failure:
// unknown session, stale scan code, cancelled session, scan outside the
// session's calendar day, not on the roster, mode verification, then
// the duplicate check at the store.
func (s *CheckInService) CheckIn(ctx context.Context, params CheckInParams) (CheckIn, error) {
	orgID := params.Principal.OrgID
	userID := params.Principal.UserID

	sess, err := s.sessions.GetSession(ctx, orgID, params.SessionID)
	if err != nil {
		return CheckIn{}, mapCheckInRepoError(err)
	}
	if params.ScanCode != sess.ScanCode {
		return CheckIn{}, fmt.Errorf("check in to session %s: %w", sess.ID, ErrScanCodeMismatch)
	}
	if sess.Cancelled {
		return CheckIn{}, fmt.Errorf("check in to session %s: %w", sess.ID, ErrSessionCancelled)
	}

	classifier := session.NewClassifier(s.orgLocation(ctx, orgID))
	now := s.now()
	// Scanning is gated on the calendar day, not the live window: a
	// session that already reads Past still accepts check-ins until the
	// day rolls over in the organization's timezone.
	if !classifier.Classify(sess, now).IsToday {
		return CheckIn{}, fmt.Errorf("check in to session %s: %w", sess.ID, ErrScanWindowClosed)
	}

	attendee, onRoster := findAttendee(sess.Roster, userID)
	if !onRoster {
		return CheckIn{}, fmt.Errorf("check in to session %s: %w", sess.ID, ErrNotOnRoster)
	}
	mode := attendeeMode(sess.Type, attendee)

	if mode == session.ModePhysical {
		if err := s.verifyPosition(ctx, sess, params.Position); err != nil {
			return CheckIn{}, err
		}
	}

	start, _ := classifier.Window(sess)
	checkIn := CheckIn{
		ID:          s.generator(),
		OrgID:       orgID,
		SessionID:   sess.ID,
		UserID:      userID,
		Mode:        mode,
		Late:        now.After(start.Add(s.grace)),
		CheckedInAt: now,
	}
	if err := s.checkIns.CreateCheckIn(ctx, checkIn); err != nil {
		return CheckIn{}, mapCheckInRepoError(err)
	}

	serviceLogger(ctx, s.logger, "checkin", "check-in", "org_id", orgID).
		InfoContext(ctx, "attendance recorded",
			"session_id", sess.ID, "user_id", userID, "mode", string(mode), "late", checkIn.Late)
	return checkIn, nil
}

// ListCheckIns returns a session's attendance records in scan order.
func (s *CheckInService) ListCheckIns(ctx context.Context, principal Principal, sessionID string) ([]CheckIn, error) {
	// Resolving the session first keeps cross-org probes
	// indistinguishable from missing sessions.
	if _, err := s.sessions.GetSession(ctx, principal.OrgID, sessionID); err != nil {
		return nil, mapCheckInRepoError(err)
	}
	checkIns, err := s.checkIns.ListCheckIns(ctx, principal.OrgID, sessionID)
	if err != nil {
		return nil, mapCheckInRepoError(err)
	}
	return checkIns, nil
}

// verifyPosition runs the geofence gate for physical attendance. A
// session without a usable location or radius cannot be verified and
// passes.
func (s *CheckInService) verifyPosition(ctx context.Context, sess session.Session, position *Position) error {
	if position == nil {
		vErr := &ValidationError{}
		vErr.add("position", "required for physical check-in")
		return vErr
	}
	if sess.LocationSpec == "" || sess.RadiusMeters <= 0 || s.verifier == nil {
		return nil
	}
	inside, err := s.verifier.Inside(ctx, sess.LocationSpec, sess.RadiusMeters, *position)
	if err != nil {
		return fmt.Errorf("verify position for session %s: %w", sess.ID, err)
	}
	if !inside {
		return fmt.Errorf("check in to session %s: %w", sess.ID, ErrOutsideGeofence)
	}
	return nil
}

func (s *CheckInService) orgLocation(ctx context.Context, orgID string) *time.Location {
	if s.orgs != nil {
		if loc, err := s.orgs.OrgTimezone(ctx, orgID); err == nil && loc != nil {
			return loc
		}
	}
	return s.location
}

func findAttendee(entries []session.Attendee, userID string) (session.Attendee, bool) {
	for _, entry := range entries {
		if entry.UserID == userID {
			return entry, true
		}
	}
	return session.Attendee{}, false
}

// attendeeMode resolves the mode a roster entry attends in. Single-mode
// session types dictate the mode; hybrid entries carry their own, with
// legacy modeless entries reading as physical to match roster
// hydration.
func attendeeMode(t session.Type, attendee session.Attendee) session.Mode {
	if mode, ok := t.SingleMode(); ok {
		return mode
	}
	if attendee.Mode == session.ModeRemote {
		return session.ModeRemote
	}
	return session.ModePhysical
}

func mapCheckInRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyCheckedIn
	case errors.Is(err, persistence.ErrForeignKey):
		return ErrNotFound
	}
	return err
}
