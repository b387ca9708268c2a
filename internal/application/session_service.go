package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/attendance-tracker/internal/persistence"
	"github.com/example/attendance-tracker/internal/roster"
	"github.com/example/attendance-tracker/internal/session"
)

// SessionQuery narrows session listings.
type SessionQuery struct {
	OrgID   string
	BatchID string
	Date    string
	UserID  string
}

// SessionStore captures the persistence interactions needed by the
// session and batch services.
type SessionStore interface {
	CreateSession(ctx context.Context, sess session.Session) error
	UpdateSession(ctx context.Context, sess session.Session) error
	GetSession(ctx context.Context, orgID, id string) (session.Session, error)
	ListSessions(ctx context.Context, query SessionQuery) ([]session.Session, error)
	ListOpenSessions(ctx context.Context) ([]session.Session, error)
	MarkCompleted(ctx context.Context, ids []string, completedAt time.Time) error
}

// SessionView pairs a session with its classification so handlers never
// re-derive temporal state.
type SessionView struct {
	Session session.Session
	Status  session.Status
	IsToday bool
}

// VisibleSessions is the display-filtered slice of an organization's
// sessions plus the count truncated away.
type VisibleSessions struct {
	Sessions       []SessionView
	RemainingCount int
}

// SessionServiceDeps wires the collaborators of a SessionService.
type SessionServiceDeps struct {
	Sessions  SessionStore
	Users     UserDirectory
	Orgs      OrgDirectory
	Cache     *IndicatorCache
	IDs       func() string
	ScanCodes func() string
	Now       func() time.Time
	Location  *time.Location
	Logger    *slog.Logger
}

// SessionService orchestrates one-off session management, status
// annotation, and the calendar read models.
type SessionService struct {
	sessions    SessionStore
	users       UserDirectory
	orgs        OrgDirectory
	cache       *IndicatorCache
	idGenerator func() string
	scanCodes   func() string
	now         func() time.Time
	location    *time.Location
	logger      *slog.Logger
}

// NewSessionService wires dependencies for session operations.
func NewSessionService(deps SessionServiceDeps) *SessionService {
	if deps.IDs == nil {
		deps.IDs = func() string { return "" }
	}
	if deps.ScanCodes == nil {
		deps.ScanCodes = func() string { return "" }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return &SessionService{
		sessions:    deps.Sessions,
		users:       deps.Users,
		orgs:        deps.Orgs,
		cache:       deps.Cache,
		idGenerator: deps.IDs,
		scanCodes:   deps.ScanCodes,
		now:         deps.Now,
		location:    deps.Location,
		logger:      defaultLogger(deps.Logger),
	}
}

// CreateSession creates a one-off session outside any batch.
func (s *SessionService) CreateSession(ctx context.Context, params CreateSessionParams) (session.Session, error) {
	if !params.Principal.Role.CanManage() {
		return session.Session{}, ErrForbidden
	}
	orgID := params.Principal.OrgID
	input := params.Input

	vErr := &ValidationError{}
	sessionType := validateSharedFields(sharedFieldValues{
		Title:        input.Title,
		SessionType:  input.SessionType,
		LocationSpec: input.LocationSpec,
		RadiusMeters: input.RadiusMeters,
		VirtualLink:  input.VirtualLink,
		Roster:       input.Roster,
	}, vErr)
	validateSessionTemporal(input, vErr)
	if vErr.HasErrors() {
		return session.Session{}, vErr
	}

	if err := ensureRosterUsersExist(ctx, s.users, orgID, input.Roster, vErr); err != nil {
		return session.Session{}, err
	}
	if vErr.HasErrors() {
		return session.Session{}, vErr
	}

	attendees, err := buildRoster(ctx, s.users, orgID, sessionType, input.Roster)
	if err != nil {
		return session.Session{}, err
	}

	createdAt := s.now()
	sess := session.Session{
		ID:           s.idGenerator(),
		OrgID:        orgID,
		Title:        strings.TrimSpace(input.Title),
		StartDate:    input.StartDate,
		EndDate:      input.EndDate,
		StartTime:    input.StartTime,
		EndTime:      input.EndTime,
		Type:         sessionType,
		LocationSpec: input.LocationSpec,
		RadiusMeters: input.RadiusMeters,
		VirtualLink:  input.VirtualLink,
		Roster:       attendees,
		ScanCode:     s.scanCodes(),
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return session.Session{}, mapSessionRepoError(err)
	}
	s.cache.Invalidate()

	logger := serviceLogger(ctx, s.logger, "session", "create", "org_id", orgID)
	logger.InfoContext(ctx, "session created", "session_id", sess.ID, "date", sess.StartDate)
	warnDoubleBookings(ctx, s.sessions, s.orgLocation(ctx, orgID), logger, orgID, sess)
	return sess, nil
}

// UpdateSession patches a session. Past sessions reject edits and
// cancelled ones must be reinstated first.
func (s *SessionService) UpdateSession(ctx context.Context, params UpdateSessionParams) (session.Session, error) {
	if !params.Principal.Role.CanManage() {
		return session.Session{}, ErrForbidden
	}
	orgID := params.Principal.OrgID

	existing, err := s.sessions.GetSession(ctx, orgID, params.SessionID)
	if err != nil {
		return session.Session{}, mapSessionRepoError(err)
	}
	if existing.Cancelled {
		return session.Session{}, fmt.Errorf("update session %s: %w", existing.ID, ErrSessionCancelled)
	}
	classifier := session.NewClassifier(s.orgLocation(ctx, orgID))
	now := s.now()
	if classifier.Classify(existing, now).Status == session.StatusPast {
		return session.Session{}, fmt.Errorf("update session %s: %w", existing.ID, ErrSessionEnded)
	}

	input := resolveSessionPatch(existing, params.Patch)

	vErr := &ValidationError{}
	sessionType := validateSharedFields(sharedFieldValues{
		Title:        input.Title,
		SessionType:  input.SessionType,
		LocationSpec: input.LocationSpec,
		RadiusMeters: input.RadiusMeters,
		VirtualLink:  input.VirtualLink,
		Roster:       input.Roster,
	}, vErr)
	validateSessionTemporal(input, vErr)
	if vErr.HasErrors() {
		return session.Session{}, vErr
	}

	if err := ensureRosterUsersExist(ctx, s.users, orgID, input.Roster, vErr); err != nil {
		return session.Session{}, err
	}
	if vErr.HasErrors() {
		return session.Session{}, vErr
	}

	attendees, err := buildRoster(ctx, s.users, orgID, sessionType, input.Roster)
	if err != nil {
		return session.Session{}, err
	}

	updated := existing
	updated.Title = strings.TrimSpace(input.Title)
	updated.StartDate = input.StartDate
	updated.EndDate = input.EndDate
	updated.StartTime = input.StartTime
	updated.EndTime = input.EndTime
	updated.Type = sessionType
	updated.LocationSpec = input.LocationSpec
	updated.RadiusMeters = input.RadiusMeters
	updated.VirtualLink = input.VirtualLink
	updated.Roster = attendees
	updated.UpdatedAt = s.now()

	if err := s.sessions.UpdateSession(ctx, updated); err != nil {
		return session.Session{}, mapSessionRepoError(err)
	}
	s.cache.Invalidate()

	serviceLogger(ctx, s.logger, "session", "update", "org_id", orgID).
		InfoContext(ctx, "session updated", "session_id", updated.ID)
	return updated, nil
}

// CancelSession marks a session cancelled without touching its slot in
// the calendar. Completed sessions cannot be cancelled.
func (s *SessionService) CancelSession(ctx context.Context, principal Principal, sessionID, reason string) (session.Session, error) {
	if !principal.Role.CanManage() {
		return session.Session{}, ErrForbidden
	}
	existing, err := s.sessions.GetSession(ctx, principal.OrgID, sessionID)
	if err != nil {
		return session.Session{}, mapSessionRepoError(err)
	}
	if existing.Completed {
		return session.Session{}, fmt.Errorf("cancel session %s: %w", sessionID, ErrSessionCompleted)
	}

	existing.Cancelled = true
	existing.CancellationReason = strings.TrimSpace(reason)
	existing.UpdatedAt = s.now()
	if err := s.sessions.UpdateSession(ctx, existing); err != nil {
		return session.Session{}, mapSessionRepoError(err)
	}
	s.cache.Invalidate()

	serviceLogger(ctx, s.logger, "session", "cancel", "org_id", principal.OrgID).
		InfoContext(ctx, "session cancelled", "session_id", sessionID)
	return existing, nil
}

// ReinstateSession clears the cancellation flag. Reinstating a session
// that is not cancelled is a no-op.
func (s *SessionService) ReinstateSession(ctx context.Context, principal Principal, sessionID string) (session.Session, error) {
	if !principal.Role.CanManage() {
		return session.Session{}, ErrForbidden
	}
	existing, err := s.sessions.GetSession(ctx, principal.OrgID, sessionID)
	if err != nil {
		return session.Session{}, mapSessionRepoError(err)
	}
	if !existing.Cancelled {
		return existing, nil
	}

	existing.Cancelled = false
	existing.CancellationReason = ""
	existing.UpdatedAt = s.now()
	if err := s.sessions.UpdateSession(ctx, existing); err != nil {
		return session.Session{}, mapSessionRepoError(err)
	}
	s.cache.Invalidate()

	serviceLogger(ctx, s.logger, "session", "reinstate", "org_id", principal.OrgID).
		InfoContext(ctx, "session reinstated", "session_id", sessionID)
	return existing, nil
}

// CompleteSession marks a session completed by operator action.
func (s *SessionService) CompleteSession(ctx context.Context, principal Principal, sessionID string) (session.Session, error) {
	if !principal.Role.CanManage() {
		return session.Session{}, ErrForbidden
	}
	existing, err := s.sessions.GetSession(ctx, principal.OrgID, sessionID)
	if err != nil {
		return session.Session{}, mapSessionRepoError(err)
	}
	if existing.Cancelled {
		return session.Session{}, fmt.Errorf("complete session %s: %w", sessionID, ErrSessionCancelled)
	}
	if existing.Completed {
		return existing, nil
	}

	existing.Completed = true
	existing.UpdatedAt = s.now()
	if err := s.sessions.UpdateSession(ctx, existing); err != nil {
		return session.Session{}, mapSessionRepoError(err)
	}
	s.cache.Invalidate()

	serviceLogger(ctx, s.logger, "session", "complete", "org_id", principal.OrgID).
		InfoContext(ctx, "session completed", "session_id", sessionID)
	return existing, nil
}

// RotateScanCode regenerates the opaque code a session's QR carries.
// The same edit guards as UpdateSession apply.
func (s *SessionService) RotateScanCode(ctx context.Context, principal Principal, sessionID string) (session.Session, error) {
	if !principal.Role.CanManage() {
		return session.Session{}, ErrForbidden
	}
	existing, err := s.sessions.GetSession(ctx, principal.OrgID, sessionID)
	if err != nil {
		return session.Session{}, mapSessionRepoError(err)
	}
	if existing.Cancelled {
		return session.Session{}, fmt.Errorf("rotate scan code %s: %w", sessionID, ErrSessionCancelled)
	}
	classifier := session.NewClassifier(s.orgLocation(ctx, principal.OrgID))
	if classifier.Classify(existing, s.now()).Status == session.StatusPast {
		return session.Session{}, fmt.Errorf("rotate scan code %s: %w", sessionID, ErrSessionEnded)
	}

	existing.ScanCode = s.scanCodes()
	existing.UpdatedAt = s.now()
	if err := s.sessions.UpdateSession(ctx, existing); err != nil {
		return session.Session{}, mapSessionRepoError(err)
	}

	serviceLogger(ctx, s.logger, "session", "rotate-scan-code", "org_id", principal.OrgID).
		InfoContext(ctx, "scan code rotated", "session_id", sessionID)
	return existing, nil
}

// GetSession returns one session annotated with its classification.
func (s *SessionService) GetSession(ctx context.Context, principal Principal, sessionID string) (SessionView, error) {
	sess, err := s.sessions.GetSession(ctx, principal.OrgID, sessionID)
	if err != nil {
		return SessionView{}, mapSessionRepoError(err)
	}
	classifier := session.NewClassifier(s.orgLocation(ctx, principal.OrgID))
	return s.annotate(classifier, sess, s.now()), nil
}

// ListSessions returns the organization's sessions in date order,
// annotated with classifications.
func (s *SessionService) ListSessions(ctx context.Context, params ListSessionsParams) ([]SessionView, error) {
	query := SessionQuery{
		OrgID:   params.Principal.OrgID,
		BatchID: params.BatchID,
		Date:    params.Date,
	}
	if params.Mine {
		query.UserID = params.Principal.UserID
	}
	sessions, err := s.sessions.ListSessions(ctx, query)
	if err != nil {
		return nil, mapSessionRepoError(err)
	}

	classifier := session.NewClassifier(s.orgLocation(ctx, params.Principal.OrgID))
	now := s.now()
	views := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, s.annotate(classifier, sess, now))
	}
	return views, nil
}

// ListSessionsForDate returns every session on one calendar date,
// including cancelled and past ones.
func (s *SessionService) ListSessionsForDate(ctx context.Context, principal Principal, date string) ([]SessionView, error) {
	return s.ListSessions(ctx, ListSessionsParams{Principal: principal, Date: date})
}

// ListUserSessions returns every session whose roster carries the given
// user. Members may only request their own; managing roles may request
// anyone in the organization. The calendar feed is built from this.
func (s *SessionService) ListUserSessions(ctx context.Context, principal Principal, userID string) ([]SessionView, error) {
	if userID != principal.UserID && !principal.Role.CanManage() {
		return nil, fmt.Errorf("list sessions for user %s: %w", userID, ErrForbidden)
	}

	sessions, err := s.sessions.ListSessions(ctx, SessionQuery{OrgID: principal.OrgID, UserID: userID})
	if err != nil {
		return nil, mapSessionRepoError(err)
	}

	classifier := session.NewClassifier(s.orgLocation(ctx, principal.OrgID))
	now := s.now()
	views := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, s.annotate(classifier, sess, now))
	}
	return views, nil
}

// VisibleSessionsFor runs the display filter: either everything on a
// selected date, or the upcoming window truncated for display.
func (s *SessionService) VisibleSessionsFor(ctx context.Context, params VisibleSessionsParams) (VisibleSessions, error) {
	query := SessionQuery{OrgID: params.Principal.OrgID}
	if params.Mine {
		query.UserID = params.Principal.UserID
	}
	sessions, err := s.sessions.ListSessions(ctx, query)
	if err != nil {
		return VisibleSessions{}, mapSessionRepoError(err)
	}

	classifier := session.NewClassifier(s.orgLocation(ctx, params.Principal.OrgID))
	now := s.now()
	set := classifier.VisibleSessions(sessions, session.Filter{
		SelectedDate: params.SelectedDate,
		ShowPast:     params.ShowPast,
	}, now)

	views := make([]SessionView, 0, len(set.Visible))
	for _, sess := range set.Visible {
		views = append(views, s.annotate(classifier, sess, now))
	}
	remaining := set.RemainingCount
	if remaining < 0 {
		remaining = 0
	}
	return VisibleSessions{Sessions: views, RemainingCount: remaining}, nil
}

// DayIndicators aggregates the calendar dot colors for one month.
func (s *SessionService) DayIndicators(ctx context.Context, params DayIndicatorsParams) (map[string]session.Indicator, error) {
	key := indicatorCacheKey(params)
	if cached, ok := s.cache.get(key); ok {
		return cached, nil
	}

	query := SessionQuery{OrgID: params.Principal.OrgID}
	if params.Mine {
		query.UserID = params.Principal.UserID
	}
	sessions, err := s.sessions.ListSessions(ctx, query)
	if err != nil {
		return nil, mapSessionRepoError(err)
	}

	classifier := session.NewClassifier(s.orgLocation(ctx, params.Principal.OrgID))
	indicators := classifier.MonthIndicators(sessions, params.Year, params.Month, s.now())
	s.cache.store(key, indicators)
	return indicators, nil
}

func (s *SessionService) annotate(classifier *session.Classifier, sess session.Session, now time.Time) SessionView {
	classification := classifier.Classify(sess, now)
	return SessionView{
		Session: sess,
		Status:  classification.Status,
		IsToday: classification.IsToday,
	}
}

func (s *SessionService) orgLocation(ctx context.Context, orgID string) *time.Location {
	if s.orgs != nil {
		if loc, err := s.orgs.OrgTimezone(ctx, orgID); err == nil && loc != nil {
			return loc
		}
	}
	return s.location
}

// resolveSessionPatch merges a tri-state patch onto the stored session.
// A type change without an explicit roster runs the stored roster
// through the type-switch rules.
func resolveSessionPatch(existing session.Session, patch SessionPatch) SessionInput {
	input := SessionInput{
		Title:        patch.Title.apply(existing.Title),
		StartDate:    patch.StartDate.apply(existing.StartDate),
		EndDate:      patch.EndDate.apply(existing.EndDate),
		StartTime:    patch.StartTime.apply(existing.StartTime),
		EndTime:      patch.EndTime.apply(existing.EndTime),
		SessionType:  patch.SessionType.apply(string(existing.Type)),
		LocationSpec: patch.LocationSpec.apply(existing.LocationSpec),
		RadiusMeters: patch.RadiusMeters.apply(existing.RadiusMeters),
		VirtualLink:  patch.VirtualLink.apply(existing.VirtualLink),
	}

	rosterEntries := attendeesToInputs(existing.Roster)
	if input.SessionType != string(existing.Type) && !patch.Roster.Specified() {
		if newType, ok := session.ParseType(input.SessionType); ok {
			manager, _ := roster.Hydrate(existing.Type, existing.Roster)
			manager.SwitchType(newType)
			if switched, err := manager.Serialize(); err == nil {
				rosterEntries = attendeesToInputs(switched)
			}
		}
	}
	if entries, ok := patch.Roster.Get(); ok {
		rosterEntries = entries
	} else if patch.Roster.Cleared() {
		rosterEntries = nil
	}
	input.Roster = rosterEntries
	return input
}

// validateSessionTemporal checks the date and time fields of a one-off
// session. Overnight spans (endTime before startTime without an
// endDate) are legitimate; the classifier rolls them to the next day.
func validateSessionTemporal(input SessionInput, vErr *ValidationError) {
	if input.StartDate == "" {
		vErr.add("startDate", "startDate is required")
	} else if !validCivilDate(input.StartDate) {
		vErr.add("startDate", "must be a YYYY-MM-DD date")
	}
	if input.EndDate != "" {
		if !validCivilDate(input.EndDate) {
			vErr.add("endDate", "must be a YYYY-MM-DD date")
		} else if validCivilDate(input.StartDate) && input.EndDate < input.StartDate {
			vErr.add("endDate", "must not be before startDate")
		}
	}

	if input.StartTime == "" {
		vErr.add("startTime", "startTime is required")
	} else if !validClock(input.StartTime) {
		vErr.add("startTime", "must be a HH:MM time")
	}
	if input.EndTime != "" && !validClock(input.EndTime) {
		vErr.add("endTime", "must be a HH:MM time")
	}

	sameDay := input.EndDate == "" || input.EndDate == input.StartDate
	if input.EndDate != "" && sameDay &&
		validClock(input.StartTime) && validClock(input.EndTime) &&
		input.EndTime <= input.StartTime {
		vErr.add("endTime", "must be after startTime on a single-day session")
	}
}

func validCivilDate(value string) bool {
	if len(value) != len("2006-01-02") {
		return false
	}
	_, err := time.Parse("2006-01-02", value)
	return err == nil
}

func validClock(value string) bool {
	if len(value) != len("15:04") {
		return false
	}
	_, err := time.Parse("15:04", value)
	return err == nil
}

func mapSessionRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("session already exists: %w", err)
	case errors.Is(err, persistence.ErrForeignKey):
		return ErrNotFound
	}
	return err
}
