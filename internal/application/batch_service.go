package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/gosimple/slug"

	"github.com/example/attendance-tracker/internal/persistence"
	"github.com/example/attendance-tracker/internal/recurrence"
	"github.com/example/attendance-tracker/internal/roster"
	"github.com/example/attendance-tracker/internal/session"
)

// BatchStore captures the persistence interactions needed by the batch
// service. CreateBatch and UpdateBatch are transactional: the batch row
// and its session changes land together or not at all, which is also
// what keeps concurrent expanders from duplicating occurrences.
type BatchStore interface {
	CreateBatch(ctx context.Context, batch Batch, sessions []session.Session) error
	UpdateBatch(ctx context.Context, batch Batch, removeSessionIDs []string, upsertSessions []session.Session) error
	GetBatch(ctx context.Context, orgID, id string) (Batch, error)
	GetBatchBySlug(ctx context.Context, orgID, slugValue string) (Batch, error)
	ListBatches(ctx context.Context, orgID string) ([]Batch, error)
	SlugExists(ctx context.Context, orgID, slugValue string) (bool, error)
}

// UserDirectory exposes the member lookups roster handling needs.
type UserDirectory interface {
	MissingUserIDs(ctx context.Context, orgID string, ids []string) ([]string, error)
	UsersByID(ctx context.Context, orgID string, ids []string) ([]User, error)
}

// OrgDirectory resolves per-organization settings.
type OrgDirectory interface {
	OrgTimezone(ctx context.Context, orgID string) (*time.Location, error)
}

// BatchServiceDeps wires the collaborators of a BatchService.
type BatchServiceDeps struct {
	Batches   BatchStore
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

// BatchService orchestrates validation, expansion, and persistence for
// recurrence batches.
type BatchService struct {
	batches     BatchStore
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

// NewBatchService wires dependencies for batch operations.
func NewBatchService(deps BatchServiceDeps) *BatchService {
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
	return &BatchService{
		batches:     deps.Batches,
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

// CreateBatch validates the descriptor and shared fields, expands the
// occurrence set, and persists the batch together with one session per
// occurrence.
func (s *BatchService) CreateBatch(ctx context.Context, params CreateBatchParams) (Batch, []session.Session, error) {
	if !params.Principal.Role.CanManage() {
		return Batch{}, nil, ErrForbidden
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
	if err := mergeDescriptorError(recurrence.Validate(input.Descriptor), vErr); err != nil {
		return Batch{}, nil, fmt.Errorf("validate descriptor: %w", err)
	}
	if input.Descriptor.Frequency == recurrence.FrequencyRandom {
		s.checkCustomDatesNotPast(ctx, orgID, input.Descriptor.CustomDates, vErr)
	}
	if vErr.HasErrors() {
		return Batch{}, nil, vErr
	}

	if err := ensureRosterUsersExist(ctx, s.users, orgID, input.Roster, vErr); err != nil {
		return Batch{}, nil, err
	}
	if vErr.HasErrors() {
		return Batch{}, nil, vErr
	}

	occurrences, err := recurrence.Expand(input.Descriptor)
	if err != nil {
		if mergeErr := mergeDescriptorError(err, vErr); mergeErr != nil {
			return Batch{}, nil, fmt.Errorf("expand descriptor: %w", mergeErr)
		}
		return Batch{}, nil, vErr
	}
	if len(occurrences) == 0 {
		vErr.add("frequency", "expansion produced no occurrences in the date window")
		return Batch{}, nil, vErr
	}

	attendees, err := buildRoster(ctx, s.users, orgID, sessionType, input.Roster)
	if err != nil {
		return Batch{}, nil, err
	}
	slugValue, err := s.uniqueSlug(ctx, orgID, input.Title)
	if err != nil {
		return Batch{}, nil, err
	}

	createdAt := s.now()
	batch := Batch{
		ID:           s.idGenerator(),
		OrgID:        orgID,
		Title:        strings.TrimSpace(input.Title),
		Slug:         slugValue,
		Descriptor:   input.Descriptor,
		SessionType:  sessionType,
		LocationSpec: input.LocationSpec,
		RadiusMeters: input.RadiusMeters,
		VirtualLink:  input.VirtualLink,
		Roster:       attendees,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	sessions := make([]session.Session, 0, len(occurrences))
	for _, occurrence := range occurrences {
		sessions = append(sessions, s.materializeSession(batch, occurrence, createdAt))
	}

	if err := s.batches.CreateBatch(ctx, batch, sessions); err != nil {
		return Batch{}, nil, mapBatchRepoError(err)
	}
	s.cache.Invalidate()

	logger := serviceLogger(ctx, s.logger, "batch", "create", "org_id", orgID)
	logger.InfoContext(ctx, "batch created", "batch_id", batch.ID, "slug", batch.Slug, "sessions", len(sessions))
	warnDoubleBookings(ctx, s.sessions, s.orgLocation(ctx, orgID), logger, orgID, sessions...)
	return batch, sessions, nil
}

// UpdateBatch re-derives shared fields onto the batch and its future
// sessions. Expansion re-runs only when the occurrence-shaping inputs
// changed, in which case upcoming sessions are replaced by the new
// occurrence set while past and live ones stay untouched.
func (s *BatchService) UpdateBatch(ctx context.Context, params UpdateBatchParams) (Batch, error) {
	if !params.Principal.Role.CanManage() {
		return Batch{}, ErrForbidden
	}
	orgID := params.Principal.OrgID

	existing, err := s.batches.GetBatch(ctx, orgID, params.BatchID)
	if err != nil {
		return Batch{}, mapBatchRepoError(err)
	}

	input := resolveBatchPatch(existing, params.Patch)

	vErr := &ValidationError{}
	sessionType := validateSharedFields(sharedFieldValues{
		Title:        input.Title,
		SessionType:  input.SessionType,
		LocationSpec: input.LocationSpec,
		RadiusMeters: input.RadiusMeters,
		VirtualLink:  input.VirtualLink,
		Roster:       input.Roster,
	}, vErr)
	if err := mergeDescriptorError(recurrence.Validate(input.Descriptor), vErr); err != nil {
		return Batch{}, fmt.Errorf("validate descriptor: %w", err)
	}

	expansionChanged := !sameOccurrenceShape(existing.Descriptor, input.Descriptor)
	if expansionChanged && input.Descriptor.Frequency == recurrence.FrequencyRandom {
		s.checkCustomDatesNotPast(ctx, orgID, input.Descriptor.CustomDates, vErr)
	}
	if vErr.HasErrors() {
		return Batch{}, vErr
	}

	if err := ensureRosterUsersExist(ctx, s.users, orgID, input.Roster, vErr); err != nil {
		return Batch{}, err
	}
	if vErr.HasErrors() {
		return Batch{}, vErr
	}

	attendees, err := buildRoster(ctx, s.users, orgID, sessionType, input.Roster)
	if err != nil {
		return Batch{}, err
	}

	now := s.now()
	updated := existing
	updated.Title = strings.TrimSpace(input.Title)
	updated.Descriptor = input.Descriptor
	updated.SessionType = sessionType
	updated.LocationSpec = input.LocationSpec
	updated.RadiusMeters = input.RadiusMeters
	updated.VirtualLink = input.VirtualLink
	updated.Roster = attendees
	updated.UpdatedAt = now

	removeIDs, upserts, err := s.planSessionChanges(ctx, existing, updated, expansionChanged, now)
	if err != nil {
		return Batch{}, err
	}

	if err := s.batches.UpdateBatch(ctx, updated, removeIDs, upserts); err != nil {
		return Batch{}, mapBatchRepoError(err)
	}
	s.cache.Invalidate()

	serviceLogger(ctx, s.logger, "batch", "update", "org_id", orgID).
		InfoContext(ctx, "batch updated", "batch_id", updated.ID,
			"re_expanded", expansionChanged, "removed", len(removeIDs), "upserted", len(upserts))
	return updated, nil
}

// planSessionChanges decides which of the batch's sessions an update
// removes, rewrites, or adds. Past sessions are never touched.
func (s *BatchService) planSessionChanges(ctx context.Context, existing, updated Batch, expansionChanged bool, now time.Time) ([]string, []session.Session, error) {
	current, err := s.sessions.ListSessions(ctx, SessionQuery{OrgID: updated.OrgID, BatchID: updated.ID})
	if err != nil {
		return nil, nil, fmt.Errorf("list batch sessions: %w", err)
	}
	classifier := session.NewClassifier(s.orgLocation(ctx, updated.OrgID))

	var removeIDs []string
	var upserts []session.Session

	if !expansionChanged {
		for _, sess := range current {
			if classifier.Classify(sess, now).Status == session.StatusPast {
				continue
			}
			upserts = append(upserts, applySharedFields(sess, updated, now))
		}
		return removeIDs, upserts, nil
	}

	occurrences, err := recurrence.Expand(updated.Descriptor)
	if err != nil {
		return nil, nil, fmt.Errorf("expand descriptor: %w", err)
	}

	var preserved []session.Session
	for _, sess := range current {
		if classifier.Classify(sess, now).Status == session.StatusUpcoming {
			removeIDs = append(removeIDs, sess.ID)
			continue
		}
		preserved = append(preserved, sess)
	}

	// Occurrences colliding with a preserved session's slot would
	// duplicate a meeting that already ran or is running.
	taken := make(map[string]struct{}, len(preserved))
	for _, sess := range preserved {
		taken[sess.StartDate+"|"+sess.StartTime] = struct{}{}
	}
	for _, occurrence := range occurrences {
		if _, clash := taken[occurrence.Date+"|"+occurrence.StartTime]; clash {
			continue
		}
		candidate := s.materializeSession(updated, occurrence, now)
		// Re-expansion only replaces sessions that have not started, so
		// a candidate that would already be past or live is dropped
		// rather than inserted mid-meeting.
		if classifier.Classify(candidate, now).Status != session.StatusUpcoming {
			continue
		}
		upserts = append(upserts, candidate)
	}
	for _, sess := range preserved {
		if classifier.Classify(sess, now).Status == session.StatusPast {
			continue
		}
		upserts = append(upserts, applySharedFields(sess, updated, now))
	}
	return removeIDs, upserts, nil
}

// GetBatch returns one batch in the caller's organization.
func (s *BatchService) GetBatch(ctx context.Context, principal Principal, batchID string) (Batch, error) {
	batch, err := s.batches.GetBatch(ctx, principal.OrgID, batchID)
	if err != nil {
		return Batch{}, mapBatchRepoError(err)
	}
	return batch, nil
}

// GetBatchBySlug resolves a batch by its per-org slug.
func (s *BatchService) GetBatchBySlug(ctx context.Context, principal Principal, slugValue string) (Batch, error) {
	batch, err := s.batches.GetBatchBySlug(ctx, principal.OrgID, slugValue)
	if err != nil {
		return Batch{}, mapBatchRepoError(err)
	}
	return batch, nil
}

// ListBatches returns the organization's batches, newest first.
func (s *BatchService) ListBatches(ctx context.Context, principal Principal) ([]Batch, error) {
	batches, err := s.batches.ListBatches(ctx, principal.OrgID)
	if err != nil {
		return nil, mapBatchRepoError(err)
	}
	sort.SliceStable(batches, func(i, j int) bool {
		if !batches[i].CreatedAt.Equal(batches[j].CreatedAt) {
			return batches[i].CreatedAt.After(batches[j].CreatedAt)
		}
		return batches[i].ID > batches[j].ID
	})
	return batches, nil
}

func (s *BatchService) materializeSession(batch Batch, occurrence recurrence.Occurrence, at time.Time) session.Session {
	return session.Session{
		ID:           s.idGenerator(),
		OrgID:        batch.OrgID,
		BatchID:      batch.ID,
		Title:        batch.Title,
		StartDate:    occurrence.Date,
		StartTime:    occurrence.StartTime,
		EndTime:      occurrence.EndTime,
		Type:         batch.SessionType,
		LocationSpec: batch.LocationSpec,
		RadiusMeters: batch.RadiusMeters,
		VirtualLink:  batch.VirtualLink,
		Roster:       cloneAttendees(batch.Roster),
		ScanCode:     s.scanCodes(),
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

// applySharedFields rewrites the batch-shared fields of one session
// while leaving its identity, dates, scan code, and flags alone.
func applySharedFields(sess session.Session, batch Batch, at time.Time) session.Session {
	sess.Title = batch.Title
	sess.StartTime = batch.Descriptor.StartTime
	sess.EndTime = batch.Descriptor.EndTime
	sess.Type = batch.SessionType
	sess.LocationSpec = batch.LocationSpec
	sess.RadiusMeters = batch.RadiusMeters
	sess.VirtualLink = batch.VirtualLink
	sess.Roster = cloneAttendees(batch.Roster)
	sess.UpdatedAt = at
	return sess
}

// resolveBatchPatch merges a tri-state patch onto the stored batch,
// producing the full desired state for validation. A session type
// change without an explicit roster runs the stored roster through the
// type-switch rules (hybrid transitions clear selections).
func resolveBatchPatch(existing Batch, patch BatchPatch) BatchInput {
	descriptor := existing.Descriptor
	if value, ok := patch.Frequency.Get(); ok {
		if parsed, valid := recurrence.ParseFrequency(value); valid {
			descriptor.Frequency = parsed
		} else {
			descriptor.Frequency = recurrence.FrequencyUnspecified
		}
	}
	descriptor.StartDate = patch.StartDate.apply(descriptor.StartDate)
	descriptor.EndDate = patch.EndDate.apply(descriptor.EndDate)
	descriptor.Weekdays = patch.Weekdays.apply(descriptor.Weekdays)
	descriptor.CustomDates = patch.CustomDates.apply(descriptor.CustomDates)
	descriptor.StartTime = patch.StartTime.apply(descriptor.StartTime)
	descriptor.EndTime = patch.EndTime.apply(descriptor.EndTime)

	input := BatchInput{
		Title:        patch.Title.apply(existing.Title),
		Descriptor:   descriptor,
		SessionType:  patch.SessionType.apply(string(existing.SessionType)),
		LocationSpec: patch.LocationSpec.apply(existing.LocationSpec),
		RadiusMeters: patch.RadiusMeters.apply(existing.RadiusMeters),
		VirtualLink:  patch.VirtualLink.apply(existing.VirtualLink),
	}

	rosterEntries := attendeesToInputs(existing.Roster)
	if input.SessionType != string(existing.SessionType) && !patch.Roster.Specified() {
		if newType, ok := session.ParseType(input.SessionType); ok {
			manager, _ := roster.Hydrate(existing.SessionType, existing.Roster)
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

// sameOccurrenceShape reports whether two descriptors expand to the
// same dates. Start and end times are shared fields, not shape.
func sameOccurrenceShape(a, b recurrence.Descriptor) bool {
	return a.Frequency == b.Frequency &&
		a.StartDate == b.StartDate &&
		a.EndDate == b.EndDate &&
		slices.Equal(a.Weekdays, b.Weekdays) &&
		slices.Equal(a.CustomDates, b.CustomDates)
}

func attendeesToInputs(entries []session.Attendee) []RosterEntryInput {
	if len(entries) == 0 {
		return nil
	}
	out := make([]RosterEntryInput, 0, len(entries))
	for _, entry := range entries {
		out = append(out, RosterEntryInput{UserID: entry.UserID, Mode: string(entry.Mode)})
	}
	return out
}

// checkCustomDatesNotPast rejects random-frequency dates already behind
// the organization's calendar.
func (s *BatchService) checkCustomDatesNotPast(ctx context.Context, orgID string, dates []string, vErr *ValidationError) {
	today := civilDate(s.now().In(s.orgLocation(ctx, orgID)))
	for _, date := range dates {
		if date < today {
			vErr.add("customDates", "dates must not be in the past")
			return
		}
	}
}

func (s *BatchService) orgLocation(ctx context.Context, orgID string) *time.Location {
	if s.orgs != nil {
		if loc, err := s.orgs.OrgTimezone(ctx, orgID); err == nil && loc != nil {
			return loc
		}
	}
	return s.location
}

// uniqueSlug derives a per-org slug from the title, suffixing a counter
// until it is free.
func (s *BatchService) uniqueSlug(ctx context.Context, orgID, title string) (string, error) {
	base := slug.Make(strings.TrimSpace(title))
	if base == "" {
		base = "batch"
	}
	candidate := base
	for attempt := 2; attempt <= 100; attempt++ {
		taken, err := s.batches.SlugExists(ctx, orgID, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, attempt)
	}
	return "", fmt.Errorf("derive slug for %q: exhausted candidates", base)
}

func mapBatchRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		// Pre-checked slugs can still race with a concurrent create.
		vErr := &ValidationError{}
		vErr.add("slug", "already in use")
		return vErr
	case errors.Is(err, persistence.ErrForeignKey):
		return ErrNotFound
	}
	return err
}
