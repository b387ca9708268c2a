// Package memory provides an in-memory implementation of the
// persistence repositories. It backs tests and the development server;
// the production store lives in the sqlite package.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/attendance-tracker/internal/persistence"
)

// Store keeps every record in process memory behind one RWMutex. All
// methods are safe for concurrent use and every record is cloned on the
// way in and out, so callers never share slices or pointers with the
// store.
type Store struct {
	mu            sync.RWMutex
	organizations map[string]persistence.Organization
	users         map[string]persistence.User
	batches       map[string]persistence.Batch
	sessions      map[string]persistence.Session
	checkIns      map[string]persistence.CheckIn
}

var (
	_ persistence.OrganizationRepository = (*Store)(nil)
	_ persistence.UserRepository         = (*Store)(nil)
	_ persistence.BatchRepository        = (*Store)(nil)
	_ persistence.SessionRepository      = (*Store)(nil)
	_ persistence.CheckInRepository      = (*Store)(nil)
)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		organizations: make(map[string]persistence.Organization),
		users:         make(map[string]persistence.User),
		batches:       make(map[string]persistence.Batch),
		sessions:      make(map[string]persistence.Session),
		checkIns:      make(map[string]persistence.CheckIn),
	}
}

// CreateOrganization stores a new organization.
func (s *Store) CreateOrganization(_ context.Context, org persistence.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.organizations[org.ID]; exists {
		return fmt.Errorf("organization %s: %w", org.ID, persistence.ErrDuplicate)
	}
	s.organizations[org.ID] = org
	return nil
}

// GetOrganization returns an organization by ID.
func (s *Store) GetOrganization(_ context.Context, id string) (persistence.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, exists := s.organizations[id]
	if !exists {
		return persistence.Organization{}, fmt.Errorf("organization %s: %w", id, persistence.ErrNotFound)
	}
	return org, nil
}

// ListOrganizations returns all organizations ordered by ID.
func (s *Store) ListOrganizations(_ context.Context) ([]persistence.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Organization, 0, len(s.organizations))
	for _, org := range s.organizations {
		out = append(out, org)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateUser stores a new user. The organization must exist.
func (s *Store) CreateUser(_ context.Context, user persistence.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return fmt.Errorf("user %s: %w", user.ID, persistence.ErrDuplicate)
	}
	if _, exists := s.organizations[user.OrgID]; !exists {
		return fmt.Errorf("user %s organization %s: %w", user.ID, user.OrgID, persistence.ErrForeignKey)
	}
	for _, existing := range s.users {
		if existing.OrgID == user.OrgID && existing.Email == user.Email {
			return fmt.Errorf("user email %s: %w", user.Email, persistence.ErrDuplicate)
		}
	}
	s.users[user.ID] = user
	return nil
}

// GetUser returns a user scoped to an organization.
func (s *Store) GetUser(_ context.Context, orgID, id string) (persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists || user.OrgID != orgID {
		return persistence.User{}, fmt.Errorf("user %s: %w", id, persistence.ErrNotFound)
	}
	return user, nil
}

// ListUsers returns an organization's users ordered by ID.
func (s *Store) ListUsers(_ context.Context, orgID string) ([]persistence.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.User, 0)
	for _, user := range s.users {
		if user.OrgID == orgID {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MissingUserIDs reports which IDs have no user in the organization.
func (s *Store) MissingUserIDs(_ context.Context, orgID string, ids []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	missing := make([]string, 0)
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if user, exists := s.users[id]; !exists || user.OrgID != orgID {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// CreateBatch stores a batch and its expanded sessions atomically.
func (s *Store) CreateBatch(_ context.Context, batch persistence.Batch, sessions []persistence.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batch.ID]; exists {
		return fmt.Errorf("batch %s: %w", batch.ID, persistence.ErrDuplicate)
	}
	if _, exists := s.organizations[batch.OrgID]; !exists {
		return fmt.Errorf("batch %s organization %s: %w", batch.ID, batch.OrgID, persistence.ErrForeignKey)
	}
	if s.slugTakenLocked(batch.OrgID, batch.Slug, batch.ID) {
		return fmt.Errorf("batch slug %s: %w", batch.Slug, persistence.ErrDuplicate)
	}
	for _, sess := range sessions {
		if _, exists := s.sessions[sess.ID]; exists {
			return fmt.Errorf("session %s: %w", sess.ID, persistence.ErrDuplicate)
		}
	}

	s.batches[batch.ID] = cloneBatch(batch)
	for _, sess := range sessions {
		s.sessions[sess.ID] = cloneSession(sess)
	}
	return nil
}

// UpdateBatch rewrites a batch, removes the named sessions, and upserts
// the given ones, atomically.
func (s *Store) UpdateBatch(_ context.Context, batch persistence.Batch, removeSessionIDs []string, upsertSessions []persistence.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.batches[batch.ID]; !exists {
		return fmt.Errorf("batch %s: %w", batch.ID, persistence.ErrNotFound)
	}
	if s.slugTakenLocked(batch.OrgID, batch.Slug, batch.ID) {
		return fmt.Errorf("batch slug %s: %w", batch.Slug, persistence.ErrDuplicate)
	}

	s.batches[batch.ID] = cloneBatch(batch)
	for _, id := range removeSessionIDs {
		delete(s.sessions, id)
	}
	for _, sess := range upsertSessions {
		s.sessions[sess.ID] = cloneSession(sess)
	}
	return nil
}

// GetBatch returns a batch scoped to an organization.
func (s *Store) GetBatch(_ context.Context, orgID, id string) (persistence.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	batch, exists := s.batches[id]
	if !exists || batch.OrgID != orgID {
		return persistence.Batch{}, fmt.Errorf("batch %s: %w", id, persistence.ErrNotFound)
	}
	return cloneBatch(batch), nil
}

// GetBatchBySlug returns a batch by its organization-unique slug.
func (s *Store) GetBatchBySlug(_ context.Context, orgID, slug string) (persistence.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, batch := range s.batches {
		if batch.OrgID == orgID && batch.Slug == slug {
			return cloneBatch(batch), nil
		}
	}
	return persistence.Batch{}, fmt.Errorf("batch slug %s: %w", slug, persistence.ErrNotFound)
}

// ListBatches returns an organization's batches ordered by creation
// time, then ID.
func (s *Store) ListBatches(_ context.Context, orgID string) ([]persistence.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Batch, 0)
	for _, batch := range s.batches {
		if batch.OrgID == orgID {
			out = append(out, cloneBatch(batch))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SlugExists reports whether any batch in the organization uses the slug.
func (s *Store) SlugExists(_ context.Context, orgID, slug string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.slugTakenLocked(orgID, slug, ""), nil
}

// CreateSession stores a one-off or batch-expanded session.
func (s *Store) CreateSession(_ context.Context, sess persistence.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ID]; exists {
		return fmt.Errorf("session %s: %w", sess.ID, persistence.ErrDuplicate)
	}
	if _, exists := s.organizations[sess.OrgID]; !exists {
		return fmt.Errorf("session %s organization %s: %w", sess.ID, sess.OrgID, persistence.ErrForeignKey)
	}
	if sess.BatchID != nil {
		if _, exists := s.batches[*sess.BatchID]; !exists {
			return fmt.Errorf("session %s batch %s: %w", sess.ID, *sess.BatchID, persistence.ErrForeignKey)
		}
	}
	s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

// UpdateSession rewrites an existing session.
func (s *Store) UpdateSession(_ context.Context, sess persistence.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.sessions[sess.ID]
	if !exists || existing.OrgID != sess.OrgID {
		return fmt.Errorf("session %s: %w", sess.ID, persistence.ErrNotFound)
	}
	s.sessions[sess.ID] = cloneSession(sess)
	return nil
}

// GetSession returns a session scoped to an organization.
func (s *Store) GetSession(_ context.Context, orgID, id string) (persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, exists := s.sessions[id]
	if !exists || sess.OrgID != orgID {
		return persistence.Session{}, fmt.Errorf("session %s: %w", id, persistence.ErrNotFound)
	}
	return cloneSession(sess), nil
}

// ListSessions returns sessions matching the filter ordered by start
// date, start time, then ID.
func (s *Store) ListSessions(_ context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Session, 0)
	for _, sess := range s.sessions {
		if !matchesFilter(sess, filter) {
			continue
		}
		out = append(out, cloneSession(sess))
	}
	sortSessions(out)
	return out, nil
}

// DeleteSession removes a session and its check-ins.
func (s *Store) DeleteSession(_ context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, exists := s.sessions[id]
	if !exists || sess.OrgID != orgID {
		return fmt.Errorf("session %s: %w", id, persistence.ErrNotFound)
	}
	delete(s.sessions, id)
	for checkInID, checkIn := range s.checkIns {
		if checkIn.SessionID == id {
			delete(s.checkIns, checkInID)
		}
	}
	return nil
}

// ListOpenSessions returns every session that is neither cancelled nor
// completed, across all organizations.
func (s *Store) ListOpenSessions(_ context.Context) ([]persistence.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.Session, 0)
	for _, sess := range s.sessions {
		if sess.Cancelled || sess.Completed {
			continue
		}
		out = append(out, cloneSession(sess))
	}
	sortSessions(out)
	return out, nil
}

// MarkCompleted flags the given sessions as completed. Unknown IDs are
// skipped so a sweep can lose a race with deletion.
func (s *Store) MarkCompleted(_ context.Context, ids []string, completedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		sess, exists := s.sessions[id]
		if !exists {
			continue
		}
		sess.Completed = true
		sess.UpdatedAt = completedAt
		s.sessions[id] = sess
	}
	return nil
}

// CreateCheckIn stores an attendance record. A user may check in to a
// session only once.
func (s *Store) CreateCheckIn(_ context.Context, checkIn persistence.CheckIn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.checkIns[checkIn.ID]; exists {
		return fmt.Errorf("check-in %s: %w", checkIn.ID, persistence.ErrDuplicate)
	}
	sess, exists := s.sessions[checkIn.SessionID]
	if !exists || sess.OrgID != checkIn.OrgID {
		return fmt.Errorf("check-in session %s: %w", checkIn.SessionID, persistence.ErrForeignKey)
	}
	for _, existing := range s.checkIns {
		if existing.SessionID == checkIn.SessionID && existing.UserID == checkIn.UserID {
			return fmt.Errorf("check-in for user %s: %w", checkIn.UserID, persistence.ErrDuplicate)
		}
	}
	s.checkIns[checkIn.ID] = checkIn
	return nil
}

// ListCheckIns returns a session's check-ins ordered by time, then ID.
func (s *Store) ListCheckIns(_ context.Context, orgID, sessionID string) ([]persistence.CheckIn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]persistence.CheckIn, 0)
	for _, checkIn := range s.checkIns {
		if checkIn.OrgID == orgID && checkIn.SessionID == sessionID {
			out = append(out, checkIn)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CheckedInAt.Equal(out[j].CheckedInAt) {
			return out[i].CheckedInAt.Before(out[j].CheckedInAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) slugTakenLocked(orgID, slug, excludeBatchID string) bool {
	for _, batch := range s.batches {
		if batch.ID == excludeBatchID {
			continue
		}
		if batch.OrgID == orgID && batch.Slug == slug {
			return true
		}
	}
	return false
}

func matchesFilter(sess persistence.Session, filter persistence.SessionFilter) bool {
	if filter.OrgID != "" && sess.OrgID != filter.OrgID {
		return false
	}
	if filter.BatchID != "" && (sess.BatchID == nil || *sess.BatchID != filter.BatchID) {
		return false
	}
	if filter.Date != "" && sess.StartDate != filter.Date {
		return false
	}
	if filter.UserID != "" {
		found := false
		for _, entry := range sess.Roster {
			if entry.UserID == filter.UserID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortSessions(sessions []persistence.Session) {
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].StartDate != sessions[j].StartDate {
			return sessions[i].StartDate < sessions[j].StartDate
		}
		if sessions[i].StartTime != sessions[j].StartTime {
			return sessions[i].StartTime < sessions[j].StartTime
		}
		return sessions[i].ID < sessions[j].ID
	})
}

func cloneBatch(batch persistence.Batch) persistence.Batch {
	out := batch
	out.EndDate = cloneStringPtr(batch.EndDate)
	out.LocationSpec = cloneStringPtr(batch.LocationSpec)
	out.RadiusMeters = cloneIntPtr(batch.RadiusMeters)
	out.VirtualLink = cloneStringPtr(batch.VirtualLink)
	out.Weekdays = append([]time.Weekday(nil), batch.Weekdays...)
	out.CustomDates = append([]string(nil), batch.CustomDates...)
	out.Roster = append([]persistence.Attendee(nil), batch.Roster...)
	return out
}

func cloneSession(sess persistence.Session) persistence.Session {
	out := sess
	out.BatchID = cloneStringPtr(sess.BatchID)
	out.EndDate = cloneStringPtr(sess.EndDate)
	out.EndTime = cloneStringPtr(sess.EndTime)
	out.LocationSpec = cloneStringPtr(sess.LocationSpec)
	out.RadiusMeters = cloneIntPtr(sess.RadiusMeters)
	out.VirtualLink = cloneStringPtr(sess.VirtualLink)
	out.CancellationReason = cloneStringPtr(sess.CancellationReason)
	out.Roster = append([]persistence.Attendee(nil), sess.Roster...)
	return out
}

func cloneStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	out := *value
	return &out
}

func cloneIntPtr(value *int) *int {
	if value == nil {
		return nil
	}
	out := *value
	return &out
}
