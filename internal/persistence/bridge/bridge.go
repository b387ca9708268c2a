// Package bridge adapts the persistence repositories to the store
// interfaces the application services consume. The repositories speak
// records with nullable pointer columns; the services speak domain
// values whose optional fields are empty strings and zero ints. The
// adapters translate in both directions and never touch errors, so the
// persistence sentinels flow through for the application layer to map.
package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/example/attendance-tracker/internal/application"
	"github.com/example/attendance-tracker/internal/persistence"
	"github.com/example/attendance-tracker/internal/recurrence"
	"github.com/example/attendance-tracker/internal/session"
)

// BatchStore implements application.BatchStore over a BatchRepository.
type BatchStore struct {
	batches persistence.BatchRepository
}

func NewBatchStore(batches persistence.BatchRepository) *BatchStore {
	return &BatchStore{batches: batches}
}

func (s *BatchStore) CreateBatch(ctx context.Context, batch application.Batch, sessions []session.Session) error {
	return s.batches.CreateBatch(ctx, toBatchRecord(batch), toSessionRecords(sessions))
}

func (s *BatchStore) UpdateBatch(ctx context.Context, batch application.Batch, removeSessionIDs []string, upsertSessions []session.Session) error {
	return s.batches.UpdateBatch(ctx, toBatchRecord(batch), removeSessionIDs, toSessionRecords(upsertSessions))
}

func (s *BatchStore) GetBatch(ctx context.Context, orgID, id string) (application.Batch, error) {
	record, err := s.batches.GetBatch(ctx, orgID, id)
	if err != nil {
		return application.Batch{}, err
	}
	return toBatch(record), nil
}

func (s *BatchStore) GetBatchBySlug(ctx context.Context, orgID, slug string) (application.Batch, error) {
	record, err := s.batches.GetBatchBySlug(ctx, orgID, slug)
	if err != nil {
		return application.Batch{}, err
	}
	return toBatch(record), nil
}

func (s *BatchStore) ListBatches(ctx context.Context, orgID string) ([]application.Batch, error) {
	records, err := s.batches.ListBatches(ctx, orgID)
	if err != nil {
		return nil, err
	}
	batches := make([]application.Batch, 0, len(records))
	for _, record := range records {
		batches = append(batches, toBatch(record))
	}
	return batches, nil
}

func (s *BatchStore) SlugExists(ctx context.Context, orgID, slug string) (bool, error) {
	return s.batches.SlugExists(ctx, orgID, slug)
}

// SessionStore implements application.SessionStore over a
// SessionRepository.
type SessionStore struct {
	sessions persistence.SessionRepository
}

func NewSessionStore(sessions persistence.SessionRepository) *SessionStore {
	return &SessionStore{sessions: sessions}
}

func (s *SessionStore) CreateSession(ctx context.Context, sess session.Session) error {
	return s.sessions.CreateSession(ctx, toSessionRecord(sess))
}

func (s *SessionStore) UpdateSession(ctx context.Context, sess session.Session) error {
	return s.sessions.UpdateSession(ctx, toSessionRecord(sess))
}

func (s *SessionStore) GetSession(ctx context.Context, orgID, id string) (session.Session, error) {
	record, err := s.sessions.GetSession(ctx, orgID, id)
	if err != nil {
		return session.Session{}, err
	}
	return toSession(record), nil
}

func (s *SessionStore) ListSessions(ctx context.Context, query application.SessionQuery) ([]session.Session, error) {
	records, err := s.sessions.ListSessions(ctx, persistence.SessionFilter{
		OrgID:   query.OrgID,
		BatchID: query.BatchID,
		Date:    query.Date,
		UserID:  query.UserID,
	})
	if err != nil {
		return nil, err
	}
	return toSessions(records), nil
}

func (s *SessionStore) ListOpenSessions(ctx context.Context) ([]session.Session, error) {
	records, err := s.sessions.ListOpenSessions(ctx)
	if err != nil {
		return nil, err
	}
	return toSessions(records), nil
}

func (s *SessionStore) MarkCompleted(ctx context.Context, ids []string, completedAt time.Time) error {
	return s.sessions.MarkCompleted(ctx, ids, completedAt)
}

// CheckInStore implements application.CheckInStore over a
// CheckInRepository.
type CheckInStore struct {
	checkIns persistence.CheckInRepository
}

func NewCheckInStore(checkIns persistence.CheckInRepository) *CheckInStore {
	return &CheckInStore{checkIns: checkIns}
}

func (s *CheckInStore) CreateCheckIn(ctx context.Context, checkIn application.CheckIn) error {
	return s.checkIns.CreateCheckIn(ctx, persistence.CheckIn{
		ID:          checkIn.ID,
		OrgID:       checkIn.OrgID,
		SessionID:   checkIn.SessionID,
		UserID:      checkIn.UserID,
		Mode:        string(checkIn.Mode),
		Late:        checkIn.Late,
		CheckedInAt: checkIn.CheckedInAt,
	})
}

func (s *CheckInStore) ListCheckIns(ctx context.Context, orgID, sessionID string) ([]application.CheckIn, error) {
	records, err := s.checkIns.ListCheckIns(ctx, orgID, sessionID)
	if err != nil {
		return nil, err
	}
	checkIns := make([]application.CheckIn, 0, len(records))
	for _, record := range records {
		checkIns = append(checkIns, application.CheckIn{
			ID:          record.ID,
			OrgID:       record.OrgID,
			SessionID:   record.SessionID,
			UserID:      record.UserID,
			Mode:        session.Mode(record.Mode),
			Late:        record.Late,
			CheckedInAt: record.CheckedInAt,
		})
	}
	return checkIns, nil
}

// UserDirectory implements application.UserDirectory over a
// UserRepository.
type UserDirectory struct {
	users persistence.UserRepository
}

func NewUserDirectory(users persistence.UserRepository) *UserDirectory {
	return &UserDirectory{users: users}
}

func (d *UserDirectory) MissingUserIDs(ctx context.Context, orgID string, ids []string) ([]string, error) {
	return d.users.MissingUserIDs(ctx, orgID, ids)
}

func (d *UserDirectory) UsersByID(ctx context.Context, orgID string, ids []string) ([]application.User, error) {
	users := make([]application.User, 0, len(ids))
	for _, id := range ids {
		record, err := d.users.GetUser(ctx, orgID, id)
		if err != nil {
			if errors.Is(err, persistence.ErrNotFound) {
				continue
			}
			return nil, err
		}
		users = append(users, application.User{
			ID:        record.ID,
			OrgID:     record.OrgID,
			Email:     record.Email,
			FirstName: record.FirstName,
			LastName:  record.LastName,
			Role:      application.Role(record.Role),
			CreatedAt: record.CreatedAt,
			UpdatedAt: record.UpdatedAt,
		})
	}
	return users, nil
}

// OrgDirectory implements application.OrgDirectory over an
// OrganizationRepository. Timezones are stored as IANA names and
// resolved on every lookup; the organization cache above this sits in
// the application layer.
type OrgDirectory struct {
	orgs persistence.OrganizationRepository
}

func NewOrgDirectory(orgs persistence.OrganizationRepository) *OrgDirectory {
	return &OrgDirectory{orgs: orgs}
}

func (d *OrgDirectory) OrgTimezone(ctx context.Context, orgID string) (*time.Location, error) {
	record, err := d.orgs.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return time.LoadLocation(record.Timezone)
}

func toBatchRecord(batch application.Batch) persistence.Batch {
	return persistence.Batch{
		ID:           batch.ID,
		OrgID:        batch.OrgID,
		Title:        batch.Title,
		Slug:         batch.Slug,
		Frequency:    batch.Descriptor.Frequency.String(),
		StartDate:    batch.Descriptor.StartDate,
		EndDate:      optionalString(batch.Descriptor.EndDate),
		Weekdays:     cloneWeekdays(batch.Descriptor.Weekdays),
		CustomDates:  cloneStrings(batch.Descriptor.CustomDates),
		StartTime:    batch.Descriptor.StartTime,
		EndTime:      batch.Descriptor.EndTime,
		SessionType:  string(batch.SessionType),
		LocationSpec: optionalString(batch.LocationSpec),
		RadiusMeters: optionalInt(batch.RadiusMeters),
		VirtualLink:  optionalString(batch.VirtualLink),
		Roster:       toAttendeeRecords(batch.Roster),
		CreatedAt:    batch.CreatedAt,
		UpdatedAt:    batch.UpdatedAt,
	}
}

func toBatch(record persistence.Batch) application.Batch {
	frequency, _ := recurrence.ParseFrequency(record.Frequency)
	return application.Batch{
		ID:    record.ID,
		OrgID: record.OrgID,
		Title: record.Title,
		Slug:  record.Slug,
		Descriptor: recurrence.Descriptor{
			Frequency:   frequency,
			StartDate:   record.StartDate,
			EndDate:     stringValue(record.EndDate),
			Weekdays:    cloneWeekdays(record.Weekdays),
			CustomDates: cloneStrings(record.CustomDates),
			StartTime:   record.StartTime,
			EndTime:     record.EndTime,
		},
		SessionType:  session.Type(record.SessionType),
		LocationSpec: stringValue(record.LocationSpec),
		RadiusMeters: intValue(record.RadiusMeters),
		VirtualLink:  stringValue(record.VirtualLink),
		Roster:       toAttendees(record.Roster),
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}

func toSessionRecord(sess session.Session) persistence.Session {
	return persistence.Session{
		ID:                 sess.ID,
		OrgID:              sess.OrgID,
		BatchID:            optionalString(sess.BatchID),
		Title:              sess.Title,
		StartDate:          sess.StartDate,
		EndDate:            optionalString(sess.EndDate),
		StartTime:          sess.StartTime,
		EndTime:            optionalString(sess.EndTime),
		SessionType:        string(sess.Type),
		LocationSpec:       optionalString(sess.LocationSpec),
		RadiusMeters:       optionalInt(sess.RadiusMeters),
		VirtualLink:        optionalString(sess.VirtualLink),
		Roster:             toAttendeeRecords(sess.Roster),
		ScanCode:           sess.ScanCode,
		Cancelled:          sess.Cancelled,
		CancellationReason: optionalString(sess.CancellationReason),
		Completed:          sess.Completed,
		CreatedAt:          sess.CreatedAt,
		UpdatedAt:          sess.UpdatedAt,
	}
}

func toSession(record persistence.Session) session.Session {
	return session.Session{
		ID:                 record.ID,
		OrgID:              record.OrgID,
		BatchID:            stringValue(record.BatchID),
		Title:              record.Title,
		StartDate:          record.StartDate,
		EndDate:            stringValue(record.EndDate),
		StartTime:          record.StartTime,
		EndTime:            stringValue(record.EndTime),
		Type:               session.Type(record.SessionType),
		LocationSpec:       stringValue(record.LocationSpec),
		RadiusMeters:       intValue(record.RadiusMeters),
		VirtualLink:        stringValue(record.VirtualLink),
		Roster:             toAttendees(record.Roster),
		ScanCode:           record.ScanCode,
		Cancelled:          record.Cancelled,
		CancellationReason: stringValue(record.CancellationReason),
		Completed:          record.Completed,
		CreatedAt:          record.CreatedAt,
		UpdatedAt:          record.UpdatedAt,
	}
}

func toSessionRecords(sessions []session.Session) []persistence.Session {
	if len(sessions) == 0 {
		return nil
	}
	records := make([]persistence.Session, 0, len(sessions))
	for _, sess := range sessions {
		records = append(records, toSessionRecord(sess))
	}
	return records
}

func toSessions(records []persistence.Session) []session.Session {
	if len(records) == 0 {
		return nil
	}
	sessions := make([]session.Session, 0, len(records))
	for _, record := range records {
		sessions = append(sessions, toSession(record))
	}
	return sessions
}

func toAttendeeRecords(roster []session.Attendee) []persistence.Attendee {
	if len(roster) == 0 {
		return nil
	}
	records := make([]persistence.Attendee, 0, len(roster))
	for _, attendee := range roster {
		records = append(records, persistence.Attendee{
			UserID:    attendee.UserID,
			Email:     attendee.Email,
			FirstName: attendee.FirstName,
			LastName:  attendee.LastName,
			Mode:      string(attendee.Mode),
		})
	}
	return records
}

func toAttendees(records []persistence.Attendee) []session.Attendee {
	if len(records) == 0 {
		return nil
	}
	roster := make([]session.Attendee, 0, len(records))
	for _, record := range records {
		roster = append(roster, session.Attendee{
			UserID:    record.UserID,
			Email:     record.Email,
			FirstName: record.FirstName,
			LastName:  record.LastName,
			Mode:      session.Mode(record.Mode),
		})
	}
	return roster
}

// optionalString maps the domain's empty-string optional onto a
// nullable column value.
func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func optionalInt(value int) *int {
	if value == 0 {
		return nil
	}
	return &value
}

func stringValue(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func intValue(ptr *int) int {
	if ptr == nil {
		return 0
	}
	return *ptr
}

func cloneStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return append([]string(nil), values...)
}

func cloneWeekdays(days []time.Weekday) []time.Weekday {
	if len(days) == 0 {
		return nil
	}
	return append([]time.Weekday(nil), days...)
}
