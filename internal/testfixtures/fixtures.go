package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/attendance-tracker/internal/application"
	"github.com/example/attendance-tracker/internal/persistence"
	"github.com/example/attendance-tracker/internal/recurrence"
	"github.com/example/attendance-tracker/internal/session"
)

var (
	orgCounter     uint64
	userCounter    uint64
	batchCounter   uint64
	sessionCounter uint64
	checkInCounter uint64
)

// referenceTime is a Monday morning; the default fixtures all live in
// the week it starts.
var referenceTime = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ReferenceDate returns the civil date of ReferenceTime in UTC.
func ReferenceDate() string {
	return referenceTime.Format(session.DateLayout)
}

// ------------------------- Organization fixtures -------------------------

// OrgFixture represents a deterministic organization record.
type OrgFixture struct {
	ID        string
	Name      string
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrgOption configures the generated organization fixture.
type OrgOption func(*OrgFixture)

// NewOrgFixture returns a deterministic organization fixture with optional
// overrides.
func NewOrgFixture(opts ...OrgOption) OrgFixture {
	idx := atomic.AddUint64(&orgCounter, 1)
	id := fmt.Sprintf("org-%03d", idx)
	fixture := OrgFixture{
		ID:        id,
		Name:      fmt.Sprintf("Organization %03d", idx),
		Timezone:  "UTC",
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithOrgID overrides the generated organization ID.
func WithOrgID(id string) OrgOption {
	return func(f *OrgFixture) {
		f.ID = id
	}
}

// WithOrgName overrides the generated organization name.
func WithOrgName(name string) OrgOption {
	return func(f *OrgFixture) {
		f.Name = name
	}
}

// WithOrgTimezone sets the IANA timezone name on the fixture.
func WithOrgTimezone(tz string) OrgOption {
	return func(f *OrgFixture) {
		f.Timezone = tz
	}
}

// WithOrgTimestamps sets both created and updated timestamps.
func WithOrgTimestamps(created, updated time.Time) OrgOption {
	return func(f *OrgFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Persistence returns the fixture as a persistence.Organization value.
func (f OrgFixture) Persistence() persistence.Organization {
	return persistence.Organization{
		ID:        f.ID,
		Name:      f.Name,
		Timezone:  f.Timezone,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record that can be
// materialised for application or persistence tests.
type UserFixture struct {
	ID        string
	OrgID     string
	Email     string
	FirstName string
	LastName  string
	Role      application.Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:        id,
		OrgID:     "org-001",
		Email:     fmt.Sprintf("%s@example.com", id),
		FirstName: "User",
		LastName:  fmt.Sprintf("%03d", idx),
		Role:      application.RoleMember,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserOrg sets the owning organization ID.
func WithUserOrg(orgID string) UserOption {
	return func(f *UserFixture) {
		f.OrgID = orgID
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserName sets the first and last names.
func WithUserName(first, last string) UserOption {
	return func(f *UserFixture) {
		f.FirstName = first
		f.LastName = last
	}
}

// WithUserRole sets the role on the generated fixture.
func WithUserRole(role application.Role) UserOption {
	return func(f *UserFixture) {
		f.Role = role
	}
}

// WithUserTimestamps sets both created and updated timestamps.
func WithUserTimestamps(created, updated time.Time) UserOption {
	return func(f *UserFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:        f.ID,
		OrgID:     f.OrgID,
		Email:     f.Email,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Role:      f.Role,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:        f.ID,
		OrgID:     f.OrgID,
		Email:     f.Email,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Role:      string(f.Role),
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Principal returns an application.Principal derived from the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID, OrgID: f.OrgID, Role: f.Role}
}

// Attendee returns the fixture as a roster attendee with the given mode.
func (f UserFixture) Attendee(mode session.Mode) session.Attendee {
	return session.Attendee{
		UserID:    f.ID,
		Email:     f.Email,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Mode:      mode,
	}
}

// RosterEntry returns the fixture as caller-provided roster input.
func (f UserFixture) RosterEntry(mode string) application.RosterEntryInput {
	return application.RosterEntryInput{UserID: f.ID, Mode: mode}
}

// ----------------------------- Batch fixtures ----------------------------

// BatchFixture represents a deterministic recurrence batch. The default
// is a weekly Monday batch spanning five occurrences from the reference
// week.
type BatchFixture struct {
	ID           string
	OrgID        string
	Title        string
	Slug         string
	Frequency    recurrence.Frequency
	StartDate    string
	EndDate      string
	Weekdays     []time.Weekday
	CustomDates  []string
	StartTime    string
	EndTime      string
	SessionType  session.Type
	LocationSpec string
	RadiusMeters int
	VirtualLink  string
	Roster       []session.Attendee
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BatchOption configures the generated batch fixture.
type BatchOption func(*BatchFixture)

// NewBatchFixture returns a deterministic batch fixture with optional
// overrides.
func NewBatchFixture(opts ...BatchOption) BatchFixture {
	idx := atomic.AddUint64(&batchCounter, 1)
	id := fmt.Sprintf("batch-%03d", idx)
	fixture := BatchFixture{
		ID:          id,
		OrgID:       "org-001",
		Title:       fmt.Sprintf("Batch %03d", idx),
		Slug:        id,
		Frequency:   recurrence.FrequencyWeekly,
		StartDate:   "2026-03-02",
		EndDate:     "2026-03-30",
		Weekdays:    []time.Weekday{time.Monday},
		StartTime:   "09:00",
		EndTime:     "10:00",
		SessionType: session.TypeRemote,
		VirtualLink: fmt.Sprintf("https://example.com/%s", id),
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBatchID overrides the generated batch ID.
func WithBatchID(id string) BatchOption {
	return func(f *BatchFixture) {
		f.ID = id
	}
}

// WithBatchOrg sets the owning organization ID.
func WithBatchOrg(orgID string) BatchOption {
	return func(f *BatchFixture) {
		f.OrgID = orgID
	}
}

// WithBatchTitle overrides the title.
func WithBatchTitle(title string) BatchOption {
	return func(f *BatchFixture) {
		f.Title = title
	}
}

// WithBatchSlug overrides the slug.
func WithBatchSlug(slug string) BatchOption {
	return func(f *BatchFixture) {
		f.Slug = slug
	}
}

// WithBatchFrequency sets the recurrence frequency.
func WithBatchFrequency(frequency recurrence.Frequency) BatchOption {
	return func(f *BatchFixture) {
		f.Frequency = frequency
	}
}

// WithBatchDates sets the start date and optional end date. Pass an
// empty end for an open-ended batch.
func WithBatchDates(start, end string) BatchOption {
	return func(f *BatchFixture) {
		f.StartDate = start
		f.EndDate = end
	}
}

// WithBatchWeekdays sets the weekly recurrence days.
func WithBatchWeekdays(days ...time.Weekday) BatchOption {
	return func(f *BatchFixture) {
		f.Weekdays = append([]time.Weekday(nil), days...)
	}
}

// WithBatchCustomDates sets the explicit dates of a RANDOM batch.
func WithBatchCustomDates(dates ...string) BatchOption {
	return func(f *BatchFixture) {
		f.CustomDates = append([]string(nil), dates...)
	}
}

// WithBatchTimes sets the daily start and end times.
func WithBatchTimes(start, end string) BatchOption {
	return func(f *BatchFixture) {
		f.StartTime = start
		f.EndTime = end
	}
}

// WithBatchSessionType sets the attendance type.
func WithBatchSessionType(t session.Type) BatchOption {
	return func(f *BatchFixture) {
		f.SessionType = t
	}
}

// WithBatchGeofence sets the location spec and check-in radius.
func WithBatchGeofence(spec string, radiusMeters int) BatchOption {
	return func(f *BatchFixture) {
		f.LocationSpec = spec
		f.RadiusMeters = radiusMeters
	}
}

// WithBatchVirtualLink sets the virtual meeting link.
func WithBatchVirtualLink(link string) BatchOption {
	return func(f *BatchFixture) {
		f.VirtualLink = link
	}
}

// WithBatchRoster sets the expected attendees.
func WithBatchRoster(roster ...session.Attendee) BatchOption {
	return func(f *BatchFixture) {
		f.Roster = append([]session.Attendee(nil), roster...)
	}
}

// WithBatchTimestamps sets both created and updated timestamps.
func WithBatchTimestamps(created, updated time.Time) BatchOption {
	return func(f *BatchFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Descriptor returns the fixture's recurrence descriptor.
func (f BatchFixture) Descriptor() recurrence.Descriptor {
	return recurrence.Descriptor{
		Frequency:   f.Frequency,
		StartDate:   f.StartDate,
		EndDate:     f.EndDate,
		Weekdays:    append([]time.Weekday(nil), f.Weekdays...),
		CustomDates: append([]string(nil), f.CustomDates...),
		StartTime:   f.StartTime,
		EndTime:     f.EndTime,
	}
}

// Application returns the fixture as an application.Batch value.
func (f BatchFixture) Application() application.Batch {
	return application.Batch{
		ID:           f.ID,
		OrgID:        f.OrgID,
		Title:        f.Title,
		Slug:         f.Slug,
		Descriptor:   f.Descriptor(),
		SessionType:  f.SessionType,
		LocationSpec: f.LocationSpec,
		RadiusMeters: f.RadiusMeters,
		VirtualLink:  f.VirtualLink,
		Roster:       append([]session.Attendee(nil), f.Roster...),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Batch value.
func (f BatchFixture) Persistence() persistence.Batch {
	return persistence.Batch{
		ID:           f.ID,
		OrgID:        f.OrgID,
		Title:        f.Title,
		Slug:         f.Slug,
		Frequency:    f.Frequency.String(),
		StartDate:    f.StartDate,
		EndDate:      optionalString(f.EndDate),
		Weekdays:     append([]time.Weekday(nil), f.Weekdays...),
		CustomDates:  append([]string(nil), f.CustomDates...),
		StartTime:    f.StartTime,
		EndTime:      f.EndTime,
		SessionType:  string(f.SessionType),
		LocationSpec: optionalString(f.LocationSpec),
		RadiusMeters: optionalInt(f.RadiusMeters),
		VirtualLink:  optionalString(f.VirtualLink),
		Roster:       attendeeRecords(f.Roster),
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// Input returns the fixture as an application.BatchInput.
func (f BatchFixture) Input() application.BatchInput {
	return application.BatchInput{
		Title:        f.Title,
		Descriptor:   f.Descriptor(),
		SessionType:  string(f.SessionType),
		LocationSpec: f.LocationSpec,
		RadiusMeters: f.RadiusMeters,
		VirtualLink:  f.VirtualLink,
		Roster:       rosterInputs(f.Roster),
	}
}

// ---------------------------- Session fixtures ---------------------------

// SessionFixture represents a deterministic session record. The default
// is a one-off remote session on the reference Monday.
type SessionFixture struct {
	ID                 string
	OrgID              string
	BatchID            string
	Title              string
	StartDate          string
	EndDate            string
	StartTime          string
	EndTime            string
	Type               session.Type
	LocationSpec       string
	RadiusMeters       int
	VirtualLink        string
	Roster             []session.Attendee
	ScanCode           string
	Cancelled          bool
	CancellationReason string
	Completed          bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns a deterministic session fixture with
// optional overrides.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	id := fmt.Sprintf("session-%03d", idx)
	fixture := SessionFixture{
		ID:          id,
		OrgID:       "org-001",
		Title:       fmt.Sprintf("Session %03d", idx),
		StartDate:   "2026-03-02",
		StartTime:   "09:00",
		EndTime:     "10:00",
		Type:        session.TypeRemote,
		VirtualLink: fmt.Sprintf("https://example.com/%s", id),
		ScanCode:    fmt.Sprintf("scan-%03d", idx),
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionOrg sets the owning organization ID.
func WithSessionOrg(orgID string) SessionOption {
	return func(f *SessionFixture) {
		f.OrgID = orgID
	}
}

// WithSessionBatch marks the session as expanded from a batch.
func WithSessionBatch(batchID string) SessionOption {
	return func(f *SessionFixture) {
		f.BatchID = batchID
	}
}

// WithSessionTitle overrides the title.
func WithSessionTitle(title string) SessionOption {
	return func(f *SessionFixture) {
		f.Title = title
	}
}

// WithSessionDates sets the start date and optional end date.
func WithSessionDates(start, end string) SessionOption {
	return func(f *SessionFixture) {
		f.StartDate = start
		f.EndDate = end
	}
}

// WithSessionTimes sets the start time and optional end time. Pass an
// empty end for an open-ended session.
func WithSessionTimes(start, end string) SessionOption {
	return func(f *SessionFixture) {
		f.StartTime = start
		f.EndTime = end
	}
}

// WithSessionType sets the attendance type.
func WithSessionType(t session.Type) SessionOption {
	return func(f *SessionFixture) {
		f.Type = t
	}
}

// WithSessionGeofence sets the location spec and check-in radius.
func WithSessionGeofence(spec string, radiusMeters int) SessionOption {
	return func(f *SessionFixture) {
		f.LocationSpec = spec
		f.RadiusMeters = radiusMeters
	}
}

// WithSessionVirtualLink sets the virtual meeting link.
func WithSessionVirtualLink(link string) SessionOption {
	return func(f *SessionFixture) {
		f.VirtualLink = link
	}
}

// WithSessionRoster sets the expected attendees.
func WithSessionRoster(roster ...session.Attendee) SessionOption {
	return func(f *SessionFixture) {
		f.Roster = append([]session.Attendee(nil), roster...)
	}
}

// WithSessionScanCode overrides the generated scan code.
func WithSessionScanCode(code string) SessionOption {
	return func(f *SessionFixture) {
		f.ScanCode = code
	}
}

// WithSessionCancelled marks the session cancelled with a reason.
func WithSessionCancelled(reason string) SessionOption {
	return func(f *SessionFixture) {
		f.Cancelled = true
		f.CancellationReason = reason
	}
}

// WithSessionCompleted marks the session swept into the completed state.
func WithSessionCompleted() SessionOption {
	return func(f *SessionFixture) {
		f.Completed = true
	}
}

// WithSessionTimestamps sets both created and updated timestamps.
func WithSessionTimestamps(created, updated time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.CreatedAt = created
		f.UpdatedAt = updated
	}
}

// Domain returns the fixture as a session.Session value.
func (f SessionFixture) Domain() session.Session {
	return session.Session{
		ID:                 f.ID,
		OrgID:              f.OrgID,
		BatchID:            f.BatchID,
		Title:              f.Title,
		StartDate:          f.StartDate,
		EndDate:            f.EndDate,
		StartTime:          f.StartTime,
		EndTime:            f.EndTime,
		Type:               f.Type,
		LocationSpec:       f.LocationSpec,
		RadiusMeters:       f.RadiusMeters,
		VirtualLink:        f.VirtualLink,
		Roster:             append([]session.Attendee(nil), f.Roster...),
		ScanCode:           f.ScanCode,
		Cancelled:          f.Cancelled,
		CancellationReason: f.CancellationReason,
		Completed:          f.Completed,
		CreatedAt:          f.CreatedAt,
		UpdatedAt:          f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Session value.
func (f SessionFixture) Persistence() persistence.Session {
	return persistence.Session{
		ID:                 f.ID,
		OrgID:              f.OrgID,
		BatchID:            optionalString(f.BatchID),
		Title:              f.Title,
		StartDate:          f.StartDate,
		EndDate:            optionalString(f.EndDate),
		StartTime:          f.StartTime,
		EndTime:            optionalString(f.EndTime),
		SessionType:        string(f.Type),
		LocationSpec:       optionalString(f.LocationSpec),
		RadiusMeters:       optionalInt(f.RadiusMeters),
		VirtualLink:        optionalString(f.VirtualLink),
		Roster:             attendeeRecords(f.Roster),
		ScanCode:           f.ScanCode,
		Cancelled:          f.Cancelled,
		CancellationReason: optionalString(f.CancellationReason),
		Completed:          f.Completed,
		CreatedAt:          f.CreatedAt,
		UpdatedAt:          f.UpdatedAt,
	}
}

// Input returns the fixture as an application.SessionInput.
func (f SessionFixture) Input() application.SessionInput {
	return application.SessionInput{
		Title:        f.Title,
		StartDate:    f.StartDate,
		EndDate:      f.EndDate,
		StartTime:    f.StartTime,
		EndTime:      f.EndTime,
		SessionType:  string(f.Type),
		LocationSpec: f.LocationSpec,
		RadiusMeters: f.RadiusMeters,
		VirtualLink:  f.VirtualLink,
		Roster:       rosterInputs(f.Roster),
	}
}

// ---------------------------- Check-in fixtures --------------------------

// CheckInFixture represents a deterministic attendance record.
type CheckInFixture struct {
	ID          string
	OrgID       string
	SessionID   string
	UserID      string
	Mode        session.Mode
	Late        bool
	CheckedInAt time.Time
}

// CheckInOption configures the generated check-in fixture.
type CheckInOption func(*CheckInFixture)

// NewCheckInFixture returns a deterministic check-in fixture with
// optional overrides.
func NewCheckInFixture(opts ...CheckInOption) CheckInFixture {
	idx := atomic.AddUint64(&checkInCounter, 1)
	fixture := CheckInFixture{
		ID:          fmt.Sprintf("checkin-%03d", idx),
		OrgID:       "org-001",
		SessionID:   fmt.Sprintf("session-%03d", idx),
		UserID:      fmt.Sprintf("user-%03d", idx),
		Mode:        session.ModeRemote,
		CheckedInAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithCheckInID overrides the generated check-in ID.
func WithCheckInID(id string) CheckInOption {
	return func(f *CheckInFixture) {
		f.ID = id
	}
}

// WithCheckInOrg sets the owning organization ID.
func WithCheckInOrg(orgID string) CheckInOption {
	return func(f *CheckInFixture) {
		f.OrgID = orgID
	}
}

// WithCheckInSession sets the scanned session ID.
func WithCheckInSession(sessionID string) CheckInOption {
	return func(f *CheckInFixture) {
		f.SessionID = sessionID
	}
}

// WithCheckInUser sets the scanning user ID.
func WithCheckInUser(userID string) CheckInOption {
	return func(f *CheckInFixture) {
		f.UserID = userID
	}
}

// WithCheckInMode sets the recorded attendance mode.
func WithCheckInMode(mode session.Mode) CheckInOption {
	return func(f *CheckInFixture) {
		f.Mode = mode
	}
}

// WithCheckInLate marks the check-in as past the grace window.
func WithCheckInLate() CheckInOption {
	return func(f *CheckInFixture) {
		f.Late = true
	}
}

// WithCheckInAt sets the recorded instant.
func WithCheckInAt(t time.Time) CheckInOption {
	return func(f *CheckInFixture) {
		f.CheckedInAt = t
	}
}

// Application returns the fixture as an application.CheckIn value.
func (f CheckInFixture) Application() application.CheckIn {
	return application.CheckIn{
		ID:          f.ID,
		OrgID:       f.OrgID,
		SessionID:   f.SessionID,
		UserID:      f.UserID,
		Mode:        f.Mode,
		Late:        f.Late,
		CheckedInAt: f.CheckedInAt,
	}
}

// Persistence returns the fixture as a persistence.CheckIn value.
func (f CheckInFixture) Persistence() persistence.CheckIn {
	return persistence.CheckIn{
		ID:          f.ID,
		OrgID:       f.OrgID,
		SessionID:   f.SessionID,
		UserID:      f.UserID,
		Mode:        string(f.Mode),
		Late:        f.Late,
		CheckedInAt: f.CheckedInAt,
	}
}

// ------------------------------- helpers ---------------------------------

func rosterInputs(roster []session.Attendee) []application.RosterEntryInput {
	if len(roster) == 0 {
		return nil
	}
	entries := make([]application.RosterEntryInput, 0, len(roster))
	for _, attendee := range roster {
		entries = append(entries, application.RosterEntryInput{
			UserID: attendee.UserID,
			Mode:   string(attendee.Mode),
		})
	}
	return entries
}

func attendeeRecords(roster []session.Attendee) []persistence.Attendee {
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
