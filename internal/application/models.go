package application

import (
	"time"

	"github.com/example/attendance-tracker/internal/recurrence"
	"github.com/example/attendance-tracker/internal/session"
)

// Role names the coarse permission level carried by the gateway identity
// headers. Mutating operations require a managing role; reads and
// check-ins accept any authenticated identity.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleMember   Role = "member"
)

// CanManage reports whether the role may create, edit, or cancel
// batches and sessions.
func (r Role) CanManage() bool {
	return r == RoleAdmin || r == RoleOperator
}

// Principal represents the authenticated identity invoking a service
// method, as asserted by the upstream gateway.
type Principal struct {
	UserID string
	OrgID  string
	Role   Role
}

// User represents an organization member exposed by the services.
type User struct {
	ID        string
	OrgID     string
	Email     string
	FirstName string
	LastName  string
	Role      Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Batch represents a recurrence batch: the parent a recurrence
// descriptor hangs off, expanded into individual sessions. Optional
// fields follow the session package's empty-value convention; the
// persistence adapters translate to nullable columns.
type Batch struct {
	ID           string
	OrgID        string
	Title        string
	Slug         string
	Descriptor   recurrence.Descriptor
	SessionType  session.Type
	LocationSpec string
	RadiusMeters int
	VirtualLink  string
	Roster       []session.Attendee
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CheckIn represents one recorded attendance.
type CheckIn struct {
	ID          string
	OrgID       string
	SessionID   string
	UserID      string
	Mode        session.Mode
	Late        bool
	CheckedInAt time.Time
}

// RosterEntryInput names one attendee in caller-provided roster data.
// Mode is required for HYBRID sessions and otherwise optional; when
// present on a single-mode session it must agree with the session type.
type RosterEntryInput struct {
	UserID string
	Mode   string
}

// BatchInput captures caller provided batch fields.
type BatchInput struct {
	Title        string
	Descriptor   recurrence.Descriptor
	SessionType  string
	LocationSpec string
	RadiusMeters int
	VirtualLink  string
	Roster       []RosterEntryInput
}

// SessionInput captures caller provided fields for a one-off session.
type SessionInput struct {
	Title        string
	StartDate    string
	EndDate      string
	StartTime    string
	EndTime      string
	SessionType  string
	LocationSpec string
	RadiusMeters int
	VirtualLink  string
	Roster       []RosterEntryInput
}

// CreateBatchParams wraps the data required to create a batch.
type CreateBatchParams struct {
	Principal Principal
	Input     BatchInput
}

// UpdateBatchParams wraps the data required to update a batch.
type UpdateBatchParams struct {
	Principal Principal
	BatchID   string
	Patch     BatchPatch
}

// BatchPatch carries tri-state updates for batch fields. Unset fields
// keep their stored value; cleared fields drop it.
type BatchPatch struct {
	Title        Patch[string]
	Frequency    Patch[string]
	StartDate    Patch[string]
	EndDate      Patch[string]
	Weekdays     Patch[[]time.Weekday]
	CustomDates  Patch[[]string]
	StartTime    Patch[string]
	EndTime      Patch[string]
	SessionType  Patch[string]
	LocationSpec Patch[string]
	RadiusMeters Patch[int]
	VirtualLink  Patch[string]
	Roster       Patch[[]RosterEntryInput]
}

// CreateSessionParams wraps the data required to create a one-off
// session outside any batch.
type CreateSessionParams struct {
	Principal Principal
	Input     SessionInput
}

// UpdateSessionParams wraps the data required to patch a session.
type UpdateSessionParams struct {
	Principal Principal
	SessionID string
	Patch     SessionPatch
}

// SessionPatch carries tri-state updates for session fields.
type SessionPatch struct {
	Title        Patch[string]
	StartDate    Patch[string]
	EndDate      Patch[string]
	StartTime    Patch[string]
	EndTime      Patch[string]
	SessionType  Patch[string]
	LocationSpec Patch[string]
	RadiusMeters Patch[int]
	VirtualLink  Patch[string]
	Roster       Patch[[]RosterEntryInput]
}

// ListSessionsParams narrows a session listing.
type ListSessionsParams struct {
	Principal Principal
	BatchID   string
	Date      string
	// Mine restricts the listing to sessions whose roster carries the
	// principal.
	Mine bool
}

// VisibleSessionsParams feeds the display filter planner.
type VisibleSessionsParams struct {
	Principal    Principal
	SelectedDate string
	ShowPast     bool
	Mine         bool
}

// DayIndicatorsParams requests calendar dots for one month.
type DayIndicatorsParams struct {
	Principal Principal
	Year      int
	Month     time.Month
	Mine      bool
}

// Position is a reported geolocation attached to a physical check-in.
type Position struct {
	Latitude  float64
	Longitude float64
}

// CheckInParams wraps one scan attempt. The principal is the scanning
// user.
type CheckInParams struct {
	Principal Principal
	SessionID string
	ScanCode  string
	Position  *Position
}
