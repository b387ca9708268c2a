// Package session holds the pure scheduling core: the session record
// itself plus the status classifier, calendar indicator aggregation and
// list filtering that every surface derives its rendering from. Nothing
// in this package performs I/O or reads the wall clock; callers pass the
// reference instant in.
package session

import "time"

// DateLayout is the civil date form session and batch rows are stored
// and exchanged in.
const DateLayout = "2006-01-02"

// Type says how a session is delivered.
type Type string

const (
	TypePhysical Type = "PHYSICAL"
	TypeRemote   Type = "REMOTE"
	TypeHybrid   Type = "HYBRID"
)

// ParseType maps a wire value onto a Type.
func ParseType(value string) (Type, bool) {
	switch Type(value) {
	case TypePhysical, TypeRemote, TypeHybrid:
		return Type(value), true
	default:
		return "", false
	}
}

// RequiresLocation reports whether sessions of this type need a
// geofence (location plus radius) for on-site check-in.
func (t Type) RequiresLocation() bool {
	return t == TypePhysical || t == TypeHybrid
}

// RequiresVirtualLink reports whether sessions of this type need a
// meeting link for remote attendance.
func (t Type) RequiresVirtualLink() bool {
	return t == TypeRemote || t == TypeHybrid
}

// Mode is the per-attendee check-in channel. For hybrid sessions both
// modes co-occur; single-mode sessions admit exactly one.
type Mode string

const (
	ModePhysical Mode = "PHYSICAL"
	ModeRemote   Mode = "REMOTE"
)

// ParseMode maps a wire value onto a Mode.
func ParseMode(value string) (Mode, bool) {
	switch Mode(value) {
	case ModePhysical, ModeRemote:
		return Mode(value), true
	default:
		return "", false
	}
}

// SingleMode returns the only attendee mode a non-hybrid session type
// admits. The second result is false for hybrid.
func (t Type) SingleMode() (Mode, bool) {
	switch t {
	case TypePhysical:
		return ModePhysical, true
	case TypeRemote:
		return ModeRemote, true
	default:
		return "", false
	}
}

// Attendee is one roster entry. Mode may be empty on rows written
// before per-attendee modes existed.
type Attendee struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
	Mode      Mode
}

// Session is one concrete dated meeting. Dates are calendar dates in
// YYYY-MM-DD form and times are 24-hour HH:MM values; the strings are
// interpreted in the organization's timezone by the Classifier. EndDate
// is set only for multi-day spans and EndTime may be absent, in which
// case the session runs to the end of its day.
type Session struct {
	ID      string
	OrgID   string
	BatchID string
	Title   string

	StartDate string
	EndDate   string
	StartTime string
	EndTime   string

	Type         Type
	LocationSpec string
	RadiusMeters int
	VirtualLink  string

	Roster   []Attendee
	ScanCode string

	Cancelled          bool
	CancellationReason string
	Completed          bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Edited reports whether the session changed after creation. Calendar
// aggregation renders edited days yellow.
func (s Session) Edited() bool {
	return s.UpdatedAt.After(s.CreatedAt)
}
