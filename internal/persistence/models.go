package persistence

import "time"

// Organization represents one tenant. Every batch, session, and user
// hangs off an organization, and its timezone governs how session dates
// are read.
type Organization struct {
	ID        string
	Name      string
	Timezone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// User represents an organization member.
type User struct {
	ID        string
	OrgID     string
	Email     string
	FirstName string
	LastName  string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Attendee is one serialized roster entry. The JSON tags define the
// shape stored in the roster column; Mode is omitted on legacy entries.
type Attendee struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Mode      string `json:"mode,omitempty"`
}

// Batch represents a recurrence-defining parent of sessions.
type Batch struct {
	ID           string
	OrgID        string
	Title        string
	Slug         string
	Frequency    string
	StartDate    string
	EndDate      *string
	Weekdays     []time.Weekday
	CustomDates  []string
	StartTime    string
	EndTime      string
	SessionType  string
	LocationSpec *string
	RadiusMeters *int
	VirtualLink  *string
	Roster       []Attendee
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session represents one dated meeting occurrence. BatchID is nil for
// one-off sessions created outside any batch.
type Session struct {
	ID                 string
	OrgID              string
	BatchID            *string
	Title              string
	StartDate          string
	EndDate            *string
	StartTime          string
	EndTime            *string
	SessionType        string
	LocationSpec       *string
	RadiusMeters       *int
	VirtualLink        *string
	Roster             []Attendee
	ScanCode           string
	Cancelled          bool
	CancellationReason *string
	Completed          bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// CheckIn represents one attendance record. A user checks in to a
// session at most once.
type CheckIn struct {
	ID          string
	OrgID       string
	SessionID   string
	UserID      string
	Mode        string
	Late        bool
	CheckedInAt time.Time
}
