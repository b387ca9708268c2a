package persistence

import (
	"context"
	"time"
)

// OrganizationRepository stores tenant organizations.
type OrganizationRepository interface {
	CreateOrganization(ctx context.Context, org Organization) error
	GetOrganization(ctx context.Context, id string) (Organization, error)
	ListOrganizations(ctx context.Context) ([]Organization, error)
}

// UserRepository stores organization members.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, orgID, id string) (User, error)
	ListUsers(ctx context.Context, orgID string) ([]User, error)
	// MissingUserIDs reports which of the given IDs do not exist in the
	// organization, preserving input order.
	MissingUserIDs(ctx context.Context, orgID string, ids []string) ([]string, error)
}

// BatchRepository stores recurrence batches together with the sessions
// they expand into.
type BatchRepository interface {
	// CreateBatch writes the batch and its expanded sessions in one
	// transaction; either everything lands or nothing does.
	CreateBatch(ctx context.Context, batch Batch, sessions []Session) error
	// UpdateBatch rewrites the batch row, removes the named sessions,
	// and upserts the given sessions, all in one transaction. Callers
	// decide which sessions a batch edit touches.
	UpdateBatch(ctx context.Context, batch Batch, removeSessionIDs []string, upsertSessions []Session) error
	GetBatch(ctx context.Context, orgID, id string) (Batch, error)
	GetBatchBySlug(ctx context.Context, orgID, slug string) (Batch, error)
	ListBatches(ctx context.Context, orgID string) ([]Batch, error)
	SlugExists(ctx context.Context, orgID, slug string) (bool, error)
}

// SessionFilter narrows session queries. Zero-valued fields do not
// filter.
type SessionFilter struct {
	OrgID   string
	BatchID string
	Date    string
	UserID  string
}

// SessionRepository stores individual session occurrences.
type SessionRepository interface {
	CreateSession(ctx context.Context, s Session) error
	UpdateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, orgID, id string) (Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]Session, error)
	DeleteSession(ctx context.Context, orgID, id string) error
	// ListOpenSessions returns sessions across all organizations that
	// are neither cancelled nor completed, for the completion sweep.
	ListOpenSessions(ctx context.Context) ([]Session, error)
	MarkCompleted(ctx context.Context, ids []string, completedAt time.Time) error
}

// CheckInRepository stores attendance records.
type CheckInRepository interface {
	// CreateCheckIn fails with ErrDuplicate when the user has already
	// checked in to the session.
	CreateCheckIn(ctx context.Context, checkIn CheckIn) error
	ListCheckIns(ctx context.Context, orgID, sessionID string) ([]CheckIn, error)
}
