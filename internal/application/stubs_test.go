package application

import (
	"context"
	"fmt"
	"time"

	"github.com/example/attendance-tracker/internal/persistence"
	"github.com/example/attendance-tracker/internal/session"
)

// The service tests share one set of hand-rolled stubs. They return
// persistence sentinels, the same way the real adapters do, so the
// per-service error mapping is exercised.

type batchStoreStub struct {
	batch           Batch
	list            []Batch
	takenSlugs      map[string]bool
	created         Batch
	createdSessions []session.Session
	updated         Batch
	removedIDs      []string
	upserts         []session.Session
	err             error
}

func (s *batchStoreStub) CreateBatch(ctx context.Context, batch Batch, sessions []session.Session) error {
	if s.err != nil {
		return s.err
	}
	s.created = batch
	s.createdSessions = sessions
	return nil
}

func (s *batchStoreStub) UpdateBatch(ctx context.Context, batch Batch, removeSessionIDs []string, upsertSessions []session.Session) error {
	if s.err != nil {
		return s.err
	}
	s.updated = batch
	s.removedIDs = removeSessionIDs
	s.upserts = upsertSessions
	return nil
}

func (s *batchStoreStub) GetBatch(ctx context.Context, orgID, id string) (Batch, error) {
	if s.err != nil {
		return Batch{}, s.err
	}
	if s.batch.ID == "" || s.batch.ID != id || s.batch.OrgID != orgID {
		return Batch{}, persistence.ErrNotFound
	}
	return s.batch, nil
}

func (s *batchStoreStub) GetBatchBySlug(ctx context.Context, orgID, slugValue string) (Batch, error) {
	if s.err != nil {
		return Batch{}, s.err
	}
	if s.batch.Slug != slugValue || s.batch.OrgID != orgID {
		return Batch{}, persistence.ErrNotFound
	}
	return s.batch, nil
}

func (s *batchStoreStub) ListBatches(ctx context.Context, orgID string) ([]Batch, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]Batch, len(s.list))
	copy(out, s.list)
	return out, nil
}

func (s *batchStoreStub) SlugExists(ctx context.Context, orgID, slugValue string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.takenSlugs[slugValue], nil
}

type sessionStoreStub struct {
	sessions     []session.Session
	created      session.Session
	updated      session.Session
	completedIDs []string
	completedAt  time.Time
	listCalls    int
	err          error
}

func (s *sessionStoreStub) CreateSession(ctx context.Context, sess session.Session) error {
	if s.err != nil {
		return s.err
	}
	s.created = sess
	return nil
}

func (s *sessionStoreStub) UpdateSession(ctx context.Context, sess session.Session) error {
	if s.err != nil {
		return s.err
	}
	s.updated = sess
	return nil
}

func (s *sessionStoreStub) GetSession(ctx context.Context, orgID, id string) (session.Session, error) {
	if s.err != nil {
		return session.Session{}, s.err
	}
	for _, sess := range s.sessions {
		if sess.ID == id && sess.OrgID == orgID {
			return sess, nil
		}
	}
	return session.Session{}, persistence.ErrNotFound
}

func (s *sessionStoreStub) ListSessions(ctx context.Context, query SessionQuery) ([]session.Session, error) {
	s.listCalls++
	if s.err != nil {
		return nil, s.err
	}
	var out []session.Session
	for _, sess := range s.sessions {
		if query.OrgID != "" && sess.OrgID != query.OrgID {
			continue
		}
		if query.BatchID != "" && sess.BatchID != query.BatchID {
			continue
		}
		if query.Date != "" && sess.StartDate != query.Date {
			continue
		}
		if query.UserID != "" && !rosterContains(sess.Roster, query.UserID) {
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *sessionStoreStub) ListOpenSessions(ctx context.Context) ([]session.Session, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []session.Session
	for _, sess := range s.sessions {
		if sess.Cancelled || sess.Completed {
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

func (s *sessionStoreStub) MarkCompleted(ctx context.Context, ids []string, completedAt time.Time) error {
	if s.err != nil {
		return s.err
	}
	s.completedIDs = ids
	s.completedAt = completedAt
	return nil
}

func rosterContains(entries []session.Attendee, userID string) bool {
	for _, entry := range entries {
		if entry.UserID == userID {
			return true
		}
	}
	return false
}

type userDirectoryStub struct {
	users   []User
	missing []string
	err     error
}

func (u *userDirectoryStub) MissingUserIDs(ctx context.Context, orgID string, ids []string) ([]string, error) {
	if u.err != nil {
		return nil, u.err
	}
	return u.missing, nil
}

func (u *userDirectoryStub) UsersByID(ctx context.Context, orgID string, ids []string) ([]User, error) {
	if u.err != nil {
		return nil, u.err
	}
	out := make([]User, len(u.users))
	copy(out, u.users)
	return out, nil
}

type orgDirectoryStub struct {
	location *time.Location
	err      error
}

func (o *orgDirectoryStub) OrgTimezone(ctx context.Context, orgID string) (*time.Location, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.location, nil
}

type checkInStoreStub struct {
	created   CheckIn
	list      []CheckIn
	duplicate bool
	err       error
}

func (c *checkInStoreStub) CreateCheckIn(ctx context.Context, checkIn CheckIn) error {
	if c.err != nil {
		return c.err
	}
	if c.duplicate {
		return persistence.ErrDuplicate
	}
	c.created = checkIn
	return nil
}

func (c *checkInStoreStub) ListCheckIns(ctx context.Context, orgID, sessionID string) ([]CheckIn, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := make([]CheckIn, len(c.list))
	copy(out, c.list)
	return out, nil
}

type geofenceStub struct {
	inside bool
	calls  int
	err    error
}

func (g *geofenceStub) Inside(ctx context.Context, locationSpec string, radiusMeters int, position Position) (bool, error) {
	g.calls++
	if g.err != nil {
		return false, g.err
	}
	return g.inside, nil
}

// sequence returns a generator yielding prefix-1, prefix-2, and so on.
func sequence(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
