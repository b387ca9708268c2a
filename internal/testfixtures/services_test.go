package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/attendance-tracker/internal/application"
	"github.com/example/attendance-tracker/internal/session"
)

type capturingSessionStore struct {
	created session.Session
}

func (c *capturingSessionStore) CreateSession(ctx context.Context, sess session.Session) error {
	c.created = sess
	return nil
}

func (c *capturingSessionStore) UpdateSession(ctx context.Context, sess session.Session) error {
	return nil
}

func (c *capturingSessionStore) GetSession(ctx context.Context, orgID, id string) (session.Session, error) {
	return session.Session{}, application.ErrNotFound
}

func (c *capturingSessionStore) ListSessions(ctx context.Context, query application.SessionQuery) ([]session.Session, error) {
	return nil, nil
}

func (c *capturingSessionStore) ListOpenSessions(ctx context.Context) ([]session.Session, error) {
	return nil, nil
}

func (c *capturingSessionStore) MarkCompleted(ctx context.Context, ids []string, completedAt time.Time) error {
	return nil
}

func TestServiceFactoryNewSessionService(t *testing.T) {
	factory := NewServiceFactory()
	store := &capturingSessionStore{}

	svc := factory.NewSessionService(application.SessionServiceDeps{Sessions: store})
	operator := NewUserFixture(WithUserRole(application.RoleOperator))

	created, err := svc.CreateSession(context.Background(), application.CreateSessionParams{
		Principal: operator.Principal(),
		Input:     NewSessionFixture().Input(),
	})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}

	if created.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", created.ID)
	}
	if created.ScanCode != "scan-1" {
		t.Fatalf("expected generated scan code scan-1, got %q", created.ScanCode)
	}
	if store.created.ID != created.ID {
		t.Fatalf("store received unexpected ID: %q", store.created.ID)
	}
	if !created.CreatedAt.Equal(factory.Clock.Now()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Now(), created.CreatedAt)
	}
}
