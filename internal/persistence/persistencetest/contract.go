// Package persistencetest runs one behavioral contract against every
// repository implementation. The memory and sqlite stores both have to
// pass it, so application code can treat them interchangeably.
package persistencetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/attendance-tracker/internal/persistence"
)

// Store bundles every repository the engine persists through. Both
// backing implementations satisfy the whole set with one type.
type Store interface {
	persistence.OrganizationRepository
	persistence.UserRepository
	persistence.BatchRepository
	persistence.SessionRepository
	persistence.CheckInRepository
}

// CleanupFunc releases whatever the factory allocated.
type CleanupFunc = func()

// Factory builds a fresh, empty store for one subtest.
type Factory func(t *testing.T) (Store, CleanupFunc)

var referenceTime = time.Date(2025, time.January, 2, 15, 4, 5, 0, time.UTC)

func newStore(t *testing.T, factory Factory) Store {
	t.Helper()

	store, cleanup := factory(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}
	return store
}

func orgRecord(id string) persistence.Organization {
	return persistence.Organization{
		ID:        id,
		Name:      "Org " + id,
		Timezone:  "UTC",
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
}

func userRecord(orgID, id string) persistence.User {
	return persistence.User{
		ID:        id,
		OrgID:     orgID,
		Email:     id + "@example.com",
		FirstName: "User",
		LastName:  id,
		Role:      "member",
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
}

func batchRecord(orgID, id, slug string) persistence.Batch {
	endDate := "2025-01-26"
	return persistence.Batch{
		ID:          id,
		OrgID:       orgID,
		Title:       "Batch " + id,
		Slug:        slug,
		Frequency:   "WEEKLY",
		StartDate:   "2025-01-06",
		EndDate:     &endDate,
		Weekdays:    []time.Weekday{time.Monday, time.Wednesday},
		StartTime:   "09:00",
		EndTime:     "10:00",
		SessionType: "REMOTE",
		VirtualLink: stringPtr("https://meet.example.com/" + id),
		Roster:      []persistence.Attendee{{UserID: "user-1", Email: "user-1@example.com", Mode: "REMOTE"}},
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
}

func sessionRecord(orgID, id, date, startTime string) persistence.Session {
	endTime := "10:00"
	return persistence.Session{
		ID:          id,
		OrgID:       orgID,
		Title:       "Session " + id,
		StartDate:   date,
		StartTime:   startTime,
		EndTime:     &endTime,
		SessionType: "REMOTE",
		VirtualLink: stringPtr("https://meet.example.com/" + id),
		Roster:      []persistence.Attendee{{UserID: "user-1", Email: "user-1@example.com", Mode: "REMOTE"}},
		ScanCode:    "code-" + id,
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
}

func stringPtr(value string) *string {
	return &value
}

// Run exercises the full repository contract against the factory's
// store implementation.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("organizations", func(t *testing.T) { runOrganizations(t, factory) })
	t.Run("users", func(t *testing.T) { runUsers(t, factory) })
	t.Run("batches", func(t *testing.T) { runBatches(t, factory) })
	t.Run("sessions", func(t *testing.T) { runSessions(t, factory) })
	t.Run("check-ins", func(t *testing.T) { runCheckIns(t, factory) })
}

func runOrganizations(t *testing.T, factory Factory) {
	ctx := context.Background()
	store := newStore(t, factory)

	if err := store.CreateOrganization(ctx, orgRecord("org-2")); err != nil {
		t.Fatalf("CreateOrganization failed: %v", err)
	}
	if err := store.CreateOrganization(ctx, orgRecord("org-1")); err != nil {
		t.Fatalf("CreateOrganization failed: %v", err)
	}

	if err := store.CreateOrganization(ctx, orgRecord("org-1")); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	org, err := store.GetOrganization(ctx, "org-1")
	if err != nil {
		t.Fatalf("GetOrganization failed: %v", err)
	}
	if org.Name != "Org org-1" || org.Timezone != "UTC" {
		t.Fatalf("unexpected organization: %+v", org)
	}

	if _, err := store.GetOrganization(ctx, "org-9"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	orgs, err := store.ListOrganizations(ctx)
	if err != nil {
		t.Fatalf("ListOrganizations failed: %v", err)
	}
	if len(orgs) != 2 || orgs[0].ID != "org-1" || orgs[1].ID != "org-2" {
		t.Fatalf("unexpected order: %+v", orgs)
	}
}

func runUsers(t *testing.T, factory Factory) {
	ctx := context.Background()
	store := newStore(t, factory)

	if err := store.CreateOrganization(ctx, orgRecord("org-1")); err != nil {
		t.Fatalf("CreateOrganization failed: %v", err)
	}

	if err := store.CreateUser(ctx, userRecord("org-9", "user-1")); !errors.Is(err, persistence.ErrForeignKey) {
		t.Fatalf("expected ErrForeignKey, got %v", err)
	}

	for _, id := range []string{"user-2", "user-1"} {
		if err := store.CreateUser(ctx, userRecord("org-1", id)); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}

	duplicate := userRecord("org-1", "user-3")
	duplicate.Email = "user-1@example.com"
	if err := store.CreateUser(ctx, duplicate); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	user, err := store.GetUser(ctx, "org-1", "user-1")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.Email != "user-1@example.com" || user.Role != "member" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := store.GetUser(ctx, "org-2", "user-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound across organizations, got %v", err)
	}

	users, err := store.ListUsers(ctx, "org-1")
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 2 || users[0].ID != "user-1" || users[1].ID != "user-2" {
		t.Fatalf("unexpected order: %+v", users)
	}

	missing, err := store.MissingUserIDs(ctx, "org-1", []string{"user-9", "user-1", "user-8", "user-9"})
	if err != nil {
		t.Fatalf("MissingUserIDs failed: %v", err)
	}
	if len(missing) != 2 || missing[0] != "user-9" || missing[1] != "user-8" {
		t.Fatalf("unexpected missing IDs: %v", missing)
	}
}

func runBatches(t *testing.T, factory Factory) {
	ctx := context.Background()
	store := newStore(t, factory)

	if err := store.CreateOrganization(ctx, orgRecord("org-1")); err != nil {
		t.Fatalf("CreateOrganization failed: %v", err)
	}

	batch := batchRecord("org-1", "batch-1", "yoga-basics")
	sessions := []persistence.Session{
		sessionRecord("org-1", "sess-1", "2025-01-06", "09:00"),
		sessionRecord("org-1", "sess-2", "2025-01-08", "09:00"),
	}
	for i := range sessions {
		sessions[i].BatchID = stringPtr("batch-1")
	}

	if err := store.CreateBatch(ctx, batch, sessions); err != nil {
		t.Fatalf("CreateBatch failed: %v", err)
	}

	clash := batchRecord("org-1", "batch-2", "yoga-basics")
	if err := store.CreateBatch(ctx, clash, nil); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for slug clash, got %v", err)
	}

	fetched, err := store.GetBatch(ctx, "org-1", "batch-1")
	if err != nil {
		t.Fatalf("GetBatch failed: %v", err)
	}
	if fetched.Slug != "yoga-basics" || len(fetched.Weekdays) != 2 || len(fetched.Roster) != 1 {
		t.Fatalf("unexpected batch: %+v", fetched)
	}
	if fetched.EndDate == nil || *fetched.EndDate != "2025-01-26" {
		t.Fatalf("unexpected end date: %v", fetched.EndDate)
	}

	if _, err := store.GetBatch(ctx, "org-2", "batch-1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound across organizations, got %v", err)
	}

	bySlug, err := store.GetBatchBySlug(ctx, "org-1", "yoga-basics")
	if err != nil {
		t.Fatalf("GetBatchBySlug failed: %v", err)
	}
	if bySlug.ID != "batch-1" {
		t.Fatalf("unexpected batch: %+v", bySlug)
	}

	taken, err := store.SlugExists(ctx, "org-1", "yoga-basics")
	if err != nil {
		t.Fatalf("SlugExists failed: %v", err)
	}
	if !taken {
		t.Fatal("expected slug to be reported as taken")
	}
	free, err := store.SlugExists(ctx, "org-1", "yoga-basics-2")
	if err != nil {
		t.Fatalf("SlugExists failed: %v", err)
	}
	if free {
		t.Fatal("expected slug to be reported as free")
	}

	// Replace one session and drop the other in a single update.
	updated := fetched
	updated.Title = "Renamed"
	replacement := sessionRecord("org-1", "sess-3", "2025-01-13", "09:00")
	replacement.BatchID = stringPtr("batch-1")
	if err := store.UpdateBatch(ctx, updated, []string{"sess-2"}, []persistence.Session{replacement}); err != nil {
		t.Fatalf("UpdateBatch failed: %v", err)
	}

	remaining, err := store.ListSessions(ctx, persistence.SessionFilter{OrgID: "org-1", BatchID: "batch-1"})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(remaining) != 2 || remaining[0].ID != "sess-1" || remaining[1].ID != "sess-3" {
		t.Fatalf("unexpected sessions after update: %+v", remaining)
	}

	renamed, err := store.GetBatch(ctx, "org-1", "batch-1")
	if err != nil {
		t.Fatalf("GetBatch failed: %v", err)
	}
	if renamed.Title != "Renamed" {
		t.Fatalf("expected renamed batch, got %q", renamed.Title)
	}

	batches, err := store.ListBatches(ctx, "org-1")
	if err != nil {
		t.Fatalf("ListBatches failed: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected one batch, got %d", len(batches))
	}
}

func runSessions(t *testing.T, factory Factory) {
	ctx := context.Background()
	store := newStore(t, factory)

	if err := store.CreateOrganization(ctx, orgRecord("org-1")); err != nil {
		t.Fatalf("CreateOrganization failed: %v", err)
	}

	orphan := sessionRecord("org-1", "sess-1", "2025-01-06", "09:00")
	orphan.BatchID = stringPtr("batch-9")
	if err := store.CreateSession(ctx, orphan); !errors.Is(err, persistence.ErrForeignKey) {
		t.Fatalf("expected ErrForeignKey for missing batch, got %v", err)
	}

	later := sessionRecord("org-1", "sess-b", "2025-01-08", "09:00")
	earlier := sessionRecord("org-1", "sess-a", "2025-01-06", "09:00")
	earlySlot := sessionRecord("org-1", "sess-c", "2025-01-08", "07:30")
	earlySlot.Roster = []persistence.Attendee{{UserID: "user-2", Email: "user-2@example.com", Mode: "REMOTE"}}

	for _, sess := range []persistence.Session{later, earlier, earlySlot} {
		if err := store.CreateSession(ctx, sess); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
	}

	all, err := store.ListSessions(ctx, persistence.SessionFilter{OrgID: "org-1"})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "sess-a" || all[1].ID != "sess-c" || all[2].ID != "sess-b" {
		t.Fatalf("unexpected order: %+v", all)
	}

	byDate, err := store.ListSessions(ctx, persistence.SessionFilter{OrgID: "org-1", Date: "2025-01-08"})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(byDate) != 2 {
		t.Fatalf("expected two sessions on the date, got %d", len(byDate))
	}

	byUser, err := store.ListSessions(ctx, persistence.SessionFilter{OrgID: "org-1", UserID: "user-2"})
	if err != nil {
		t.Fatalf("ListSessions failed: %v", err)
	}
	if len(byUser) != 1 || byUser[0].ID != "sess-c" {
		t.Fatalf("unexpected roster filter result: %+v", byUser)
	}

	fetched, err := store.GetSession(ctx, "org-1", "sess-a")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if fetched.ScanCode != "code-sess-a" || len(fetched.Roster) != 1 {
		t.Fatalf("unexpected session: %+v", fetched)
	}

	fetched.Title = "Edited"
	fetched.Cancelled = true
	fetched.CancellationReason = stringPtr("venue closed")
	if err := store.UpdateSession(ctx, fetched); err != nil {
		t.Fatalf("UpdateSession failed: %v", err)
	}
	edited, err := store.GetSession(ctx, "org-1", "sess-a")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !edited.Cancelled || edited.CancellationReason == nil || *edited.CancellationReason != "venue closed" {
		t.Fatalf("unexpected session after update: %+v", edited)
	}

	open, err := store.ListOpenSessions(ctx)
	if err != nil {
		t.Fatalf("ListOpenSessions failed: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("expected cancelled session to be excluded, got %+v", open)
	}

	completedAt := referenceTime.Add(time.Hour)
	if err := store.MarkCompleted(ctx, []string{"sess-b", "sess-gone"}, completedAt); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	completed, err := store.GetSession(ctx, "org-1", "sess-b")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if !completed.Completed || !completed.UpdatedAt.Equal(completedAt) {
		t.Fatalf("expected completed session, got %+v", completed)
	}

	open, err = store.ListOpenSessions(ctx)
	if err != nil {
		t.Fatalf("ListOpenSessions failed: %v", err)
	}
	if len(open) != 1 || open[0].ID != "sess-c" {
		t.Fatalf("unexpected open sessions: %+v", open)
	}

	if err := store.DeleteSession(ctx, "org-1", "sess-c"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := store.GetSession(ctx, "org-1", "sess-c"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.DeleteSession(ctx, "org-1", "sess-c"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for double delete, got %v", err)
	}
}

func runCheckIns(t *testing.T, factory Factory) {
	ctx := context.Background()
	store := newStore(t, factory)

	if err := store.CreateOrganization(ctx, orgRecord("org-1")); err != nil {
		t.Fatalf("CreateOrganization failed: %v", err)
	}
	if err := store.CreateSession(ctx, sessionRecord("org-1", "sess-1", "2025-01-06", "09:00")); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	record := persistence.CheckIn{
		ID:          "check-1",
		OrgID:       "org-1",
		SessionID:   "sess-1",
		UserID:      "user-1",
		Mode:        "REMOTE",
		CheckedInAt: referenceTime,
	}

	missingSession := record
	missingSession.ID = "check-0"
	missingSession.SessionID = "sess-9"
	if err := store.CreateCheckIn(ctx, missingSession); !errors.Is(err, persistence.ErrForeignKey) {
		t.Fatalf("expected ErrForeignKey, got %v", err)
	}

	if err := store.CreateCheckIn(ctx, record); err != nil {
		t.Fatalf("CreateCheckIn failed: %v", err)
	}

	duplicate := record
	duplicate.ID = "check-2"
	if err := store.CreateCheckIn(ctx, duplicate); !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for second check-in, got %v", err)
	}

	second := record
	second.ID = "check-3"
	second.UserID = "user-2"
	second.Late = true
	second.CheckedInAt = referenceTime.Add(20 * time.Minute)
	if err := store.CreateCheckIn(ctx, second); err != nil {
		t.Fatalf("CreateCheckIn failed: %v", err)
	}

	checkIns, err := store.ListCheckIns(ctx, "org-1", "sess-1")
	if err != nil {
		t.Fatalf("ListCheckIns failed: %v", err)
	}
	if len(checkIns) != 2 || checkIns[0].ID != "check-1" || checkIns[1].ID != "check-3" {
		t.Fatalf("unexpected order: %+v", checkIns)
	}
	if !checkIns[1].Late {
		t.Fatal("expected the second check-in to be late")
	}
}
