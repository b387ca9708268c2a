package sqlite

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/example/attendance-tracker/internal/persistence"
)

type organizationRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	Timezone  string `db:"timezone"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func newOrganizationRow(org persistence.Organization) organizationRow {
	return organizationRow{
		ID:        org.ID,
		Name:      org.Name,
		Timezone:  org.Timezone,
		CreatedAt: formatInstant(org.CreatedAt),
		UpdatedAt: formatInstant(org.UpdatedAt),
	}
}

func organizationFromRow(row organizationRow) (persistence.Organization, error) {
	createdAt, err := parseInstant(row.CreatedAt)
	if err != nil {
		return persistence.Organization{}, err
	}
	updatedAt, err := parseInstant(row.UpdatedAt)
	if err != nil {
		return persistence.Organization{}, err
	}
	return persistence.Organization{
		ID:        row.ID,
		Name:      row.Name,
		Timezone:  row.Timezone,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func (s *Store) CreateOrganization(ctx context.Context, org persistence.Organization) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO organizations (id, name, timezone, created_at, updated_at)
		VALUES (:id, :name, :timezone, :created_at, :updated_at)`,
		newOrganizationRow(org))
	return mapError("create organization", err)
}

func (s *Store) GetOrganization(ctx context.Context, id string) (persistence.Organization, error) {
	var row organizationRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM organizations WHERE id = ?`, id)
	if err != nil {
		return persistence.Organization{}, mapError("get organization", err)
	}
	return organizationFromRow(row)
}

func (s *Store) ListOrganizations(ctx context.Context) ([]persistence.Organization, error) {
	var rows []organizationRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM organizations ORDER BY id`)
	if err != nil {
		return nil, mapError("list organizations", err)
	}
	out := make([]persistence.Organization, 0, len(rows))
	for _, row := range rows {
		org, err := organizationFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, org)
	}
	return out, nil
}

type userRow struct {
	ID        string `db:"id"`
	OrgID     string `db:"org_id"`
	Email     string `db:"email"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	Role      string `db:"role"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

func newUserRow(user persistence.User) userRow {
	return userRow{
		ID:        user.ID,
		OrgID:     user.OrgID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		CreatedAt: formatInstant(user.CreatedAt),
		UpdatedAt: formatInstant(user.UpdatedAt),
	}
}

func userFromRow(row userRow) (persistence.User, error) {
	createdAt, err := parseInstant(row.CreatedAt)
	if err != nil {
		return persistence.User{}, err
	}
	updatedAt, err := parseInstant(row.UpdatedAt)
	if err != nil {
		return persistence.User{}, err
	}
	return persistence.User{
		ID:        row.ID,
		OrgID:     row.OrgID,
		Email:     row.Email,
		FirstName: row.FirstName,
		LastName:  row.LastName,
		Role:      row.Role,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func (s *Store) CreateUser(ctx context.Context, user persistence.User) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (id, org_id, email, first_name, last_name, role, created_at, updated_at)
		VALUES (:id, :org_id, :email, :first_name, :last_name, :role, :created_at, :updated_at)`,
		newUserRow(user))
	return mapError("create user", err)
}

func (s *Store) GetUser(ctx context.Context, orgID, id string) (persistence.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row,
		`SELECT * FROM users WHERE id = ? AND org_id = ?`, id, orgID)
	if err != nil {
		return persistence.User{}, mapError("get user", err)
	}
	return userFromRow(row)
}

func (s *Store) ListUsers(ctx context.Context, orgID string) ([]persistence.User, error) {
	var rows []userRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM users WHERE org_id = ? ORDER BY id`, orgID)
	if err != nil {
		return nil, mapError("list users", err)
	}
	out := make([]persistence.User, 0, len(rows))
	for _, row := range rows {
		user, err := userFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, nil
}

// MissingUserIDs reports which IDs have no user in the organization.
func (s *Store) MissingUserIDs(ctx context.Context, orgID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(
		`SELECT id FROM users WHERE org_id = ? AND id IN (?)`, orgID, ids)
	if err != nil {
		return nil, mapError("missing user ids", err)
	}
	var found []string
	if err := s.db.SelectContext(ctx, &found, query, args...); err != nil {
		return nil, mapError("missing user ids", err)
	}

	exists := make(map[string]struct{}, len(found))
	for _, id := range found {
		exists[id] = struct{}{}
	}
	missing := make([]string, 0)
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := exists[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
