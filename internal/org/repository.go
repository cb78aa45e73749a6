package org

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lboeman/solarforecastarbiter-api/internal/identity"
	"github.com/lboeman/solarforecastarbiter-api/internal/platform/db"
	"github.com/lboeman/solarforecastarbiter-api/internal/rbac"
	"github.com/lboeman/solarforecastarbiter-api/internal/shared"
)

// TxRepository exposes the organization and membership writes that must share
// one transaction.
type TxRepository interface {
	InsertOrganization(ctx context.Context, org Organization) error
	GetOrganization(ctx context.Context, id uuid.UUID) (Organization, error)
	GetOrganizationByName(ctx context.Context, name string) (Organization, error)
	SetAcceptedTOU(ctx context.Context, id uuid.UUID) (bool, error)
	GetUser(ctx context.Context, id uuid.UUID) (identity.User, error)
	UpdateUserOrganization(ctx context.Context, userID, orgID uuid.UUID) error
	DeleteUserRolesOwnedByOrg(ctx context.Context, userID, orgID uuid.UUID) error
	DeleteUser(ctx context.Context, userID uuid.UUID) (bool, error)
	InsertRole(ctx context.Context, role rbac.Role) error
	InsertPermission(ctx context.Context, perm rbac.Permission) error
	AttachPermissionToRole(ctx context.Context, roleID, permissionID uuid.UUID) error
	GetOrgRoleByName(ctx context.Context, orgID uuid.UUID, name string) (rbac.Role, error)
	GrantRoleToUser(ctx context.Context, userID, roleID uuid.UUID) (bool, error)
}

// RepositoryPort defines data access for organizations and membership.
type RepositoryPort interface {
	GetOrganization(ctx context.Context, id uuid.UUID) (Organization, error)
	GetOrganizationByName(ctx context.Context, name string) (Organization, error)
	ListOrganizations(ctx context.Context) ([]Organization, error)
	ListMembers(ctx context.Context) ([]Member, error)
	EnsureUnaffiliated(ctx context.Context) error
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
	orgQueries
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, orgQueries: orgQueries{q: pool}}
}

// WithTx runs fn inside one RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{orgQueries{q: tx}})
	})
}

// ListOrganizations returns every organization ordered by name.
func (r *Repository) ListOrganizations(ctx context.Context) ([]Organization, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, accepted_tou, created_at, updated_at
		FROM organizations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orgs []Organization
	for rows.Next() {
		var o Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.AcceptedTOU, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// ListMembers returns every user joined with its organization name.
func (r *Repository) ListMembers(ctx context.Context) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.auth0_id, u.organization_id, o.name, u.created_at
		FROM users u JOIN organizations o ON o.id = u.organization_id
		ORDER BY u.created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.UserID, &m.Auth0ID, &m.OrganizationID,
			&m.OrganizationName, &m.CreatedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// EnsureUnaffiliated creates the distinguished Unaffiliated organization when
// missing. It carries no default roles.
func (r *Repository) EnsureUnaffiliated(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO organizations (id, name, accepted_tou)
		VALUES ($1, $2, TRUE) ON CONFLICT (name) DO NOTHING`,
		uuid.New(), UnaffiliatedName)
	return err
}

type txRepository struct {
	orgQueries
}

var (
	_ RepositoryPort = (*Repository)(nil)
	_ TxRepository   = (*txRepository)(nil)
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type orgQueries struct {
	q querier
}

func (s orgQueries) InsertOrganization(ctx context.Context, org Organization) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO organizations (id, name, accepted_tou)
		VALUES ($1, $2, $3)`, org.ID, org.Name, org.AcceptedTOU)
	if db.IsUniqueViolation(err) {
		return shared.ErrConstraintViolation
	}
	return err
}

func (s orgQueries) GetOrganization(ctx context.Context, id uuid.UUID) (Organization, error) {
	return scanOrganization(s.q.QueryRow(ctx, `
		SELECT id, name, accepted_tou, created_at, updated_at
		FROM organizations WHERE id = $1`, id))
}

func (s orgQueries) GetOrganizationByName(ctx context.Context, name string) (Organization, error) {
	return scanOrganization(s.q.QueryRow(ctx, `
		SELECT id, name, accepted_tou, created_at, updated_at
		FROM organizations WHERE name = $1`, name))
}

func (s orgQueries) SetAcceptedTOU(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		UPDATE organizations SET accepted_tou = TRUE, updated_at = now()
		WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s orgQueries) GetUser(ctx context.Context, id uuid.UUID) (identity.User, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, auth0_id, organization_id, created_at, updated_at
		FROM users WHERE id = $1`, id)
	var u identity.User
	err := row.Scan(&u.ID, &u.Auth0ID, &u.OrganizationID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return identity.User{}, shared.ErrNotFound
		}
		return identity.User{}, err
	}
	return u, nil
}

func (s orgQueries) UpdateUserOrganization(ctx context.Context, userID, orgID uuid.UUID) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE users SET organization_id = $2, updated_at = now()
		WHERE id = $1`, userID, orgID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return shared.ErrNotFound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (s orgQueries) DeleteUserRolesOwnedByOrg(ctx context.Context, userID, orgID uuid.UUID) error {
	_, err := s.q.Exec(ctx, `
		DELETE FROM user_role_mappings m
		USING roles r
		WHERE m.role_id = r.id AND m.user_id = $1 AND r.organization_id = $2`,
		userID, orgID)
	return err
}

func (s orgQueries) DeleteUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s orgQueries) InsertRole(ctx context.Context, role rbac.Role) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO roles (id, name, description, organization_id)
		VALUES ($1, $2, $3, $4)`,
		role.ID, role.Name, role.Description, role.OrganizationID)
	if db.IsUniqueViolation(err) {
		return shared.ErrConstraintViolation
	}
	return err
}

func (s orgQueries) InsertPermission(ctx context.Context, perm rbac.Permission) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO permissions (id, description, organization_id, action, object_type, applies_to_all)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		perm.ID, perm.Description, perm.OrganizationID,
		string(perm.Action), string(perm.ObjectType), perm.AppliesToAll)
	return err
}

func (s orgQueries) AttachPermissionToRole(ctx context.Context, roleID, permissionID uuid.UUID) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO role_permission_mappings (role_id, permission_id)
		VALUES ($1, $2)`, roleID, permissionID)
	return err
}

func (s orgQueries) GetOrgRoleByName(ctx context.Context, orgID uuid.UUID, name string) (rbac.Role, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, name, description, organization_id, created_at, modified_at
		FROM roles WHERE organization_id = $1 AND name = $2`, orgID, name)
	var role rbac.Role
	err := row.Scan(&role.ID, &role.Name, &role.Description,
		&role.OrganizationID, &role.CreatedAt, &role.ModifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return rbac.Role{}, shared.ErrNotFound
		}
		return rbac.Role{}, err
	}
	return role, nil
}

func (s orgQueries) GrantRoleToUser(ctx context.Context, userID, roleID uuid.UUID) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO user_role_mappings (user_id, role_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, roleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanOrganization(row pgx.Row) (Organization, error) {
	var o Organization
	err := row.Scan(&o.ID, &o.Name, &o.AcceptedTOU, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, shared.ErrNotFound
		}
		return Organization{}, err
	}
	return o, nil
}
