package rbac

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lboeman/solarforecastarbiter-api/internal/identity"
	"github.com/lboeman/solarforecastarbiter-api/internal/platform/db"
	"github.com/lboeman/solarforecastarbiter-api/internal/shared"
)

// TxRepository exposes model reads and writes inside one transaction.
// Authorization reads gating a mutation run through the same view.
type TxRepository interface {
	Reader
	GetUser(ctx context.Context, id uuid.UUID) (identity.User, error)
	GetRole(ctx context.Context, id uuid.UUID) (Role, error)
	GetPermission(ctx context.Context, id uuid.UUID) (Permission, error)
	RolePermissions(ctx context.Context, roleID uuid.UUID) ([]Permission, error)
	InsertRole(ctx context.Context, role Role) error
	InsertPermission(ctx context.Context, perm Permission) error
	AttachPermissionToRole(ctx context.Context, roleID, permissionID uuid.UUID) (bool, error)
	GrantRoleToUser(ctx context.Context, userID, roleID uuid.UUID) (bool, error)
	RevokeRoleFromUser(ctx context.Context, userID, roleID uuid.UUID) (bool, error)
	RoleHasAdminPermission(ctx context.Context, roleID uuid.UUID) (bool, error)
	RoleGrantedOutsideOrg(ctx context.Context, roleID, orgID uuid.UUID) (bool, error)
	DeleteRole(ctx context.Context, id uuid.UUID) (bool, error)
	DeletePermission(ctx context.Context, id uuid.UUID) (bool, error)
}

// RepositoryPort defines data access for the role/permission model.
type RepositoryPort interface {
	Reader
	GetRole(ctx context.Context, id uuid.UUID) (Role, error)
	GetPermission(ctx context.Context, id uuid.UUID) (Permission, error)
	RolePermissions(ctx context.Context, roleID uuid.UUID) ([]Permission, error)
	ListRoles(ctx context.Context, orgID uuid.UUID) ([]Role, error)
	ListPermissions(ctx context.Context, orgID uuid.UUID) ([]Permission, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
	queries
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, queries: queries{q: pool}}
}

// WithTx runs fn against a transactional view of the model at RepeatableRead.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{queries{q: tx}})
	})
}

type txRepository struct {
	queries
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

type queries struct {
	q querier
}

const (
	roleColumns = `id, name, description, organization_id, created_at, modified_at`
	permColumns = `id, description, organization_id, action, object_type, applies_to_all, created_at`
)

func (s queries) ResolveSubject(ctx context.Context, auth0ID string) (identity.User, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, auth0_id, organization_id, created_at, updated_at
		FROM users WHERE auth0_id = $1`, auth0ID)
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

func (s queries) GetUser(ctx context.Context, id uuid.UUID) (identity.User, error) {
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

func (s queries) UserPermissions(ctx context.Context, userID uuid.UUID) ([]Permission, error) {
	rows, err := s.q.Query(ctx, `
		SELECT p.id, p.description, p.organization_id, p.action, p.object_type, p.applies_to_all, p.created_at
		FROM permissions p
		JOIN role_permission_mappings rpm ON rpm.permission_id = p.id
		JOIN user_role_mappings urm ON urm.role_id = rpm.role_id
		WHERE urm.user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

func (s queries) GetRole(ctx context.Context, id uuid.UUID) (Role, error) {
	return scanRole(s.q.QueryRow(ctx,
		`SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

func (s queries) GetPermission(ctx context.Context, id uuid.UUID) (Permission, error) {
	return scanPermission(s.q.QueryRow(ctx,
		`SELECT `+permColumns+` FROM permissions WHERE id = $1`, id))
}

func (s queries) RolePermissions(ctx context.Context, roleID uuid.UUID) ([]Permission, error) {
	rows, err := s.q.Query(ctx, `
		SELECT p.id, p.description, p.organization_id, p.action, p.object_type, p.applies_to_all, p.created_at
		FROM permissions p
		JOIN role_permission_mappings rpm ON rpm.permission_id = p.id
		WHERE rpm.role_id = $1 ORDER BY p.created_at`, roleID)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

func (s queries) ListRoles(ctx context.Context, orgID uuid.UUID) ([]Role, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+roleColumns+` FROM roles
		WHERE organization_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description,
			&role.OrganizationID, &role.CreatedAt, &role.ModifiedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s queries) ListPermissions(ctx context.Context, orgID uuid.UUID) ([]Permission, error) {
	rows, err := s.q.Query(ctx, `
		SELECT `+permColumns+` FROM permissions
		WHERE organization_id = $1 ORDER BY created_at`, orgID)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

func (s queries) InsertRole(ctx context.Context, role Role) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO roles (id, name, description, organization_id)
		VALUES ($1, $2, $3, $4)`,
		role.ID, role.Name, role.Description, role.OrganizationID)
	if db.IsUniqueViolation(err) {
		return shared.ErrConstraintViolation
	}
	return err
}

func (s queries) InsertPermission(ctx context.Context, perm Permission) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO permissions (id, description, organization_id, action, object_type, applies_to_all)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		perm.ID, perm.Description, perm.OrganizationID,
		string(perm.Action), string(perm.ObjectType), perm.AppliesToAll)
	if db.IsUniqueViolation(err) {
		return shared.ErrConstraintViolation
	}
	return err
}

// AttachPermissionToRole links a permission to a role. Returns false when the
// pair already existed.
func (s queries) AttachPermissionToRole(ctx context.Context, roleID, permissionID uuid.UUID) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO role_permission_mappings (role_id, permission_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, roleID, permissionID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return false, shared.ErrNotFound
		}
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// GrantRoleToUser records a user-role grant. Returns false when the grant
// already existed, letting callers report an idempotent outcome instead of a
// duplicate-insert conflict.
func (s queries) GrantRoleToUser(ctx context.Context, userID, roleID uuid.UUID) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO user_role_mappings (user_id, role_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, userID, roleID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return false, shared.ErrNotFound
		}
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s queries) RevokeRoleFromUser(ctx context.Context, userID, roleID uuid.UUID) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		DELETE FROM user_role_mappings WHERE user_id = $1 AND role_id = $2`,
		userID, roleID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s queries) RoleHasAdminPermission(ctx context.Context, roleID uuid.UUID) (bool, error) {
	row := s.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM permissions p
			JOIN role_permission_mappings rpm ON rpm.permission_id = p.id
			WHERE rpm.role_id = $1
			  AND p.object_type IN ('roles', 'permissions', 'users'))`, roleID)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

func (s queries) RoleGrantedOutsideOrg(ctx context.Context, roleID, orgID uuid.UUID) (bool, error) {
	row := s.q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM user_role_mappings urm
			JOIN users u ON u.id = urm.user_id
			WHERE urm.role_id = $1 AND u.organization_id <> $2)`, roleID, orgID)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

func (s queries) DeleteRole(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s queries) DeletePermission(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description,
		&role.OrganizationID, &role.CreatedAt, &role.ModifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	var action, objectType string
	err := row.Scan(&p.ID, &p.Description, &p.OrganizationID,
		&action, &objectType, &p.AppliesToAll, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, shared.ErrNotFound
		}
		return Permission{}, err
	}
	p.Action = Action(action)
	p.ObjectType = ObjectType(objectType)
	return p, nil
}

func scanPermissions(rows pgx.Rows) ([]Permission, error) {
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		var action, objectType string
		if err := rows.Scan(&p.ID, &p.Description, &p.OrganizationID,
			&action, &objectType, &p.AppliesToAll, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Action = Action(action)
		p.ObjectType = ObjectType(objectType)
		perms = append(perms, p)
	}
	return perms, rows.Err()
}
