package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lboeman/solarforecastarbiter-api/internal/shared"
)

// RepositoryPort defines data access methods for user identities.
type RepositoryPort interface {
	GetUserByAuth0ID(ctx context.Context, auth0ID string) (User, error)
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	CreateUserIfNotExists(ctx context.Context, auth0ID string) (User, error)
	UserInfo(ctx context.Context, auth0ID string) (UserInfo, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userColumns = `id, auth0_id, organization_id, created_at, updated_at`

// GetUserByAuth0ID fetches a user by its external subject identity.
func (r *Repository) GetUserByAuth0ID(ctx context.Context, auth0ID string) (User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE auth0_id = $1`, auth0ID)
	return scanUser(row)
}

// GetUser fetches a user by internal id.
func (r *Repository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// CreateUserIfNotExists provisions a user into the Unaffiliated organization on
// first contact. Repeated calls for the same identity return the existing row.
func (r *Repository) CreateUserIfNotExists(ctx context.Context, auth0ID string) (User, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, auth0_id, organization_id)
		SELECT $1, $2, id FROM organizations WHERE name = 'Unaffiliated'
		ON CONFLICT (auth0_id) DO NOTHING`,
		uuid.New(), auth0ID)
	if err != nil {
		return User{}, fmt.Errorf("identity: provision user: %w", err)
	}
	return r.GetUserByAuth0ID(ctx, auth0ID)
}

// UserInfo returns the user joined with its organization name and role grants.
func (r *Repository) UserInfo(ctx context.Context, auth0ID string) (UserInfo, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT u.id, u.auth0_id, u.organization_id, o.name, u.created_at
		FROM users u JOIN organizations o ON o.id = u.organization_id
		WHERE u.auth0_id = $1`, auth0ID)
	var info UserInfo
	if err := row.Scan(&info.UserID, &info.Auth0ID, &info.OrganizationID,
		&info.OrganizationName, &info.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserInfo{}, shared.ErrNotFound
		}
		return UserInfo{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT m.role_id, r.name, m.created_at
		FROM user_role_mappings m JOIN roles r ON r.id = m.role_id
		WHERE m.user_id = $1 ORDER BY m.created_at`, info.UserID)
	if err != nil {
		return UserInfo{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var g RoleGrant
		if err := rows.Scan(&g.RoleID, &g.RoleName, &g.GrantedAt); err != nil {
			return UserInfo{}, err
		}
		info.Roles = append(info.Roles, g)
	}
	if err := rows.Err(); err != nil {
		return UserInfo{}, err
	}
	return info, nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Auth0ID, &u.OrganizationID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}
