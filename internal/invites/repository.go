package invites

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

// TxRepository exposes invite reads and writes plus the model reads the
// evaluator needs, all inside one transaction.
type TxRepository interface {
	rbac.Reader
	GetInvite(ctx context.Context, id uuid.UUID) (Invite, error)
	InsertInvite(ctx context.Context, invite Invite) error
	DeleteInvite(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateUserOrganization(ctx context.Context, userID, orgID uuid.UUID) error
}

// RepositoryPort defines data access for invitations.
type RepositoryPort interface {
	ListPendingForInvitee(ctx context.Context, auth0ID string) ([]InviteWithOrg, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
	inviteQueries
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, inviteQueries: inviteQueries{q: pool}}
}

// WithTx runs fn inside one RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{inviteQueries{q: tx}})
	})
}

// ListPendingForInvitee returns every pending invite for the identity joined
// with the target organization's name.
func (r *Repository) ListPendingForInvitee(ctx context.Context, auth0ID string) ([]InviteWithOrg, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.inviter_auth0_id, i.invitee_auth0_id, i.organization_id,
		       i.created_at, o.name
		FROM organization_invites i
		JOIN organizations o ON o.id = i.organization_id
		WHERE i.invitee_auth0_id = $1 ORDER BY i.created_at`, auth0ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invites []InviteWithOrg
	for rows.Next() {
		var iv InviteWithOrg
		if err := rows.Scan(&iv.ID, &iv.InviterAuth0ID, &iv.InviteeAuth0ID,
			&iv.OrganizationID, &iv.CreatedAt, &iv.OrganizationName); err != nil {
			return nil, err
		}
		invites = append(invites, iv)
	}
	return invites, rows.Err()
}

type txRepository struct {
	inviteQueries
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

type inviteQueries struct {
	q querier
}

func (s inviteQueries) ResolveSubject(ctx context.Context, auth0ID string) (identity.User, error) {
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

func (s inviteQueries) UserPermissions(ctx context.Context, userID uuid.UUID) ([]rbac.Permission, error) {
	rows, err := s.q.Query(ctx, `
		SELECT p.id, p.description, p.organization_id, p.action, p.object_type, p.applies_to_all, p.created_at
		FROM permissions p
		JOIN role_permission_mappings rpm ON rpm.permission_id = p.id
		JOIN user_role_mappings urm ON urm.role_id = rpm.role_id
		WHERE urm.user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []rbac.Permission
	for rows.Next() {
		var p rbac.Permission
		var action, objectType string
		if err := rows.Scan(&p.ID, &p.Description, &p.OrganizationID,
			&action, &objectType, &p.AppliesToAll, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Action = rbac.Action(action)
		p.ObjectType = rbac.ObjectType(objectType)
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s inviteQueries) GetInvite(ctx context.Context, id uuid.UUID) (Invite, error) {
	row := s.q.QueryRow(ctx, `
		SELECT id, inviter_auth0_id, invitee_auth0_id, organization_id, created_at
		FROM organization_invites WHERE id = $1`, id)
	var iv Invite
	err := row.Scan(&iv.ID, &iv.InviterAuth0ID, &iv.InviteeAuth0ID,
		&iv.OrganizationID, &iv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invite{}, shared.ErrNotFound
		}
		return Invite{}, err
	}
	return iv, nil
}

func (s inviteQueries) InsertInvite(ctx context.Context, invite Invite) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO organization_invites (id, inviter_auth0_id, invitee_auth0_id, organization_id)
		VALUES ($1, $2, $3, $4)`,
		invite.ID, invite.InviterAuth0ID, invite.InviteeAuth0ID, invite.OrganizationID)
	if db.IsForeignKeyViolation(err) {
		return shared.ErrNotFound
	}
	return err
}

func (s inviteQueries) DeleteInvite(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM organization_invites WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s inviteQueries) UpdateUserOrganization(ctx context.Context, userID, orgID uuid.UUID) error {
	tag, err := s.q.Exec(ctx, `
		UPDATE users SET organization_id = $2, updated_at = now()
		WHERE id = $1`, userID, orgID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
