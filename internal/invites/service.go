package invites

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/lboeman/solarforecastarbiter-api/internal/rbac"
	"github.com/lboeman/solarforecastarbiter-api/internal/shared"
)

// Service runs the invitation workflow: a pending invite either moves the
// invitee into the target organization or disappears without a trace.
type Service struct {
	repo RepositoryPort
	eval *rbac.Evaluator
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, eval *rbac.Evaluator) *Service {
	return &Service{repo: repo, eval: eval}
}

// CreateInvite invites an already-known identity into the inviter's
// organization. Duplicate pending invites are permitted.
func (s *Service) CreateInvite(ctx context.Context, inviter, inviteeAuth0ID string) (Invite, error) {
	var invite Invite
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := s.eval.CanCreate(ctx, tx, inviter, rbac.ObjectInvites)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("create invite: %w", shared.ErrAccessDenied)
		}
		inviterUser, err := tx.ResolveSubject(ctx, inviter)
		if err != nil {
			return err
		}
		if _, err := tx.ResolveSubject(ctx, inviteeAuth0ID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return fmt.Errorf("invitee unknown: %w", shared.ErrNotFound)
			}
			return err
		}
		invite = Invite{
			ID:             uuid.New(),
			InviterAuth0ID: inviter,
			InviteeAuth0ID: inviteeAuth0ID,
			OrganizationID: inviterUser.OrganizationID,
		}
		return tx.InsertInvite(ctx, invite)
	})
	if err != nil {
		return Invite{}, err
	}
	return invite, nil
}

// ListUserInvites returns every pending invite for the identity. The identity
// match is the authorization; an empty list is a normal result.
func (s *Service) ListUserInvites(ctx context.Context, auth0ID string) ([]InviteWithOrg, error) {
	return s.repo.ListPendingForInvitee(ctx, auth0ID)
}

// AcceptInvite moves the invitee into the invite's target organization and
// deletes the invite, atomically. Role grants from the previous organization
// are deliberately left in place; RemoveUserFromOrg is the path that strips
// them. A consumed invite id fails with not found.
func (s *Service) AcceptInvite(ctx context.Context, auth0ID string, inviteID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invite, err := tx.GetInvite(ctx, inviteID)
		if err != nil {
			return fmt.Errorf("accept invite: %w", err)
		}
		if invite.InviteeAuth0ID != auth0ID {
			return fmt.Errorf("accept invite: %w", shared.ErrAccessDenied)
		}
		user, err := tx.ResolveSubject(ctx, auth0ID)
		if err != nil {
			return err
		}
		if err := tx.UpdateUserOrganization(ctx, user.ID, invite.OrganizationID); err != nil {
			return err
		}
		deleted, err := tx.DeleteInvite(ctx, inviteID)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("accept invite: %w", shared.ErrNotFound)
		}
		return nil
	})
}

// DeclineInvite deletes the invite with no other side effect.
func (s *Service) DeclineInvite(ctx context.Context, auth0ID string, inviteID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invite, err := tx.GetInvite(ctx, inviteID)
		if err != nil {
			return fmt.Errorf("decline invite: %w", err)
		}
		if invite.InviteeAuth0ID != auth0ID {
			return fmt.Errorf("decline invite: %w", shared.ErrAccessDenied)
		}
		deleted, err := tx.DeleteInvite(ctx, inviteID)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("decline invite: %w", shared.ErrNotFound)
		}
		return nil
	})
}
