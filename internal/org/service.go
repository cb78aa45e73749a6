package org

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/lboeman/solarforecastarbiter-api/internal/shared"
)

var nameRe = regexp.MustCompile(`^[a-zA-Z0-9 _'\-\(\)]+$`)

// Service owns organization bootstrap and the membership lifecycle. These are
// framework-administrator operations; the surrounding layer gates access to
// them, the service guards state transitions.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// CreateOrganization creates an organization together with its five default
// roles and their permission sets as one atomic unit. A half-applied bootstrap
// would silently lock out every future member, so either everything below
// commits or nothing does.
func (s *Service) CreateOrganization(ctx context.Context, name string) (Organization, error) {
	name = norm.NFC.String(strings.TrimSpace(name))
	if name == "" || len(name) > MaxNameLength {
		return Organization{}, fmt.Errorf("organization name must be 1-%d characters: %w",
			MaxNameLength, shared.ErrConstraintViolation)
	}
	if !nameRe.MatchString(name) {
		return Organization{}, fmt.Errorf("invalid characters in organization name: %w",
			shared.ErrConstraintViolation)
	}

	organization := Organization{ID: uuid.New(), Name: name}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertOrganization(ctx, organization); err != nil {
			return err
		}
		for _, dr := range buildDefaultRoles(organization.ID, name) {
			if err := tx.InsertRole(ctx, dr.role); err != nil {
				return err
			}
			for _, perm := range dr.perms {
				if err := tx.InsertPermission(ctx, perm); err != nil {
					return err
				}
				if err := tx.AttachPermissionToRole(ctx, dr.role.ID, perm.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return Organization{}, err
	}
	if s.logger != nil {
		s.logger.Info("organization created",
			slog.String("org_id", organization.ID.String()),
			slog.String("name", name))
	}
	return organization, nil
}

// GetOrganization fetches an organization by id.
func (s *Service) GetOrganization(ctx context.Context, id uuid.UUID) (Organization, error) {
	return s.repo.GetOrganization(ctx, id)
}

// ListOrganizations returns every organization.
func (s *Service) ListOrganizations(ctx context.Context) ([]Organization, error) {
	return s.repo.ListOrganizations(ctx)
}

// ListMembers returns every user with its organization name.
func (s *Service) ListMembers(ctx context.Context) ([]Member, error) {
	return s.repo.ListMembers(ctx)
}

// SetAcceptedTOU marks an organization as having accepted the terms of use.
func (s *Service) SetAcceptedTOU(ctx context.Context, orgID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		updated, err := tx.SetAcceptedTOU(ctx, orgID)
		if err != nil {
			return err
		}
		if !updated {
			return fmt.Errorf("organization does not exist: %w", shared.ErrNotFound)
		}
		return nil
	})
}

// AddUserToOrg moves an unaffiliated user into an organization. Users already
// affiliated must be removed from their organization first.
func (s *Service) AddUserToOrg(ctx context.Context, userID, orgID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("user does not exist: %w", err)
		}
		if _, err := tx.GetOrganization(ctx, orgID); err != nil {
			return fmt.Errorf("organization does not exist: %w", err)
		}
		unaffiliated, err := tx.GetOrganizationByName(ctx, UnaffiliatedName)
		if err != nil {
			return err
		}
		if user.OrganizationID != unaffiliated.ID {
			return fmt.Errorf("cannot add affiliated user to organization: %w",
				shared.ErrInvalidState)
		}
		return tx.UpdateUserOrganization(ctx, userID, orgID)
	})
}

// RemoveUserFromOrg strips every role grant owned by the organization the user
// is leaving and moves the user to the Unaffiliated organization, atomically.
func (s *Service) RemoveUserFromOrg(ctx context.Context, userID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("user does not exist: %w", err)
		}
		unaffiliated, err := tx.GetOrganizationByName(ctx, UnaffiliatedName)
		if err != nil {
			return err
		}
		if err := tx.DeleteUserRolesOwnedByOrg(ctx, userID, user.OrganizationID); err != nil {
			return err
		}
		return tx.UpdateUserOrganization(ctx, userID, unaffiliated.ID)
	})
}

// PromoteUserToOrgAdmin grants the four administrative default roles to a user
// who is already a member of the organization, as one atomic operation.
func (s *Service) PromoteUserToOrgAdmin(ctx context.Context, userID, orgID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		user, err := tx.GetUser(ctx, userID)
		if err != nil || user.OrganizationID != orgID {
			return fmt.Errorf("cannot promote admin from outside organization: %w",
				shared.ErrInvalidState)
		}
		organization, err := tx.GetOrganization(ctx, orgID)
		if err != nil {
			return fmt.Errorf("cannot promote admin from outside organization: %w",
				shared.ErrInvalidState)
		}
		granted := 0
		for _, base := range adminDefaultRoles {
			role, err := tx.GetOrgRoleByName(ctx, orgID, defaultRoleName(base, organization.Name))
			if err != nil {
				return fmt.Errorf("default role %q missing: %w", base, err)
			}
			fresh, err := tx.GrantRoleToUser(ctx, userID, role.ID)
			if err != nil {
				return err
			}
			if fresh {
				granted++
			}
		}
		if granted == 0 {
			return fmt.Errorf("user already granted admin permissions: %w",
				shared.ErrInvalidState)
		}
		return nil
	})
}

// DeleteUser removes the user entity. Mapping rows cascade at the storage
// layer.
func (s *Service) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		deleted, err := tx.DeleteUser(ctx, userID)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("user does not exist: %w", shared.ErrNotFound)
		}
		return nil
	})
}

// EnsureUnaffiliated creates the Unaffiliated organization if missing. Called
// once at startup.
func (s *Service) EnsureUnaffiliated(ctx context.Context) error {
	return s.repo.EnsureUnaffiliated(ctx)
}
