package rbac

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/lboeman/solarforecastarbiter-api/internal/shared"
)

// ErrAdminRoleExport is the denial for granting a role carrying administrative
// permissions to a user outside the role's owning organization, or for adding
// an administrative permission to a role already shared outside it.
var ErrAdminRoleExport = fmt.Errorf(
	"cannot export administrative role across organizations: %w", shared.ErrAccessDenied)

// DecisionObserver receives the outcome of every evaluator decision.
type DecisionObserver interface {
	ObserveDecision(objectType, action string, allowed bool)
}

// Service orchestrates role and permission operations. Every mutation runs its
// authorization read and its state change in one transaction.
type Service struct {
	repo     RepositoryPort
	eval     *Evaluator
	observer DecisionObserver
}

// NewService constructs a Service. observer may be nil.
func NewService(repo RepositoryPort, eval *Evaluator, observer DecisionObserver) *Service {
	return &Service{repo: repo, eval: eval, observer: observer}
}

// CanPerform answers whether subject may perform action on the identified
// object. Lack of permission is a normal false.
func (s *Service) CanPerform(ctx context.Context, subject string, objectType ObjectType, objectID uuid.UUID, action Action) (bool, error) {
	allowed, err := s.eval.CanPerform(ctx, s.repo, subject, objectType, objectID, action)
	s.observe(objectType, action, allowed && err == nil)
	return allowed, err
}

// CanCreate answers whether subject may create objects of the given type.
func (s *Service) CanCreate(ctx context.Context, subject string, objectType ObjectType) (bool, error) {
	allowed, err := s.eval.CanCreate(ctx, s.repo, subject, objectType)
	s.observe(objectType, ActionCreate, allowed && err == nil)
	return allowed, err
}

// CreateRole creates a role owned by the caller's organization.
func (s *Service) CreateRole(ctx context.Context, caller, name, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("rbac: role name required")
	}
	var role Role
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := s.eval.CanCreate(ctx, tx, caller, ObjectRoles)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("create role: %w", shared.ErrAccessDenied)
		}
		user, err := tx.ResolveSubject(ctx, caller)
		if err != nil {
			return err
		}
		role = Role{
			ID:             uuid.New(),
			Name:           name,
			Description:    strings.TrimSpace(description),
			OrganizationID: user.OrganizationID,
		}
		return tx.InsertRole(ctx, role)
	})
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// ReadRole returns a role with its effective permission set. Denied reads
// surface as not found so unauthorized callers cannot probe for existence.
func (s *Service) ReadRole(ctx context.Context, caller string, roleID uuid.UUID) (RoleView, error) {
	ok, err := s.CanPerform(ctx, caller, ObjectRoles, roleID, ActionRead)
	if err != nil {
		return RoleView{}, err
	}
	if !ok {
		return RoleView{}, fmt.Errorf("read role: %w", shared.ErrNotFound)
	}
	role, err := s.repo.GetRole(ctx, roleID)
	if err != nil {
		return RoleView{}, err
	}
	perms, err := s.repo.RolePermissions(ctx, roleID)
	if err != nil {
		return RoleView{}, err
	}
	return RoleView{Role: role, Permissions: perms}, nil
}

// DeleteRole removes a role owned by the caller's organization.
func (s *Service) DeleteRole(ctx context.Context, caller string, roleID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := s.eval.CanPerform(ctx, tx, caller, ObjectRoles, roleID, ActionDelete)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("delete role: %w", shared.ErrAccessDenied)
		}
		deleted, err := tx.DeleteRole(ctx, roleID)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("delete role: %w", shared.ErrNotFound)
		}
		return nil
	})
}

// PermissionParams carries the caller-supplied fields of a new permission.
type PermissionParams struct {
	Description  string
	Action       Action
	ObjectType   ObjectType
	AppliesToAll bool
}

// CreatePermission creates a permission owned by the caller's organization.
func (s *Service) CreatePermission(ctx context.Context, caller string, params PermissionParams) (Permission, error) {
	var perm Permission
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := s.eval.CanCreate(ctx, tx, caller, ObjectPermissions)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("create permission: %w", shared.ErrAccessDenied)
		}
		user, err := tx.ResolveSubject(ctx, caller)
		if err != nil {
			return err
		}
		perm = Permission{
			ID:             uuid.New(),
			Description:    strings.TrimSpace(params.Description),
			OrganizationID: user.OrganizationID,
			Action:         params.Action,
			ObjectType:     params.ObjectType,
			AppliesToAll:   params.AppliesToAll,
		}
		return tx.InsertPermission(ctx, perm)
	})
	if err != nil {
		return Permission{}, err
	}
	return perm, nil
}

// ReadPermission returns a permission. Denied reads surface as not found.
func (s *Service) ReadPermission(ctx context.Context, caller string, permID uuid.UUID) (Permission, error) {
	ok, err := s.CanPerform(ctx, caller, ObjectPermissions, permID, ActionRead)
	if err != nil {
		return Permission{}, err
	}
	if !ok {
		return Permission{}, fmt.Errorf("read permission: %w", shared.ErrNotFound)
	}
	return s.repo.GetPermission(ctx, permID)
}

// DeletePermission removes a permission owned by the caller's organization.
func (s *Service) DeletePermission(ctx context.Context, caller string, permID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := s.eval.CanPerform(ctx, tx, caller, ObjectPermissions, permID, ActionDelete)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("delete permission: %w", shared.ErrAccessDenied)
		}
		deleted, err := tx.DeletePermission(ctx, permID)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("delete permission: %w", shared.ErrNotFound)
		}
		return nil
	})
}

// ListRoles returns the roles of the caller's organization when the caller
// holds an applies-to-all read permission on roles, and an empty list
// otherwise. Absence is never an error for list reads.
func (s *Service) ListRoles(ctx context.Context, caller string) ([]Role, error) {
	orgID, ok, err := s.listScope(ctx, caller, ObjectRoles)
	if err != nil || !ok {
		return nil, err
	}
	return s.repo.ListRoles(ctx, orgID)
}

// ListPermissions returns the permissions of the caller's organization under
// the same visibility rule as ListRoles.
func (s *Service) ListPermissions(ctx context.Context, caller string) ([]Permission, error) {
	orgID, ok, err := s.listScope(ctx, caller, ObjectPermissions)
	if err != nil || !ok {
		return nil, err
	}
	return s.repo.ListPermissions(ctx, orgID)
}

// AddRoleToUser grants a role to a user. The caller needs the grant action on
// the role, the role must be owned by the caller's organization, and a role
// carrying administrative permissions never crosses an organization boundary.
// Granting an already-granted role is an idempotent success.
func (s *Service) AddRoleToUser(ctx context.Context, caller string, userID, roleID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := s.eval.CanPerform(ctx, tx, caller, ObjectRoles, roleID, ActionGrant)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("add role to user: %w", shared.ErrAccessDenied)
		}
		callerUser, err := tx.ResolveSubject(ctx, caller)
		if err != nil {
			return err
		}
		role, err := tx.GetRole(ctx, roleID)
		if err != nil {
			return err
		}
		if role.OrganizationID != callerUser.OrganizationID {
			return fmt.Errorf("add role to user: %w", shared.ErrAccessDenied)
		}
		target, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if target.OrganizationID != role.OrganizationID {
			admin, err := tx.RoleHasAdminPermission(ctx, roleID)
			if err != nil {
				return err
			}
			if admin {
				return ErrAdminRoleExport
			}
		}
		_, err = tx.GrantRoleToUser(ctx, userID, roleID)
		return err
	})
}

// RemoveRoleFromUser revokes a role grant. Revocation is always safe across
// organizations, so only the revoke action and role ownership are checked.
func (s *Service) RemoveRoleFromUser(ctx context.Context, caller string, roleID, userID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := s.eval.CanPerform(ctx, tx, caller, ObjectRoles, roleID, ActionRevoke)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("remove role from user: %w", shared.ErrAccessDenied)
		}
		callerUser, err := tx.ResolveSubject(ctx, caller)
		if err != nil {
			return err
		}
		role, err := tx.GetRole(ctx, roleID)
		if err != nil {
			return err
		}
		if role.OrganizationID != callerUser.OrganizationID {
			return fmt.Errorf("remove role from user: %w", shared.ErrAccessDenied)
		}
		_, err = tx.RevokeRoleFromUser(ctx, userID, roleID)
		return err
	})
}

// AddPermissionToRole attaches a permission to a role. Role and permission
// must share the caller's organization, and an administrative permission is
// refused when the role has already been granted outside its owning
// organization.
func (s *Service) AddPermissionToRole(ctx context.Context, caller string, roleID, permID uuid.UUID) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := s.eval.CanPerform(ctx, tx, caller, ObjectRoles, roleID, ActionUpdate)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("add permission to role: %w", shared.ErrAccessDenied)
		}
		callerUser, err := tx.ResolveSubject(ctx, caller)
		if err != nil {
			return err
		}
		role, err := tx.GetRole(ctx, roleID)
		if err != nil {
			return err
		}
		perm, err := tx.GetPermission(ctx, permID)
		if err != nil {
			return err
		}
		if role.OrganizationID != callerUser.OrganizationID ||
			perm.OrganizationID != callerUser.OrganizationID {
			return fmt.Errorf("add permission to role: %w", shared.ErrAccessDenied)
		}
		if perm.Administrative() {
			exported, err := tx.RoleGrantedOutsideOrg(ctx, roleID, role.OrganizationID)
			if err != nil {
				return err
			}
			if exported {
				return ErrAdminRoleExport
			}
		}
		_, err = tx.AttachPermissionToRole(ctx, roleID, permID)
		return err
	})
}

func (s *Service) listScope(ctx context.Context, caller string, objectType ObjectType) (uuid.UUID, bool, error) {
	user, err := s.repo.ResolveSubject(ctx, caller)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	perms, err := s.repo.UserPermissions(ctx, user.ID)
	if err != nil {
		return uuid.Nil, false, err
	}
	for _, p := range perms {
		if p.Action == ActionRead && p.ObjectType == objectType && p.AppliesToAll {
			return user.OrganizationID, true, nil
		}
	}
	return uuid.Nil, false, nil
}

func (s *Service) observe(objectType ObjectType, action Action, allowed bool) {
	if s.observer != nil {
		s.observer.ObserveDecision(string(objectType), string(action), allowed)
	}
}
