package rbac

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action is the closed set of things a permission can allow.
type Action string

const (
	ActionCreate       Action = "create"
	ActionRead         Action = "read"
	ActionUpdate       Action = "update"
	ActionDelete       Action = "delete"
	ActionReadValues   Action = "read_values"
	ActionWriteValues  Action = "write_values"
	ActionDeleteValues Action = "delete_values"
	ActionGrant        Action = "grant"
	ActionRevoke       Action = "revoke"
)

// Actions lists every valid action in declaration order.
var Actions = []Action{
	ActionCreate, ActionRead, ActionUpdate, ActionDelete,
	ActionReadValues, ActionWriteValues, ActionDeleteValues,
	ActionGrant, ActionRevoke,
}

// ParseAction validates a wire-format action string.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if s == string(a) {
			return a, nil
		}
	}
	return "", fmt.Errorf("rbac: unknown action %q", s)
}

// ObjectType is the closed set of resource kinds a permission can govern.
type ObjectType string

const (
	ObjectSites        ObjectType = "sites"
	ObjectAggregates   ObjectType = "aggregates"
	ObjectCDFForecasts ObjectType = "cdf_forecasts"
	ObjectForecasts    ObjectType = "forecasts"
	ObjectObservations ObjectType = "observations"
	ObjectUsers        ObjectType = "users"
	ObjectRoles        ObjectType = "roles"
	ObjectPermissions  ObjectType = "permissions"
	ObjectReports      ObjectType = "reports"
	ObjectInvites      ObjectType = "invites"
)

// ObjectTypes lists every valid object type in declaration order.
var ObjectTypes = []ObjectType{
	ObjectSites, ObjectAggregates, ObjectCDFForecasts, ObjectForecasts,
	ObjectObservations, ObjectUsers, ObjectRoles, ObjectPermissions,
	ObjectReports, ObjectInvites,
}

// ParseObjectType validates a wire-format object type string.
func ParseObjectType(s string) (ObjectType, error) {
	for _, t := range ObjectTypes {
		if s == string(t) {
			return t, nil
		}
	}
	return "", fmt.Errorf("rbac: unknown object type %q", s)
}

// Administrative reports whether permissions over this object type govern
// access control itself. Roles carrying such permissions must never leave
// their owning organization.
func (t ObjectType) Administrative() bool {
	switch t {
	case ObjectRoles, ObjectPermissions, ObjectUsers:
		return true
	}
	return false
}

// Role groups permissions under one owning organization. The name is globally
// unique regardless of owner.
type Role struct {
	ID             uuid.UUID
	Name           string
	Description    string
	OrganizationID uuid.UUID
	CreatedAt      time.Time
	ModifiedAt     time.Time
}

// Permission allows one action on one object type within its owning
// organization. When AppliesToAll is false the permission is scoped to
// specific objects through an externally maintained grant association.
type Permission struct {
	ID             uuid.UUID
	Description    string
	OrganizationID uuid.UUID
	Action         Action
	ObjectType     ObjectType
	AppliesToAll   bool
	CreatedAt      time.Time
}

// Administrative reports whether this permission governs roles, permissions
// or users.
func (p Permission) Administrative() bool {
	return p.ObjectType.Administrative()
}

// RoleView is a role joined with its effective permission set.
type RoleView struct {
	Role
	Permissions []Permission
}
