package identity

import (
	"time"

	"github.com/google/uuid"
)

// User is an internal account provisioned on first contact from an external
// identity. A user belongs to exactly one organization at all times.
type User struct {
	ID             uuid.UUID
	Auth0ID        string
	OrganizationID uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RoleGrant describes one role granted to a user.
type RoleGrant struct {
	RoleID    uuid.UUID
	RoleName  string
	GrantedAt time.Time
}

// UserInfo is the projection returned to the authenticated caller.
type UserInfo struct {
	UserID           uuid.UUID
	Auth0ID          string
	OrganizationID   uuid.UUID
	OrganizationName string
	CreatedAt        time.Time
	Roles            []RoleGrant
}
