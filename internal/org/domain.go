package org

import (
	"time"

	"github.com/google/uuid"
)

// UnaffiliatedName is the display name of the distinguished organization every
// new user belongs to until an administrator or an accepted invite moves them.
const UnaffiliatedName = "Unaffiliated"

// MaxNameLength bounds organization display names.
const MaxNameLength = 32

// Organization is a tenant and the isolation boundary for authorization.
type Organization struct {
	ID          uuid.UUID
	Name        string
	AcceptedTOU bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Member is a user joined with its organization name, for admin listings.
type Member struct {
	UserID           uuid.UUID
	Auth0ID          string
	OrganizationID   uuid.UUID
	OrganizationName string
	CreatedAt        time.Time
}
