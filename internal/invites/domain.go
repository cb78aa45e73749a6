package invites

import (
	"time"

	"github.com/google/uuid"
)

// Invite is a pending offer to join an organization. Invites exist only in
// the pending state: accepting or declining deletes the row, no history is
// retained. Duplicate pending invites for the same invitee and organization
// are allowed.
type Invite struct {
	ID             uuid.UUID
	InviterAuth0ID string
	InviteeAuth0ID string
	OrganizationID uuid.UUID
	CreatedAt      time.Time
}

// InviteWithOrg is an invite joined with the target organization's display
// name, for presenting pending invites to the invitee.
type InviteWithOrg struct {
	Invite
	OrganizationName string
}
