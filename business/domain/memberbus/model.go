package memberbus

import (
	"time"

	"github.com/dcapri/hubmirror/business/types/memberstatus"
	"github.com/dcapri/hubmirror/business/types/role"
	"github.com/google/uuid"
)

// Membership represents an individual invitation or claimed seat on a hub.
// Invitations are created by email only; IdentityID stays nil until the
// invited person authenticates for the first time and claims the seat.
type Membership struct {
	ID         uuid.UUID
	HubID      uuid.UUID
	IdentityID *uuid.UUID
	Email      string
	Role       role.Role
	Status     memberstatus.Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewMembership contains information needed to invite a member.
type NewMembership struct {
	HubID uuid.UUID
	Email string
	Role  role.Role
}

// Access is the resolved grant a caller holds on a hub for the duration of
// one request. GlobalAdmin grants carry a zero MembershipID.
type Access struct {
	MembershipID uuid.UUID
	HubID        uuid.UUID
	IdentityID   uuid.UUID
	Role         role.Role
	GlobalAdmin  bool
}

// CanWrite reports whether the grant permits mutations on the hub.
func (a Access) CanWrite() bool {
	return !a.Role.Equal(role.Viewer)
}
