// Package memberbus provides business access to hub memberships and the
// access resolution used by the request guards.
package memberbus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dcapri/hubmirror/business/sdk/sqldb"
	"github.com/dcapri/hubmirror/business/types/memberstatus"
	"github.com/dcapri/hubmirror/business/types/role"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/dcapri/hubmirror/foundation/otel"
	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("membership not found")
	ErrNotMember      = errors.New("identity is not a member of the hub")
	ErrAlreadyInvited = errors.New("email already invited to the hub")
	ErrAlreadyClaimed = errors.New("membership already claimed")
)

// Storer defines the behavior required by the memberbus to interact with
// the database.
type Storer interface {
	NewWithTx(tx sqldb.CommitRollbacker) (Storer, error)

	Create(ctx context.Context, mbr Membership) error
	Delete(ctx context.Context, mbr Membership) error
	Claim(ctx context.Context, membershipID uuid.UUID, identityID uuid.UUID, now time.Time) error
	QueryByID(ctx context.Context, membershipID uuid.UUID) (Membership, error)
	QueryByIdentity(ctx context.Context, hubID uuid.UUID, identityID uuid.UUID) (Membership, error)
	QueryPendingByEmail(ctx context.Context, hubID uuid.UUID, email string) (Membership, error)
	QueryByHub(ctx context.Context, hubID uuid.UUID) ([]Membership, error)
}

// Core manages the set of APIs for membership access.
type Core struct {
	storer       Storer
	log          *logger.Logger
	globalAdmins map[string]struct{}
}

// NewCore constructs a core for membership api access. globalAdmins is the
// set of email addresses that bypass per-hub membership entirely.
func NewCore(log *logger.Logger, storer Storer, globalAdmins []string) *Core {
	admins := make(map[string]struct{}, len(globalAdmins))
	for _, email := range globalAdmins {
		admins[strings.ToLower(email)] = struct{}{}
	}

	return &Core{
		storer:       storer,
		log:          log,
		globalAdmins: admins,
	}
}

// NewWithTx constructs a new Core value replacing the Storer
// value with a Storer value that is currently inside a transaction.
func (c *Core) NewWithTx(tx sqldb.CommitRollbacker) (*Core, error) {
	storer, err := c.storer.NewWithTx(tx)
	if err != nil {
		return nil, fmt.Errorf("newWithTx: %w", err)
	}

	return &Core{
		storer:       storer,
		log:          c.log,
		globalAdmins: c.globalAdmins,
	}, nil
}

// Invite creates a pending membership for the specified email.
func (c *Core) Invite(ctx context.Context, nm NewMembership) (Membership, error) {
	ctx, span := otel.AddSpan(ctx, "business.memberbus.invite")
	defer span.End()

	now := time.Now()

	mbr := Membership{
		ID:        uuid.New(),
		HubID:     nm.HubID,
		Email:     strings.ToLower(nm.Email),
		Role:      nm.Role,
		Status:    memberstatus.Pending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.storer.Create(ctx, mbr); err != nil {
		return Membership{}, fmt.Errorf("create: %w", err)
	}

	return mbr, nil
}

// Delete removes the specified membership from the system.
func (c *Core) Delete(ctx context.Context, mbr Membership) error {
	ctx, span := otel.AddSpan(ctx, "business.memberbus.delete")
	defer span.End()

	if err := c.storer.Delete(ctx, mbr); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	return nil
}

// QueryByID finds the membership by the specified ID.
func (c *Core) QueryByID(ctx context.Context, membershipID uuid.UUID) (Membership, error) {
	ctx, span := otel.AddSpan(ctx, "business.memberbus.queryByID")
	defer span.End()

	mbr, err := c.storer.QueryByID(ctx, membershipID)
	if err != nil {
		return Membership{}, fmt.Errorf("query: membershipID[%s]: %w", membershipID, err)
	}

	return mbr, nil
}

// QueryByHub returns the hub's memberships.
func (c *Core) QueryByHub(ctx context.Context, hubID uuid.UUID) ([]Membership, error) {
	ctx, span := otel.AddSpan(ctx, "business.memberbus.queryByHub")
	defer span.End()

	mbrs, err := c.storer.QueryByHub(ctx, hubID)
	if err != nil {
		return nil, fmt.Errorf("query by hub[%s]: %w", hubID, err)
	}

	return mbrs, nil
}

// IsGlobalAdmin reports whether the email is on the global administrator
// allow-list.
func (c *Core) IsGlobalAdmin(email string) bool {
	_, exists := c.globalAdmins[strings.ToLower(email)]
	return exists
}

// ResolveAccess resolves the caller's grant on the hub. The resolution order
// is: an already-claimed membership for the identity, then a one-shot claim
// of a pending invitation matching the email case-insensitively, then the
// global admin allow-list. Anything else is ErrNotMember.
func (c *Core) ResolveAccess(ctx context.Context, hubID uuid.UUID, identityID uuid.UUID, email string) (Access, error) {
	ctx, span := otel.AddSpan(ctx, "business.memberbus.resolveAccess")
	defer span.End()

	mbr, err := c.storer.QueryByIdentity(ctx, hubID, identityID)
	switch {
	case err == nil:
		return Access{
			MembershipID: mbr.ID,
			HubID:        hubID,
			IdentityID:   identityID,
			Role:         mbr.Role,
		}, nil

	case !errors.Is(err, ErrNotFound):
		return Access{}, fmt.Errorf("query by identity: %w", err)
	}

	mbr, err = c.storer.QueryPendingByEmail(ctx, hubID, strings.ToLower(email))
	switch {
	case err == nil:
		if err := c.claim(ctx, mbr, identityID); err != nil {
			return Access{}, err
		}
		return Access{
			MembershipID: mbr.ID,
			HubID:        hubID,
			IdentityID:   identityID,
			Role:         mbr.Role,
		}, nil

	case !errors.Is(err, ErrNotFound):
		return Access{}, fmt.Errorf("query pending by email: %w", err)
	}

	if _, exists := c.globalAdmins[strings.ToLower(email)]; exists {
		return Access{
			HubID:       hubID,
			IdentityID:  identityID,
			Role:        role.Admin,
			GlobalAdmin: true,
		}, nil
	}

	return Access{}, ErrNotMember
}

// claim flips the pending invitation to claimed. The store performs a
// guarded update so a concurrent claim of the same invitation by another
// request loses cleanly instead of double-binding.
func (c *Core) claim(ctx context.Context, mbr Membership, identityID uuid.UUID) error {
	if err := c.storer.Claim(ctx, mbr.ID, identityID, time.Now()); err != nil {
		if errors.Is(err, ErrAlreadyClaimed) {
			return ErrNotMember
		}
		return fmt.Errorf("claim: membershipID[%s]: %w", mbr.ID, err)
	}

	c.log.Info(ctx, "membership claimed", "membership_id", mbr.ID, "hub_id", mbr.HubID)

	return nil
}
