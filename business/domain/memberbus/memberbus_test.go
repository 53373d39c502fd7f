package memberbus_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/dcapri/hubmirror/business/domain/memberbus"
	"github.com/dcapri/hubmirror/business/sdk/sqldb"
	"github.com/dcapri/hubmirror/business/types/memberstatus"
	"github.com/dcapri/hubmirror/business/types/role"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	memberships map[uuid.UUID]memberbus.Membership

	// claimErr overrides the guarded claim outcome to simulate a lost race.
	claimErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{memberships: make(map[uuid.UUID]memberbus.Membership)}
}

func (s *fakeStore) NewWithTx(tx sqldb.CommitRollbacker) (memberbus.Storer, error) {
	return s, nil
}

func (s *fakeStore) Create(_ context.Context, mbr memberbus.Membership) error {
	for _, other := range s.memberships {
		if other.HubID == mbr.HubID && other.Email == mbr.Email {
			return memberbus.ErrAlreadyInvited
		}
	}
	s.memberships[mbr.ID] = mbr
	return nil
}

func (s *fakeStore) Delete(_ context.Context, mbr memberbus.Membership) error {
	delete(s.memberships, mbr.ID)
	return nil
}

func (s *fakeStore) Claim(_ context.Context, membershipID uuid.UUID, identityID uuid.UUID, now time.Time) error {
	if s.claimErr != nil {
		return s.claimErr
	}

	mbr, exists := s.memberships[membershipID]
	if !exists || !mbr.Status.Equal(memberstatus.Pending) {
		return memberbus.ErrAlreadyClaimed
	}

	mbr.IdentityID = &identityID
	mbr.Status = memberstatus.Claimed
	mbr.UpdatedAt = now
	s.memberships[membershipID] = mbr

	return nil
}

func (s *fakeStore) QueryByID(_ context.Context, membershipID uuid.UUID) (memberbus.Membership, error) {
	mbr, exists := s.memberships[membershipID]
	if !exists {
		return memberbus.Membership{}, memberbus.ErrNotFound
	}
	return mbr, nil
}

func (s *fakeStore) QueryByIdentity(_ context.Context, hubID uuid.UUID, identityID uuid.UUID) (memberbus.Membership, error) {
	for _, mbr := range s.memberships {
		if mbr.HubID == hubID && mbr.Status.Equal(memberstatus.Claimed) &&
			mbr.IdentityID != nil && *mbr.IdentityID == identityID {
			return mbr, nil
		}
	}
	return memberbus.Membership{}, memberbus.ErrNotFound
}

func (s *fakeStore) QueryPendingByEmail(_ context.Context, hubID uuid.UUID, email string) (memberbus.Membership, error) {
	for _, mbr := range s.memberships {
		if mbr.HubID == hubID && mbr.Status.Equal(memberstatus.Pending) && mbr.Email == email {
			return mbr, nil
		}
	}
	return memberbus.Membership{}, memberbus.ErrNotFound
}

func (s *fakeStore) QueryByHub(_ context.Context, hubID uuid.UUID) ([]memberbus.Membership, error) {
	var mbrs []memberbus.Membership
	for _, mbr := range s.memberships {
		if mbr.HubID == hubID {
			mbrs = append(mbrs, mbr)
		}
	}
	return mbrs, nil
}

func testLog() *logger.Logger {
	return logger.New(io.Discard, logger.LevelInfo, "TEST", nil)
}

func TestInviteNormalizesEmail(t *testing.T) {
	ctx := context.Background()
	core := memberbus.NewCore(testLog(), newFakeStore(), nil)

	mbr, err := core.Invite(ctx, memberbus.NewMembership{
		HubID: uuid.New(),
		Email: "Casey@Example.COM",
		Role:  role.Member,
	})
	require.NoError(t, err)

	assert.Equal(t, "casey@example.com", mbr.Email)
	assert.True(t, mbr.Status.Equal(memberstatus.Pending))
	assert.Nil(t, mbr.IdentityID)
}

func TestResolveAccessClaimedMembership(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	core := memberbus.NewCore(testLog(), store, nil)

	hubID := uuid.New()
	identityID := uuid.New()

	mbr, err := core.Invite(ctx, memberbus.NewMembership{HubID: hubID, Email: "casey@example.com", Role: role.Admin})
	require.NoError(t, err)
	require.NoError(t, store.Claim(ctx, mbr.ID, identityID, time.Now()))

	access, err := core.ResolveAccess(ctx, hubID, identityID, "casey@example.com")
	require.NoError(t, err)

	assert.Equal(t, mbr.ID, access.MembershipID)
	assert.True(t, access.Role.Equal(role.Admin))
	assert.False(t, access.GlobalAdmin)
}

func TestResolveAccessOneShotClaim(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	core := memberbus.NewCore(testLog(), store, nil)

	hubID := uuid.New()
	identityID := uuid.New()

	mbr, err := core.Invite(ctx, memberbus.NewMembership{HubID: hubID, Email: "casey@example.com", Role: role.Member})
	require.NoError(t, err)

	// First request with a matching email binds the identity. Email match
	// is case-insensitive.
	access, err := core.ResolveAccess(ctx, hubID, identityID, "Casey@Example.com")
	require.NoError(t, err)
	assert.Equal(t, mbr.ID, access.MembershipID)

	claimed := store.memberships[mbr.ID]
	require.NotNil(t, claimed.IdentityID)
	assert.Equal(t, identityID, *claimed.IdentityID)
	assert.True(t, claimed.Status.Equal(memberstatus.Claimed))

	// The binding is permanent: the same identity resolves through the
	// claimed membership, a different identity with the same email does not.
	_, err = core.ResolveAccess(ctx, hubID, identityID, "casey@example.com")
	require.NoError(t, err)

	_, err = core.ResolveAccess(ctx, hubID, uuid.New(), "casey@example.com")
	assert.ErrorIs(t, err, memberbus.ErrNotMember)
}

func TestResolveAccessLostClaimRace(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	core := memberbus.NewCore(testLog(), store, nil)

	hubID := uuid.New()

	_, err := core.Invite(ctx, memberbus.NewMembership{HubID: hubID, Email: "casey@example.com", Role: role.Member})
	require.NoError(t, err)

	// The guarded update reports the invitation was taken between the read
	// and the write. The caller gets a clean denial, not an error.
	store.claimErr = memberbus.ErrAlreadyClaimed

	_, err = core.ResolveAccess(ctx, hubID, uuid.New(), "casey@example.com")
	assert.ErrorIs(t, err, memberbus.ErrNotMember)
}

func TestResolveAccessGlobalAdmin(t *testing.T) {
	ctx := context.Background()
	core := memberbus.NewCore(testLog(), newFakeStore(), []string{"Root@Example.com"})

	hubID := uuid.New()
	identityID := uuid.New()

	access, err := core.ResolveAccess(ctx, hubID, identityID, "root@example.COM")
	require.NoError(t, err)

	assert.True(t, access.GlobalAdmin)
	assert.True(t, access.Role.Equal(role.Admin))
	assert.Equal(t, uuid.UUID{}, access.MembershipID)
	assert.True(t, access.CanWrite())
}

func TestResolveAccessNonMember(t *testing.T) {
	ctx := context.Background()
	core := memberbus.NewCore(testLog(), newFakeStore(), nil)

	_, err := core.ResolveAccess(ctx, uuid.New(), uuid.New(), "stranger@example.com")
	assert.ErrorIs(t, err, memberbus.ErrNotMember)
}

func TestAccessCanWrite(t *testing.T) {
	assert.True(t, memberbus.Access{Role: role.Admin}.CanWrite())
	assert.True(t, memberbus.Access{Role: role.Member}.CanWrite())
	assert.False(t, memberbus.Access{Role: role.Viewer}.CanWrite())
}
