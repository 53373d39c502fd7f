// Package memberdb contains membership related CRUD functionality.
package memberdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dcapri/hubmirror/business/domain/memberbus"
	"github.com/dcapri/hubmirror/business/sdk/sqldb"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store manages the set of APIs for membership database access.
type Store struct {
	log *logger.Logger
	db  sqlx.ExtContext
}

// NewStore constructs the api for data access.
func NewStore(log *logger.Logger, db *sqlx.DB) *Store {
	return &Store{
		log: log,
		db:  db,
	}
}

// NewWithTx constructs a new Store value replacing the sqlx DB
// value with a sqlx DB value that is currently inside a transaction.
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (memberbus.Storer, error) {
	ec, err := sqldb.GetExtContext(tx)
	if err != nil {
		return nil, err
	}

	store := Store{
		log: s.log,
		db:  ec,
	}

	return &store, nil
}

// Create inserts a new membership into the database.
func (s *Store) Create(ctx context.Context, mbr memberbus.Membership) error {
	const q = `
	INSERT INTO "public"."memberships"
		(membership_id, hub_id, identity_id, email, role, status, created_at, updated_at)
	VALUES
		(:membership_id, :hub_id, :identity_id, :email, :role, :status, :created_at, :updated_at)`

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, toDBMembership(mbr)); err != nil {
		var dupErr sqldb.ErrDBDuplicatedEntry
		if errors.As(err, &dupErr) {
			return fmt.Errorf("namedexeccontext: %w", memberbus.ErrAlreadyInvited)
		}
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// Delete removes a membership from the database.
func (s *Store) Delete(ctx context.Context, mbr memberbus.Membership) error {
	const q = `
	DELETE FROM
		"public"."memberships"
	WHERE
		membership_id = :membership_id`

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, toDBMembership(mbr)); err != nil {
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// Claim binds a pending membership to the identity. The status guard in the
// WHERE clause makes the claim one-shot under concurrency: the second caller
// matches zero rows and gets ErrAlreadyClaimed.
func (s *Store) Claim(ctx context.Context, membershipID uuid.UUID, identityID uuid.UUID, now time.Time) error {
	data := struct {
		ID         uuid.UUID `db:"membership_id"`
		IdentityID uuid.UUID `db:"identity_id"`
		UpdatedAt  time.Time `db:"updated_at"`
	}{
		ID:         membershipID,
		IdentityID: identityID,
		UpdatedAt:  now.UTC(),
	}

	const q = `
	UPDATE
		"public"."memberships"
	SET
		identity_id = :identity_id,
		status = 'CLAIMED',
		updated_at = :updated_at
	WHERE
		membership_id = :membership_id AND status = 'PENDING'
	RETURNING membership_id`

	var out struct {
		ID uuid.UUID `db:"membership_id"`
	}

	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &out); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return memberbus.ErrAlreadyClaimed
		}
		return fmt.Errorf("namedquerystruct: %w", err)
	}

	return nil
}

// QueryByID gets the specified membership from the database.
func (s *Store) QueryByID(ctx context.Context, membershipID uuid.UUID) (memberbus.Membership, error) {
	data := struct {
		ID uuid.UUID `db:"membership_id"`
	}{
		ID: membershipID,
	}

	const q = `
	SELECT
		membership_id, hub_id, identity_id, email, role, status, created_at, updated_at
	FROM
		"public"."memberships"
	WHERE
		membership_id = :membership_id`

	var dbMbr membershipDB
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbMbr); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return memberbus.Membership{}, fmt.Errorf("db: %w", memberbus.ErrNotFound)
		}
		return memberbus.Membership{}, fmt.Errorf("db: %w", err)
	}

	return toBusMembership(dbMbr)
}

// QueryByIdentity gets the claimed membership the identity holds on the hub.
func (s *Store) QueryByIdentity(ctx context.Context, hubID uuid.UUID, identityID uuid.UUID) (memberbus.Membership, error) {
	data := struct {
		HubID      uuid.UUID `db:"hub_id"`
		IdentityID uuid.UUID `db:"identity_id"`
	}{
		HubID:      hubID,
		IdentityID: identityID,
	}

	const q = `
	SELECT
		membership_id, hub_id, identity_id, email, role, status, created_at, updated_at
	FROM
		"public"."memberships"
	WHERE
		hub_id = :hub_id AND identity_id = :identity_id AND status = 'CLAIMED'`

	var dbMbr membershipDB
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbMbr); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return memberbus.Membership{}, fmt.Errorf("db: %w", memberbus.ErrNotFound)
		}
		return memberbus.Membership{}, fmt.Errorf("db: %w", err)
	}

	return toBusMembership(dbMbr)
}

// QueryPendingByEmail gets a pending invitation on the hub for the email.
// The email column is stored lowercased so the match is case-insensitive.
func (s *Store) QueryPendingByEmail(ctx context.Context, hubID uuid.UUID, email string) (memberbus.Membership, error) {
	data := struct {
		HubID uuid.UUID `db:"hub_id"`
		Email string    `db:"email"`
	}{
		HubID: hubID,
		Email: email,
	}

	const q = `
	SELECT
		membership_id, hub_id, identity_id, email, role, status, created_at, updated_at
	FROM
		"public"."memberships"
	WHERE
		hub_id = :hub_id AND email = :email AND status = 'PENDING'`

	var dbMbr membershipDB
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbMbr); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return memberbus.Membership{}, fmt.Errorf("db: %w", memberbus.ErrNotFound)
		}
		return memberbus.Membership{}, fmt.Errorf("db: %w", err)
	}

	return toBusMembership(dbMbr)
}

// QueryByHub retrieves the hub's memberships.
func (s *Store) QueryByHub(ctx context.Context, hubID uuid.UUID) ([]memberbus.Membership, error) {
	data := struct {
		HubID uuid.UUID `db:"hub_id"`
	}{
		HubID: hubID,
	}

	const q = `
	SELECT
		membership_id, hub_id, identity_id, email, role, status, created_at, updated_at
	FROM
		"public"."memberships"
	WHERE
		hub_id = :hub_id
	ORDER BY
		created_at`

	var dbMbrs []membershipDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, data, &dbMbrs); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusMemberships(dbMbrs)
}
