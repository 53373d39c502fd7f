package memberdb

import (
	"fmt"
	"time"

	"github.com/dcapri/hubmirror/business/domain/memberbus"
	"github.com/dcapri/hubmirror/business/types/memberstatus"
	"github.com/dcapri/hubmirror/business/types/role"
	"github.com/google/uuid"
)

type membershipDB struct {
	ID         uuid.UUID  `db:"membership_id"`
	HubID      uuid.UUID  `db:"hub_id"`
	IdentityID *uuid.UUID `db:"identity_id"`
	Email      string     `db:"email"`
	Role       string     `db:"role"`
	Status     string     `db:"status"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

func toDBMembership(bus memberbus.Membership) membershipDB {
	return membershipDB{
		ID:         bus.ID,
		HubID:      bus.HubID,
		IdentityID: bus.IdentityID,
		Email:      bus.Email,
		Role:       bus.Role.String(),
		Status:     bus.Status.String(),
		CreatedAt:  bus.CreatedAt.UTC(),
		UpdatedAt:  bus.UpdatedAt.UTC(),
	}
}

func toBusMembership(db membershipDB) (memberbus.Membership, error) {
	r, err := role.Parse(db.Role)
	if err != nil {
		return memberbus.Membership{}, fmt.Errorf("parse role: %w", err)
	}

	status, err := memberstatus.Parse(db.Status)
	if err != nil {
		return memberbus.Membership{}, fmt.Errorf("parse status: %w", err)
	}

	return memberbus.Membership{
		ID:         db.ID,
		HubID:      db.HubID,
		IdentityID: db.IdentityID,
		Email:      db.Email,
		Role:       r,
		Status:     status,
		CreatedAt:  db.CreatedAt.In(time.Local),
		UpdatedAt:  db.UpdatedAt.In(time.Local),
	}, nil
}

func toBusMemberships(dbs []membershipDB) ([]memberbus.Membership, error) {
	bus := make([]memberbus.Membership, len(dbs))

	for i, db := range dbs {
		var err error
		bus[i], err = toBusMembership(db)
		if err != nil {
			return nil, err
		}
	}

	return bus, nil
}
