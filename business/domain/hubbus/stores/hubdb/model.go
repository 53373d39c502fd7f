package hubdb

import (
	"time"

	"github.com/dcapri/hubmirror/business/domain/hubbus"
	"github.com/google/uuid"
)

type hubDB struct {
	ID        uuid.UUID `db:"hub_id"`
	Name      string    `db:"name"`
	Slug      string    `db:"slug"`
	Workspace string    `db:"workspace"`
	Enabled   bool      `db:"enabled"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func toDBHub(bus hubbus.Hub) hubDB {
	return hubDB{
		ID:        bus.ID,
		Name:      bus.Name,
		Slug:      bus.Slug,
		Workspace: bus.Workspace,
		Enabled:   bus.Enabled,
		CreatedAt: bus.CreatedAt.UTC(),
		UpdatedAt: bus.UpdatedAt.UTC(),
	}
}

func toBusHub(db hubDB) hubbus.Hub {
	return hubbus.Hub{
		ID:        db.ID,
		Name:      db.Name,
		Slug:      db.Slug,
		Workspace: db.Workspace,
		Enabled:   db.Enabled,
		CreatedAt: db.CreatedAt.In(time.Local),
		UpdatedAt: db.UpdatedAt.In(time.Local),
	}
}

func toBusHubs(dbs []hubDB) []hubbus.Hub {
	bus := make([]hubbus.Hub, len(dbs))
	for i, db := range dbs {
		bus[i] = toBusHub(db)
	}

	return bus
}
