package webhookdb

import (
	"time"

	"github.com/dcapri/hubmirror/business/domain/webhookbus"
	"github.com/google/uuid"
)

type subscriptionDB struct {
	ID        uuid.UUID `db:"subscription_id"`
	Label     string    `db:"label"`
	Secret    string    `db:"secret"`
	Enabled   bool      `db:"enabled"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func toDBSubscription(bus webhookbus.Subscription) subscriptionDB {
	return subscriptionDB{
		ID:        bus.ID,
		Label:     bus.Label,
		Secret:    bus.Secret,
		Enabled:   bus.Enabled,
		CreatedAt: bus.CreatedAt.UTC(),
		UpdatedAt: bus.UpdatedAt.UTC(),
	}
}

func toBusSubscription(db subscriptionDB) webhookbus.Subscription {
	return webhookbus.Subscription{
		ID:        db.ID,
		Label:     db.Label,
		Secret:    db.Secret,
		Enabled:   db.Enabled,
		CreatedAt: db.CreatedAt.In(time.Local),
		UpdatedAt: db.UpdatedAt.In(time.Local),
	}
}

func toBusSubscriptions(dbs []subscriptionDB) []webhookbus.Subscription {
	bus := make([]webhookbus.Subscription, len(dbs))
	for i, db := range dbs {
		bus[i] = toBusSubscription(db)
	}

	return bus
}
