// Package webhookdb contains webhook subscription CRUD functionality.
package webhookdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/dcapri/hubmirror/business/domain/webhookbus"
	"github.com/dcapri/hubmirror/business/sdk/sqldb"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store manages the set of APIs for subscription database access.
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

// Create inserts a new subscription into the database.
func (s *Store) Create(ctx context.Context, sub webhookbus.Subscription) error {
	const q = `
	INSERT INTO "public"."webhook_subscriptions"
		(subscription_id, label, secret, enabled, created_at, updated_at)
	VALUES
		(:subscription_id, :label, :secret, :enabled, :created_at, :updated_at)`

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, toDBSubscription(sub)); err != nil {
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// Delete removes a subscription from the database.
func (s *Store) Delete(ctx context.Context, sub webhookbus.Subscription) error {
	const q = `
	DELETE FROM
		"public"."webhook_subscriptions"
	WHERE
		subscription_id = :subscription_id`

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, toDBSubscription(sub)); err != nil {
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// QueryByID gets the specified subscription from the database.
func (s *Store) QueryByID(ctx context.Context, subID uuid.UUID) (webhookbus.Subscription, error) {
	data := struct {
		ID uuid.UUID `db:"subscription_id"`
	}{
		ID: subID,
	}

	const q = `
	SELECT
		subscription_id, label, secret, enabled, created_at, updated_at
	FROM
		"public"."webhook_subscriptions"
	WHERE
		subscription_id = :subscription_id`

	var dbSub subscriptionDB
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbSub); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return webhookbus.Subscription{}, fmt.Errorf("db: %w", webhookbus.ErrNotFound)
		}
		return webhookbus.Subscription{}, fmt.Errorf("db: %w", err)
	}

	return toBusSubscription(dbSub), nil
}

// QueryAllActive retrieves every active subscription.
func (s *Store) QueryAllActive(ctx context.Context) ([]webhookbus.Subscription, error) {
	data := map[string]any{}

	const q = `
	SELECT
		subscription_id, label, secret, enabled, created_at, updated_at
	FROM
		"public"."webhook_subscriptions"
	WHERE
		enabled = true
	ORDER BY
		created_at`

	var dbSubs []subscriptionDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, data, &dbSubs); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusSubscriptions(dbSubs), nil
}
