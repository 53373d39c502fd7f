// Package hubdb contains hub related CRUD functionality.
package hubdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/dcapri/hubmirror/business/domain/hubbus"
	"github.com/dcapri/hubmirror/business/sdk/sqldb"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store manages the set of APIs for hub database access.
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
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (hubbus.Storer, error) {
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

// Create inserts a new hub into the database.
func (s *Store) Create(ctx context.Context, h hubbus.Hub) error {
	const q = `
	INSERT INTO "public"."hubs"
		(hub_id, name, slug, workspace, enabled, created_at, updated_at)
	VALUES
		(:hub_id, :name, :slug, :workspace, :enabled, :created_at, :updated_at)`

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, toDBHub(h)); err != nil {
		var dupErr sqldb.ErrDBDuplicatedEntry
		if errors.As(err, &dupErr) {
			return fmt.Errorf("namedexeccontext: %w", hubbus.ErrUniqueSlug)
		}
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// Update replaces a hub row in the database.
func (s *Store) Update(ctx context.Context, h hubbus.Hub) error {
	const q = `
	UPDATE
		"public"."hubs"
	SET
		name = :name,
		enabled = :enabled,
		updated_at = :updated_at
	WHERE
		hub_id = :hub_id`

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, toDBHub(h)); err != nil {
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// QueryByID gets the specified hub from the database.
func (s *Store) QueryByID(ctx context.Context, hubID uuid.UUID) (hubbus.Hub, error) {
	data := struct {
		ID string `db:"hub_id"`
	}{
		ID: hubID.String(),
	}

	const q = `
	SELECT
		hub_id, name, slug, workspace, enabled, created_at, updated_at
	FROM
		"public"."hubs"
	WHERE
		hub_id = :hub_id`

	var dbHub hubDB
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbHub); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return hubbus.Hub{}, fmt.Errorf("db: %w", hubbus.ErrNotFound)
		}
		return hubbus.Hub{}, fmt.Errorf("db: %w", err)
	}

	return toBusHub(dbHub), nil
}

// QueryBySlug gets the specified hub from the database by slug.
func (s *Store) QueryBySlug(ctx context.Context, slug string) (hubbus.Hub, error) {
	data := struct {
		Slug string `db:"slug"`
	}{
		Slug: slug,
	}

	const q = `
	SELECT
		hub_id, name, slug, workspace, enabled, created_at, updated_at
	FROM
		"public"."hubs"
	WHERE
		slug = :slug`

	var dbHub hubDB
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbHub); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return hubbus.Hub{}, fmt.Errorf("db: %w", hubbus.ErrNotFound)
		}
		return hubbus.Hub{}, fmt.Errorf("db: %w", err)
	}

	return toBusHub(dbHub), nil
}

// QueryAll retrieves the list of hubs from the database.
func (s *Store) QueryAll(ctx context.Context, enabledOnly bool) ([]hubbus.Hub, error) {
	data := map[string]any{}

	const q = `
	SELECT
		hub_id, name, slug, workspace, enabled, created_at, updated_at
	FROM
		"public"."hubs"`

	buf := bytes.NewBufferString(q)
	if enabledOnly {
		buf.WriteString(" WHERE enabled = true")
	}
	buf.WriteString(" ORDER BY created_at")

	var dbHubs []hubDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, buf.String(), data, &dbHubs); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusHubs(dbHubs), nil
}
