// Package mappingdb contains team mapping related CRUD functionality.
package mappingdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/dcapri/hubmirror/business/sdk/sqldb"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store manages the set of APIs for mapping database access.
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
func (s *Store) NewWithTx(tx sqldb.CommitRollbacker) (mappingbus.Storer, error) {
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

// Create inserts a new mapping into the database.
func (s *Store) Create(ctx context.Context, tm mappingbus.TeamMapping) error {
	const q = `
	INSERT INTO "public"."team_mappings"
		(mapping_id, hub_id, team_id, enabled, project_ids, initiative_ids, label_ids, denied_label_ids, created_at, updated_at)
	VALUES
		(:mapping_id, :hub_id, :team_id, :enabled, :project_ids, :initiative_ids, :label_ids, :denied_label_ids, :created_at, :updated_at)`

	dbTm, err := toDBMapping(tm)
	if err != nil {
		return fmt.Errorf("todbmapping: %w", err)
	}

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, dbTm); err != nil {
		var dupErr sqldb.ErrDBDuplicatedEntry
		if errors.As(err, &dupErr) {
			return fmt.Errorf("namedexeccontext: %w", mappingbus.ErrTeamMapped)
		}
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// Update replaces a mapping row in the database.
func (s *Store) Update(ctx context.Context, tm mappingbus.TeamMapping) error {
	const q = `
	UPDATE
		"public"."team_mappings"
	SET
		enabled = :enabled,
		project_ids = :project_ids,
		initiative_ids = :initiative_ids,
		label_ids = :label_ids,
		denied_label_ids = :denied_label_ids,
		updated_at = :updated_at
	WHERE
		mapping_id = :mapping_id`

	dbTm, err := toDBMapping(tm)
	if err != nil {
		return fmt.Errorf("todbmapping: %w", err)
	}

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, dbTm); err != nil {
		var dupErr sqldb.ErrDBDuplicatedEntry
		if errors.As(err, &dupErr) {
			return fmt.Errorf("namedexeccontext: %w", mappingbus.ErrTeamMapped)
		}
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// Delete removes a mapping from the database.
func (s *Store) Delete(ctx context.Context, tm mappingbus.TeamMapping) error {
	const q = `
	DELETE FROM
		"public"."team_mappings"
	WHERE
		mapping_id = :mapping_id`

	dbTm, err := toDBMapping(tm)
	if err != nil {
		return fmt.Errorf("todbmapping: %w", err)
	}

	if err := sqldb.NamedExecContext(ctx, s.log, s.db, q, dbTm); err != nil {
		return fmt.Errorf("namedexeccontext: %w", err)
	}

	return nil
}

// QueryByID gets the specified mapping from the database.
func (s *Store) QueryByID(ctx context.Context, mappingID uuid.UUID) (mappingbus.TeamMapping, error) {
	data := struct {
		ID string `db:"mapping_id"`
	}{
		ID: mappingID.String(),
	}

	const q = `
	SELECT
		mapping_id, hub_id, team_id, enabled, project_ids, initiative_ids, label_ids, denied_label_ids, created_at, updated_at
	FROM
		"public"."team_mappings"
	WHERE
		mapping_id = :mapping_id`

	var dbTm mappingDB
	if err := sqldb.NamedQueryStruct(ctx, s.log, s.db, q, data, &dbTm); err != nil {
		if errors.Is(err, sqldb.ErrDBNotFound) {
			return mappingbus.TeamMapping{}, fmt.Errorf("db: %w", mappingbus.ErrNotFound)
		}
		return mappingbus.TeamMapping{}, fmt.Errorf("db: %w", err)
	}

	return toBusMapping(dbTm)
}

// QueryActiveByHub retrieves the hub's active mappings.
func (s *Store) QueryActiveByHub(ctx context.Context, hubID uuid.UUID) ([]mappingbus.TeamMapping, error) {
	data := struct {
		HubID string `db:"hub_id"`
	}{
		HubID: hubID.String(),
	}

	const q = `
	SELECT
		mapping_id, hub_id, team_id, enabled, project_ids, initiative_ids, label_ids, denied_label_ids, created_at, updated_at
	FROM
		"public"."team_mappings"
	WHERE
		hub_id = :hub_id AND enabled = true
	ORDER BY
		created_at`

	var dbTms []mappingDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, data, &dbTms); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusMappings(dbTms)
}

// QueryActiveByTeam retrieves the active mappings for an upstream team.
func (s *Store) QueryActiveByTeam(ctx context.Context, teamID string) ([]mappingbus.TeamMapping, error) {
	data := struct {
		TeamID string `db:"team_id"`
	}{
		TeamID: teamID,
	}

	const q = `
	SELECT
		mapping_id, hub_id, team_id, enabled, project_ids, initiative_ids, label_ids, denied_label_ids, created_at, updated_at
	FROM
		"public"."team_mappings"
	WHERE
		team_id = :team_id AND enabled = true`

	var dbTms []mappingDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, data, &dbTms); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusMappings(dbTms)
}

// QueryAllActive retrieves every active mapping.
func (s *Store) QueryAllActive(ctx context.Context) ([]mappingbus.TeamMapping, error) {
	data := map[string]any{}

	const q = `
	SELECT
		mapping_id, hub_id, team_id, enabled, project_ids, initiative_ids, label_ids, denied_label_ids, created_at, updated_at
	FROM
		"public"."team_mappings"
	WHERE
		enabled = true
	ORDER BY
		created_at`

	var dbTms []mappingDB
	if err := sqldb.NamedQuerySlice(ctx, s.log, s.db, q, data, &dbTms); err != nil {
		return nil, fmt.Errorf("namedqueryslice: %w", err)
	}

	return toBusMappings(dbTms)
}
