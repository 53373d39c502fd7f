package mappingdb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/google/uuid"
)

type mappingDB struct {
	ID             uuid.UUID `db:"mapping_id"`
	HubID          uuid.UUID `db:"hub_id"`
	TeamID         string    `db:"team_id"`
	Enabled        bool      `db:"enabled"`
	ProjectIDs     []byte    `db:"project_ids"`
	InitiativeIDs  []byte    `db:"initiative_ids"`
	LabelIDs       []byte    `db:"label_ids"`
	DeniedLabelIDs []byte    `db:"denied_label_ids"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func toDBMapping(bus mappingbus.TeamMapping) (mappingDB, error) {
	projectIDs, err := toDBIDs(bus.ProjectIDs)
	if err != nil {
		return mappingDB{}, fmt.Errorf("project ids: %w", err)
	}

	initiativeIDs, err := toDBIDs(bus.InitiativeIDs)
	if err != nil {
		return mappingDB{}, fmt.Errorf("initiative ids: %w", err)
	}

	labelIDs, err := toDBIDs(bus.LabelIDs)
	if err != nil {
		return mappingDB{}, fmt.Errorf("label ids: %w", err)
	}

	deniedLabelIDs, err := toDBIDs(bus.DeniedLabelIDs)
	if err != nil {
		return mappingDB{}, fmt.Errorf("denied label ids: %w", err)
	}

	return mappingDB{
		ID:             bus.ID,
		HubID:          bus.HubID,
		TeamID:         bus.TeamID,
		Enabled:        bus.Enabled,
		ProjectIDs:     projectIDs,
		InitiativeIDs:  initiativeIDs,
		LabelIDs:       labelIDs,
		DeniedLabelIDs: deniedLabelIDs,
		CreatedAt:      bus.CreatedAt.UTC(),
		UpdatedAt:      bus.UpdatedAt.UTC(),
	}, nil
}

func toBusMapping(db mappingDB) (mappingbus.TeamMapping, error) {
	projectIDs, err := toBusIDs(db.ProjectIDs)
	if err != nil {
		return mappingbus.TeamMapping{}, fmt.Errorf("project ids: %w", err)
	}

	initiativeIDs, err := toBusIDs(db.InitiativeIDs)
	if err != nil {
		return mappingbus.TeamMapping{}, fmt.Errorf("initiative ids: %w", err)
	}

	labelIDs, err := toBusIDs(db.LabelIDs)
	if err != nil {
		return mappingbus.TeamMapping{}, fmt.Errorf("label ids: %w", err)
	}

	deniedLabelIDs, err := toBusIDs(db.DeniedLabelIDs)
	if err != nil {
		return mappingbus.TeamMapping{}, fmt.Errorf("denied label ids: %w", err)
	}

	return mappingbus.TeamMapping{
		ID:             db.ID,
		HubID:          db.HubID,
		TeamID:         db.TeamID,
		Enabled:        db.Enabled,
		ProjectIDs:     projectIDs,
		InitiativeIDs:  initiativeIDs,
		LabelIDs:       labelIDs,
		DeniedLabelIDs: deniedLabelIDs,
		CreatedAt:      db.CreatedAt.In(time.Local),
		UpdatedAt:      db.UpdatedAt.In(time.Local),
	}, nil
}

func toBusMappings(dbs []mappingDB) ([]mappingbus.TeamMapping, error) {
	bus := make([]mappingbus.TeamMapping, len(dbs))

	for i, db := range dbs {
		var err error
		bus[i], err = toBusMapping(db)
		if err != nil {
			return nil, err
		}
	}

	return bus, nil
}

// Visibility lists persist as JSONB. An empty list is stored as [] so the
// unrestricted case round-trips unambiguously.
func toDBIDs(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(ids)
}

func toBusIDs(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, nil
	}

	return ids, nil
}
