// Package mappingbus provides business access to the team mapping domain.
// The active mapping set is the access-control source of truth for both
// webhook ingestion and the tenant-scoped read layer.
package mappingbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dcapri/hubmirror/business/sdk/sqldb"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/dcapri/hubmirror/foundation/otel"
	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("team mapping not found")
	ErrTeamMapped = errors.New("team is already mapped to a hub")
)

// Storer defines the behavior required by the mappingbus to interact with
// the database. The production wiring decorates the database store with a
// TTL cache whose mutation methods invalidate synchronously; callers must
// never mutate mappings through any other path.
type Storer interface {
	NewWithTx(tx sqldb.CommitRollbacker) (Storer, error)

	Create(ctx context.Context, tm TeamMapping) error
	Update(ctx context.Context, tm TeamMapping) error
	Delete(ctx context.Context, tm TeamMapping) error
	QueryByID(ctx context.Context, mappingID uuid.UUID) (TeamMapping, error)
	QueryActiveByHub(ctx context.Context, hubID uuid.UUID) ([]TeamMapping, error)
	QueryActiveByTeam(ctx context.Context, teamID string) ([]TeamMapping, error)
	QueryAllActive(ctx context.Context) ([]TeamMapping, error)
}

// Core manages the set of APIs for team mapping access.
type Core struct {
	storer Storer
	log    *logger.Logger
}

// NewCore constructs a core for mapping api access.
func NewCore(log *logger.Logger, storer Storer) *Core {
	return &Core{
		storer: storer,
		log:    log,
	}
}

// NewWithTx constructs a new Core value replacing the Storer
// value with a Storer value that is currently inside a transaction.
func (c *Core) NewWithTx(tx sqldb.CommitRollbacker) (*Core, error) {
	storer, err := c.storer.NewWithTx(tx)
	if err != nil {
		return nil, fmt.Errorf("newWithTx: %w", err)
	}

	return NewCore(c.log, storer), nil
}

// Create adds a new mapping to the system. An upstream team can be actively
// mapped to at most one hub, enforced here at mutation time.
func (c *Core) Create(ctx context.Context, nm NewTeamMapping) (TeamMapping, error) {
	ctx, span := otel.AddSpan(ctx, "business.mappingbus.create")
	defer span.End()

	existing, err := c.storer.QueryActiveByTeam(ctx, nm.TeamID)
	if err != nil {
		return TeamMapping{}, fmt.Errorf("query active by team: %w", err)
	}
	if len(existing) > 0 {
		return TeamMapping{}, ErrTeamMapped
	}

	now := time.Now()

	tm := TeamMapping{
		ID:             uuid.New(),
		HubID:          nm.HubID,
		TeamID:         nm.TeamID,
		Enabled:        true,
		ProjectIDs:     nm.ProjectIDs,
		InitiativeIDs:  nm.InitiativeIDs,
		LabelIDs:       nm.LabelIDs,
		DeniedLabelIDs: nm.DeniedLabelIDs,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := c.storer.Create(ctx, tm); err != nil {
		return TeamMapping{}, fmt.Errorf("create: %w", err)
	}

	return tm, nil
}

// Update modifies visibility or active state of a mapping.
func (c *Core) Update(ctx context.Context, tm TeamMapping, um UpdateTeamMapping) (TeamMapping, error) {
	ctx, span := otel.AddSpan(ctx, "business.mappingbus.update")
	defer span.End()

	if um.Enabled != nil {
		if *um.Enabled && !tm.Enabled {
			existing, err := c.storer.QueryActiveByTeam(ctx, tm.TeamID)
			if err != nil {
				return TeamMapping{}, fmt.Errorf("query active by team: %w", err)
			}
			for _, other := range existing {
				if other.ID != tm.ID {
					return TeamMapping{}, ErrTeamMapped
				}
			}
		}
		tm.Enabled = *um.Enabled
	}

	if um.ProjectIDs != nil {
		tm.ProjectIDs = *um.ProjectIDs
	}

	if um.InitiativeIDs != nil {
		tm.InitiativeIDs = *um.InitiativeIDs
	}

	if um.LabelIDs != nil {
		tm.LabelIDs = *um.LabelIDs
	}

	if um.DeniedLabelIDs != nil {
		tm.DeniedLabelIDs = *um.DeniedLabelIDs
	}

	tm.UpdatedAt = time.Now()

	if err := c.storer.Update(ctx, tm); err != nil {
		return TeamMapping{}, fmt.Errorf("update: %w", err)
	}

	return tm, nil
}

// Delete removes the specified mapping from the system.
func (c *Core) Delete(ctx context.Context, tm TeamMapping) error {
	ctx, span := otel.AddSpan(ctx, "business.mappingbus.delete")
	defer span.End()

	if err := c.storer.Delete(ctx, tm); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	return nil
}

// QueryByID finds the mapping by the specified ID.
func (c *Core) QueryByID(ctx context.Context, mappingID uuid.UUID) (TeamMapping, error) {
	ctx, span := otel.AddSpan(ctx, "business.mappingbus.queryByID")
	defer span.End()

	tm, err := c.storer.QueryByID(ctx, mappingID)
	if err != nil {
		return TeamMapping{}, fmt.Errorf("query: mappingID[%s]: %w", mappingID, err)
	}

	return tm, nil
}

// QueryActiveByHub returns the hub's active mappings. This set defines what
// the hub may read from the mirror.
func (c *Core) QueryActiveByHub(ctx context.Context, hubID uuid.UUID) ([]TeamMapping, error) {
	ctx, span := otel.AddSpan(ctx, "business.mappingbus.queryActiveByHub")
	defer span.End()

	tms, err := c.storer.QueryActiveByHub(ctx, hubID)
	if err != nil {
		return nil, fmt.Errorf("query active by hub[%s]: %w", hubID, err)
	}

	return tms, nil
}

// QueryAllActive returns every active mapping across hubs.
func (c *Core) QueryAllActive(ctx context.Context) ([]TeamMapping, error) {
	ctx, span := otel.AddSpan(ctx, "business.mappingbus.queryAllActive")
	defer span.End()

	tms, err := c.storer.QueryAllActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("query all active: %w", err)
	}

	return tms, nil
}

// TrackedHubs returns the hub ids the specified upstream team is actively
// mapped to. Normally zero or one.
func (c *Core) TrackedHubs(ctx context.Context, teamID string) ([]uuid.UUID, error) {
	ctx, span := otel.AddSpan(ctx, "business.mappingbus.trackedHubs")
	defer span.End()

	tms, err := c.storer.QueryActiveByTeam(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("query active by team[%s]: %w", teamID, err)
	}

	hubIDs := make([]uuid.UUID, len(tms))
	for i, tm := range tms {
		hubIDs[i] = tm.HubID
	}

	return hubIDs, nil
}

// IsTeamTracked reports whether the upstream team is actively mapped to any
// hub. Webhook ingestion drops events for untracked teams.
func (c *Core) IsTeamTracked(ctx context.Context, teamID string) (bool, error) {
	hubIDs, err := c.TrackedHubs(ctx, teamID)
	if err != nil {
		return false, err
	}

	return len(hubIDs) > 0, nil
}
