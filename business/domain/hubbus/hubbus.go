// Package hubbus provides business access to hub domain.
package hubbus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dcapri/hubmirror/business/sdk/sqldb"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/dcapri/hubmirror/foundation/otel"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

var (
	ErrNotFound   = errors.New("hub not found")
	ErrUniqueSlug = errors.New("slug is not unique")
)

// Storer defines the behavior required by the hubbus to interact with the
// database.
type Storer interface {
	NewWithTx(tx sqldb.CommitRollbacker) (Storer, error)

	Create(ctx context.Context, h Hub) error
	Update(ctx context.Context, h Hub) error
	QueryByID(ctx context.Context, hubID uuid.UUID) (Hub, error)
	QueryBySlug(ctx context.Context, slug string) (Hub, error)
	QueryAll(ctx context.Context, enabledOnly bool) ([]Hub, error)
}

// Core manages the set of APIs for hub access.
type Core struct {
	storer Storer
	log    *logger.Logger
}

// NewCore constructs a core for hub api access.
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

// Create adds a new hub to the system.
func (c *Core) Create(ctx context.Context, nh NewHub) (Hub, error) {
	ctx, span := otel.AddSpan(ctx, "business.hubbus.create")
	defer span.End()

	now := time.Now()

	slugValue := nh.Slug
	if slugValue == "" {
		slugValue = slug.Make(nh.Name)
	}

	h := Hub{
		ID:        uuid.New(),
		Name:      nh.Name,
		Slug:      slugValue,
		Workspace: nh.Workspace,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.storer.Create(ctx, h); err != nil {
		return Hub{}, fmt.Errorf("create: %w", err)
	}

	return h, nil
}

// Update modifies data about a hub.
func (c *Core) Update(ctx context.Context, h Hub, uh UpdateHub) (Hub, error) {
	ctx, span := otel.AddSpan(ctx, "business.hubbus.update")
	defer span.End()

	if uh.Name != nil {
		h.Name = *uh.Name
	}

	if uh.Enabled != nil {
		h.Enabled = *uh.Enabled
	}

	h.UpdatedAt = time.Now()

	if err := c.storer.Update(ctx, h); err != nil {
		return Hub{}, fmt.Errorf("update: %w", err)
	}

	return h, nil
}

// Deactivate disables the hub. Hubs are never hard-deleted in the normal
// flow so mirror exposure can be restored by re-enabling.
func (c *Core) Deactivate(ctx context.Context, h Hub) (Hub, error) {
	ctx, span := otel.AddSpan(ctx, "business.hubbus.deactivate")
	defer span.End()

	disabled := false
	return c.Update(ctx, h, UpdateHub{Enabled: &disabled})
}

// QueryByID finds the hub by the specified ID.
func (c *Core) QueryByID(ctx context.Context, hubID uuid.UUID) (Hub, error) {
	ctx, span := otel.AddSpan(ctx, "business.hubbus.queryByID")
	defer span.End()

	hub, err := c.storer.QueryByID(ctx, hubID)
	if err != nil {
		return Hub{}, fmt.Errorf("query: hubID[%s]: %w", hubID, err)
	}

	return hub, nil
}

// QueryBySlug finds the hub for the specified slug string.
func (c *Core) QueryBySlug(ctx context.Context, slugStr string) (Hub, error) {
	ctx, span := otel.AddSpan(ctx, "business.hubbus.queryBySlug")
	defer span.End()

	hub, err := c.storer.QueryBySlug(ctx, slugStr)
	if err != nil {
		return Hub{}, fmt.Errorf("query by slug[%s]: %w", slugStr, err)
	}

	return hub, nil
}

// QueryAll returns the set of hubs, optionally restricted to enabled ones.
func (c *Core) QueryAll(ctx context.Context, enabledOnly bool) ([]Hub, error) {
	ctx, span := otel.AddSpan(ctx, "business.hubbus.queryAll")
	defer span.End()

	hubs, err := c.storer.QueryAll(ctx, enabledOnly)
	if err != nil {
		return nil, fmt.Errorf("query all: %w", err)
	}

	return hubs, nil
}
