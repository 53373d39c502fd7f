package hubbus

import (
	"time"

	"github.com/google/uuid"
)

// Hub represents an isolated client organization granted a filtered view of
// the shared mirror.
type Hub struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	Workspace string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewHub contains information needed to create a new hub. The slug is
// derived from the name when not provided.
type NewHub struct {
	Name      string
	Slug      string
	Workspace string
}

// UpdateHub contains information needed to update a hub. Deactivation is
// the soft form of deletion: a disabled hub fails closed on every
// tenant-facing entry point.
type UpdateHub struct {
	Name    *string
	Enabled *bool
}
