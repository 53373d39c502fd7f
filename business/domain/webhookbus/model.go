package webhookbus

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Subscription is one webhook signing registration. More than one can be
// active at a time during secret rotation, and verification must tolerate
// zero or many.
type Subscription struct {
	ID        uuid.UUID
	Label     string
	Secret    string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSubscription contains information needed to register a webhook. An
// empty Secret asks the core to generate one.
type NewSubscription struct {
	Label  string
	Secret string
}

// Event is the decoded webhook delivery envelope.
type Event struct {
	Action    string          `json:"action"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"createdAt"`
	WebhookID string          `json:"webhookId"`
}
