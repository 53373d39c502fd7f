package hubapp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dcapri/hubmirror/app/sdk/errs"
	"github.com/dcapri/hubmirror/business/domain/hubbus"
	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/dcapri/hubmirror/business/domain/memberbus"
	"github.com/dcapri/hubmirror/business/domain/webhookbus"
	"github.com/dcapri/hubmirror/business/types/role"
	"github.com/google/uuid"
)

// =============================================================================
// Hub

// Hub represents a client organization.
type Hub struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Workspace   string `json:"workspace"`
	Enabled     bool   `json:"enabled"`
	DateCreated string `json:"dateCreated"`
	DateUpdated string `json:"dateUpdated"`
}

// Encode implements the web.Encoder interface.
func (app Hub) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

func toAppHub(bus hubbus.Hub) Hub {
	return Hub{
		ID:          bus.ID.String(),
		Name:        bus.Name,
		Slug:        bus.Slug,
		Workspace:   bus.Workspace,
		Enabled:     bus.Enabled,
		DateCreated: bus.CreatedAt.Format(time.RFC3339),
		DateUpdated: bus.UpdatedAt.Format(time.RFC3339),
	}
}

// Hubs wraps the hub list for encoding.
type Hubs []Hub

// Encode implements the web.Encoder interface.
func (app Hubs) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

func toAppHubs(hubs []hubbus.Hub) Hubs {
	app := make(Hubs, len(hubs))
	for i, hub := range hubs {
		app[i] = toAppHub(hub)
	}
	return app
}

// NewHub defines the data needed to create a hub.
type NewHub struct {
	Name      string `json:"name" validate:"required,min=3"`
	Slug      string `json:"slug"`
	Workspace string `json:"workspace" validate:"required"`
}

// Decode implements the decoder interface.
func (app *NewHub) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app NewHub) Validate() error {
	if err := errs.Check(app); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	return nil
}

func toBusNewHub(app NewHub) hubbus.NewHub {
	return hubbus.NewHub{
		Name:      app.Name,
		Slug:      app.Slug,
		Workspace: app.Workspace,
	}
}

// UpdateHub defines the data that may be updated on a hub.
type UpdateHub struct {
	Name    *string `json:"name" validate:"omitempty,min=3"`
	Enabled *bool   `json:"enabled"`
}

// Decode implements the decoder interface.
func (app *UpdateHub) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app UpdateHub) Validate() error {
	if err := errs.Check(app); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	return nil
}

func toBusUpdateHub(app UpdateHub) hubbus.UpdateHub {
	return hubbus.UpdateHub{
		Name:    app.Name,
		Enabled: app.Enabled,
	}
}

// =============================================================================
// Team mapping

// TeamMapping represents a team to hub binding.
type TeamMapping struct {
	ID             string   `json:"id"`
	HubID          string   `json:"hubId"`
	TeamID         string   `json:"teamId"`
	Enabled        bool     `json:"enabled"`
	ProjectIDs     []string `json:"projectIds,omitempty"`
	InitiativeIDs  []string `json:"initiativeIds,omitempty"`
	LabelIDs       []string `json:"labelIds,omitempty"`
	DeniedLabelIDs []string `json:"deniedLabelIds,omitempty"`
	DateCreated    string   `json:"dateCreated"`
	DateUpdated    string   `json:"dateUpdated"`
}

// Encode implements the web.Encoder interface.
func (app TeamMapping) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

func toAppMapping(bus mappingbus.TeamMapping) TeamMapping {
	return TeamMapping{
		ID:             bus.ID.String(),
		HubID:          bus.HubID.String(),
		TeamID:         bus.TeamID,
		Enabled:        bus.Enabled,
		ProjectIDs:     bus.ProjectIDs,
		InitiativeIDs:  bus.InitiativeIDs,
		LabelIDs:       bus.LabelIDs,
		DeniedLabelIDs: bus.DeniedLabelIDs,
		DateCreated:    bus.CreatedAt.Format(time.RFC3339),
		DateUpdated:    bus.UpdatedAt.Format(time.RFC3339),
	}
}

// TeamMappings wraps the mapping list for encoding.
type TeamMappings []TeamMapping

// Encode implements the web.Encoder interface.
func (app TeamMappings) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

func toAppMappings(tms []mappingbus.TeamMapping) TeamMappings {
	app := make(TeamMappings, len(tms))
	for i, tm := range tms {
		app[i] = toAppMapping(tm)
	}
	return app
}

// NewTeamMapping defines the data needed to map a team to a hub.
type NewTeamMapping struct {
	TeamID         string   `json:"teamId" validate:"required"`
	ProjectIDs     []string `json:"projectIds"`
	InitiativeIDs  []string `json:"initiativeIds"`
	LabelIDs       []string `json:"labelIds"`
	DeniedLabelIDs []string `json:"deniedLabelIds"`
}

// Decode implements the decoder interface.
func (app *NewTeamMapping) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app NewTeamMapping) Validate() error {
	if err := errs.Check(app); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	return nil
}

func toBusNewMapping(app NewTeamMapping, hubID uuid.UUID) mappingbus.NewTeamMapping {
	return mappingbus.NewTeamMapping{
		HubID:          hubID,
		TeamID:         app.TeamID,
		ProjectIDs:     app.ProjectIDs,
		InitiativeIDs:  app.InitiativeIDs,
		LabelIDs:       app.LabelIDs,
		DeniedLabelIDs: app.DeniedLabelIDs,
	}
}

// UpdateTeamMapping defines the data that may be updated on a mapping.
type UpdateTeamMapping struct {
	Enabled        *bool     `json:"enabled"`
	ProjectIDs     *[]string `json:"projectIds"`
	InitiativeIDs  *[]string `json:"initiativeIds"`
	LabelIDs       *[]string `json:"labelIds"`
	DeniedLabelIDs *[]string `json:"deniedLabelIds"`
}

// Decode implements the decoder interface.
func (app *UpdateTeamMapping) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

func toBusUpdateMapping(app UpdateTeamMapping) mappingbus.UpdateTeamMapping {
	return mappingbus.UpdateTeamMapping{
		Enabled:        app.Enabled,
		ProjectIDs:     app.ProjectIDs,
		InitiativeIDs:  app.InitiativeIDs,
		LabelIDs:       app.LabelIDs,
		DeniedLabelIDs: app.DeniedLabelIDs,
	}
}

// =============================================================================
// Membership

// Membership represents an invitation or claimed seat on a hub.
type Membership struct {
	ID          string  `json:"id"`
	HubID       string  `json:"hubId"`
	IdentityID  *string `json:"identityId,omitempty"`
	Email       string  `json:"email"`
	Role        string  `json:"role"`
	Status      string  `json:"status"`
	DateCreated string  `json:"dateCreated"`
	DateUpdated string  `json:"dateUpdated"`
}

// Encode implements the web.Encoder interface.
func (app Membership) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

func toAppMembership(bus memberbus.Membership) Membership {
	app := Membership{
		ID:          bus.ID.String(),
		HubID:       bus.HubID.String(),
		Email:       bus.Email,
		Role:        bus.Role.String(),
		Status:      bus.Status.String(),
		DateCreated: bus.CreatedAt.Format(time.RFC3339),
		DateUpdated: bus.UpdatedAt.Format(time.RFC3339),
	}

	if bus.IdentityID != nil {
		id := bus.IdentityID.String()
		app.IdentityID = &id
	}

	return app
}

// Memberships wraps the membership list for encoding.
type Memberships []Membership

// Encode implements the web.Encoder interface.
func (app Memberships) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

func toAppMemberships(mbrs []memberbus.Membership) Memberships {
	app := make(Memberships, len(mbrs))
	for i, mbr := range mbrs {
		app[i] = toAppMembership(mbr)
	}
	return app
}

// NewMembership defines the data needed to invite a member.
type NewMembership struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required"`
}

// Decode implements the decoder interface.
func (app *NewMembership) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app NewMembership) Validate() error {
	if err := errs.Check(app); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	return nil
}

func toBusNewMembership(app NewMembership, hubID uuid.UUID) (memberbus.NewMembership, error) {
	r, err := role.Parse(app.Role)
	if err != nil {
		return memberbus.NewMembership{}, fmt.Errorf("parse role: %w", err)
	}

	return memberbus.NewMembership{
		HubID: hubID,
		Email: app.Email,
		Role:  r,
	}, nil
}

// =============================================================================
// Webhook subscription

// Subscription represents a webhook signing registration. The secret is
// returned only on creation.
type Subscription struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Secret      string `json:"secret,omitempty"`
	Enabled     bool   `json:"enabled"`
	DateCreated string `json:"dateCreated"`
}

// Encode implements the web.Encoder interface.
func (app Subscription) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

func toAppSubscription(bus webhookbus.Subscription, includeSecret bool) Subscription {
	app := Subscription{
		ID:          bus.ID.String(),
		Label:       bus.Label,
		Enabled:     bus.Enabled,
		DateCreated: bus.CreatedAt.Format(time.RFC3339),
	}

	if includeSecret {
		app.Secret = bus.Secret
	}

	return app
}

// NewSubscription defines the data needed to register a webhook.
type NewSubscription struct {
	Label  string `json:"label" validate:"required"`
	Secret string `json:"secret"`
}

// Decode implements the decoder interface.
func (app *NewSubscription) Decode(data []byte) error {
	return json.Unmarshal(data, app)
}

// Validate checks the data in the model is considered clean.
func (app NewSubscription) Validate() error {
	if err := errs.Check(app); err != nil {
		return fmt.Errorf("validate: %w", err)
	}

	return nil
}
