// Package webhookbus verifies and routes upstream push events into the
// shared mirror.
package webhookbus

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/dcapri/hubmirror/business/domain/mirrorbus"
	"github.com/dcapri/hubmirror/business/types/entitykind"
	"github.com/dcapri/hubmirror/business/types/eventaction"
	"github.com/dcapri/hubmirror/foundation/logger"
	"github.com/dcapri/hubmirror/foundation/otel"
	"github.com/dcapri/hubmirror/foundation/tracker"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

var (
	ErrNotFound         = errors.New("subscription not found")
	ErrSignatureMissing = errors.New("signature header missing")
	ErrSignatureInvalid = errors.New("signature does not match any active subscription")
)

// Storer defines the behavior required by the webhookbus to interact with
// the database.
type Storer interface {
	Create(ctx context.Context, sub Subscription) error
	Delete(ctx context.Context, sub Subscription) error
	QueryByID(ctx context.Context, subID uuid.UUID) (Subscription, error)
	QueryAllActive(ctx context.Context) ([]Subscription, error)
}

// Core manages the set of APIs for webhook verification and routing.
type Core struct {
	log     *logger.Logger
	storer  Storer
	mapping *mappingbus.Core
	mirror  *mirrorbus.Core

	workspace string
}

// NewCore constructs a core for webhook api access.
func NewCore(log *logger.Logger, storer Storer, mapping *mappingbus.Core, mirror *mirrorbus.Core, workspace string) *Core {
	return &Core{
		log:       log,
		storer:    storer,
		mapping:   mapping,
		mirror:    mirror,
		workspace: workspace,
	}
}

// =============================================================================
// Subscription lifecycle

// Create registers a new signing subscription, generating a secret when the
// caller did not supply one.
func (c *Core) Create(ctx context.Context, ns NewSubscription) (Subscription, error) {
	ctx, span := otel.AddSpan(ctx, "business.webhookbus.create")
	defer span.End()

	secret := ns.Secret
	if secret == "" {
		var err error
		secret, err = generateSecret()
		if err != nil {
			return Subscription{}, fmt.Errorf("generate secret: %w", err)
		}
	}

	now := time.Now()

	sub := Subscription{
		ID:        uuid.New(),
		Label:     ns.Label,
		Secret:    secret,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := c.storer.Create(ctx, sub); err != nil {
		return Subscription{}, fmt.Errorf("create: %w", err)
	}

	return sub, nil
}

// Delete removes the subscription. Deliveries signed with its secret stop
// verifying immediately.
func (c *Core) Delete(ctx context.Context, sub Subscription) error {
	ctx, span := otel.AddSpan(ctx, "business.webhookbus.delete")
	defer span.End()

	if err := c.storer.Delete(ctx, sub); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	return nil
}

// QueryByID finds the subscription by the specified ID.
func (c *Core) QueryByID(ctx context.Context, subID uuid.UUID) (Subscription, error) {
	sub, err := c.storer.QueryByID(ctx, subID)
	if err != nil {
		return Subscription{}, fmt.Errorf("query: subID[%s]: %w", subID, err)
	}

	return sub, nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}

// =============================================================================
// Verification

// Verify authenticates a delivery by recomputing the HMAC-SHA256 of the raw
// body. When the payload names its subscription, only that subscription's
// secret is a candidate; otherwise every active secret is tried in turn.
func (c *Core) Verify(ctx context.Context, body []byte, signature string, webhookID string) error {
	ctx, span := otel.AddSpan(ctx, "business.webhookbus.verify")
	defer span.End()

	if signature == "" {
		return ErrSignatureMissing
	}

	if webhookID != "" {
		if subID, err := uuid.Parse(webhookID); err == nil {
			sub, err := c.storer.QueryByID(ctx, subID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return ErrSignatureInvalid
				}
				return fmt.Errorf("query: subID[%s]: %w", subID, err)
			}

			if !sub.Enabled || !signatureMatches(body, signature, sub.Secret) {
				return ErrSignatureInvalid
			}

			return nil
		}
	}

	subs, err := c.storer.QueryAllActive(ctx)
	if err != nil {
		return fmt.Errorf("query all active: %w", err)
	}

	for _, sub := range subs {
		if signatureMatches(body, signature, sub.Secret) {
			return nil
		}
	}

	return ErrSignatureInvalid
}

func signatureMatches(body []byte, signature string, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// =============================================================================
// Routing

// Process routes a verified event into the mirror. Unknown kinds and
// actions are logged and skipped. Events whose team is not in the active
// mapping set are dropped without touching the mirror; that bounds the
// mirror to currently-relevant data.
func (c *Core) Process(ctx context.Context, event Event) error {
	ctx, span := otel.AddSpan(ctx, "business.webhookbus.process")
	defer span.End()

	kind, err := entitykind.Parse(event.Type)
	if err != nil {
		c.log.Info(ctx, "webhook: unhandled kind", "type", event.Type)
		return nil
	}

	action, err := eventaction.Parse(event.Action)
	if err != nil {
		c.log.Info(ctx, "webhook: unhandled action", "action", event.Action)
		return nil
	}

	if teamID, relevant := teamKey(kind, event.Data); relevant {
		tracked, err := c.mapping.IsTeamTracked(ctx, teamID)
		if err != nil {
			return fmt.Errorf("is team tracked: %w", err)
		}

		if !tracked {
			c.log.Debug(ctx, "webhook: dropped untracked team", "team_id", teamID, "type", event.Type)
			return nil
		}
	}

	if action.Equal(eventaction.Remove) {
		return c.remove(ctx, kind, event.Data)
	}

	// Create and update share the upsert path so redelivery and
	// out-of-order arrival converge on the same row.
	return c.upsert(ctx, kind, event.Data)
}

// teamKey extracts the team-relevance key from the payload. Org-level kinds
// have none and are always processed.
func teamKey(kind entitykind.Kind, data json.RawMessage) (string, bool) {
	payload := string(data)

	switch kind {
	case entitykind.Issue:
		if id := gjson.Get(payload, "team.id"); id.Exists() {
			return id.String(), true
		}
		return gjson.Get(payload, "teamId").String(), true

	case entitykind.Comment, entitykind.Project:
		return gjson.Get(payload, "teamId").String(), true

	default:
		return "", false
	}
}

func (c *Core) remove(ctx context.Context, kind entitykind.Kind, data json.RawMessage) error {
	id := gjson.Get(string(data), "id").String()
	if id == "" {
		return fmt.Errorf("remove %s: payload has no id", kind)
	}

	switch kind {
	case entitykind.Team:
		return c.mirror.DeleteTeam(ctx, c.workspace, id)
	case entitykind.Project:
		return c.mirror.DeleteProject(ctx, c.workspace, id)
	case entitykind.Initiative:
		return c.mirror.DeleteInitiative(ctx, c.workspace, id)
	case entitykind.Issue:
		return c.mirror.DeleteIssue(ctx, c.workspace, id)
	case entitykind.Comment:
		return c.mirror.DeleteComment(ctx, c.workspace, id)
	}

	return nil
}

func (c *Core) upsert(ctx context.Context, kind entitykind.Kind, data json.RawMessage) error {
	switch kind {
	case entitykind.Team:
		var t tracker.Team
		if err := json.Unmarshal(data, &t); err != nil {
			return fmt.Errorf("decode team: %w", err)
		}
		t.Raw = data
		_, err := c.mirror.UpsertTeams(ctx, c.workspace, []tracker.Team{t})
		return err

	case entitykind.Project:
		var p tracker.Project
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("decode project: %w", err)
		}
		p.Raw = data
		_, err := c.mirror.UpsertProjects(ctx, c.workspace, []tracker.Project{p})
		return err

	case entitykind.Initiative:
		var ini tracker.Initiative
		if err := json.Unmarshal(data, &ini); err != nil {
			return fmt.Errorf("decode initiative: %w", err)
		}
		ini.Raw = data
		_, err := c.mirror.UpsertInitiatives(ctx, c.workspace, []tracker.Initiative{ini})
		return err

	case entitykind.Issue:
		var iss tracker.Issue
		if err := json.Unmarshal(data, &iss); err != nil {
			return fmt.Errorf("decode issue: %w", err)
		}
		iss.Raw = data
		_, err := c.mirror.UpsertIssues(ctx, c.workspace, []tracker.Issue{iss})
		return err

	case entitykind.Comment:
		var cm tracker.Comment
		if err := json.Unmarshal(data, &cm); err != nil {
			return fmt.Errorf("decode comment: %w", err)
		}
		cm.Raw = data
		_, err := c.mirror.UpsertComments(ctx, c.workspace, []tracker.Comment{cm})
		return err
	}

	return nil
}
