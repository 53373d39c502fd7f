// Package hubapp maintains the operator surface for hubs, team mappings,
// memberships, and webhook subscriptions.
package hubapp

import (
	"context"
	"errors"
	"net/http"

	"github.com/dcapri/hubmirror/app/sdk/errs"
	"github.com/dcapri/hubmirror/business/domain/hubbus"
	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/dcapri/hubmirror/business/domain/memberbus"
	"github.com/dcapri/hubmirror/business/domain/webhookbus"
	"github.com/dcapri/hubmirror/business/sdk/web"
	"github.com/google/uuid"
)

type app struct {
	hubBus     *hubbus.Core
	mappingBus *mappingbus.Core
	memberBus  *memberbus.Core
	webhookBus *webhookbus.Core
}

func newApp(hubBus *hubbus.Core, mappingBus *mappingbus.Core, memberBus *memberbus.Core, webhookBus *webhookbus.Core) *app {
	return &app{
		hubBus:     hubBus,
		mappingBus: mappingBus,
		memberBus:  memberBus,
		webhookBus: webhookBus,
	}
}

// =============================================================================
// Hubs

// create adds a new hub to the system.
func (a *app) create(ctx context.Context, r *http.Request) web.Encoder {
	var app NewHub
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	hub, err := a.hubBus.Create(ctx, toBusNewHub(app))
	if err != nil {
		if errors.Is(err, hubbus.ErrUniqueSlug) {
			return errs.New(errs.Aborted, hubbus.ErrUniqueSlug)
		}
		return errs.Errorf(errs.InternalOnlyLog, "create: hub[%+v]: %s", app, err)
	}

	return toAppHub(hub)
}

// update modifies a hub in the system.
func (a *app) update(ctx context.Context, r *http.Request) web.Encoder {
	var app UpdateHub
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	hub, err := a.hub(ctx, r)
	if err != nil {
		return errs.New(errs.NotFound, err)
	}

	updHub, err := a.hubBus.Update(ctx, hub, toBusUpdateHub(app))
	if err != nil {
		return errs.Errorf(errs.InternalOnlyLog, "update: hubID[%s]: %s", hub.ID, err)
	}

	return toAppHub(updHub)
}

// deactivate soft-disables a hub. Every tenant-facing entry point fails
// closed for a disabled hub.
func (a *app) deactivate(ctx context.Context, r *http.Request) web.Encoder {
	hub, err := a.hub(ctx, r)
	if err != nil {
		return errs.New(errs.NotFound, err)
	}

	updHub, err := a.hubBus.Deactivate(ctx, hub)
	if err != nil {
		return errs.Errorf(errs.InternalOnlyLog, "deactivate: hubID[%s]: %s", hub.ID, err)
	}

	return toAppHub(updHub)
}

// query returns the list of hubs.
func (a *app) query(ctx context.Context, _ *http.Request) web.Encoder {
	hubs, err := a.hubBus.QueryAll(ctx, false)
	if err != nil {
		return errs.Errorf(errs.Internal, "query: %s", err)
	}

	return toAppHubs(hubs)
}

// queryByID returns a hub by its ID.
func (a *app) queryByID(ctx context.Context, r *http.Request) web.Encoder {
	hub, err := a.hub(ctx, r)
	if err != nil {
		return errs.New(errs.NotFound, err)
	}

	return toAppHub(hub)
}

func (a *app) hub(ctx context.Context, r *http.Request) (hubbus.Hub, error) {
	hubID, err := uuid.Parse(web.Param(r, "hub_id"))
	if err != nil {
		return hubbus.Hub{}, hubbus.ErrNotFound
	}

	return a.hubBus.QueryByID(ctx, hubID)
}

// =============================================================================
// Team mappings

// createMapping binds an upstream team to the hub.
func (a *app) createMapping(ctx context.Context, r *http.Request) web.Encoder {
	var app NewTeamMapping
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	hub, err := a.hub(ctx, r)
	if err != nil {
		return errs.New(errs.NotFound, err)
	}

	tm, err := a.mappingBus.Create(ctx, toBusNewMapping(app, hub.ID))
	if err != nil {
		if errors.Is(err, mappingbus.ErrTeamMapped) {
			return errs.New(errs.Aborted, mappingbus.ErrTeamMapped)
		}
		return errs.Errorf(errs.InternalOnlyLog, "create mapping: hubID[%s] teamID[%s]: %s", hub.ID, app.TeamID, err)
	}

	return toAppMapping(tm)
}

// updateMapping modifies visibility or active state of a mapping.
func (a *app) updateMapping(ctx context.Context, r *http.Request) web.Encoder {
	var app UpdateTeamMapping
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	tm, err := a.mapping(ctx, r)
	if err != nil {
		return errs.New(errs.NotFound, err)
	}

	updTm, err := a.mappingBus.Update(ctx, tm, toBusUpdateMapping(app))
	if err != nil {
		if errors.Is(err, mappingbus.ErrTeamMapped) {
			return errs.New(errs.Aborted, mappingbus.ErrTeamMapped)
		}
		return errs.Errorf(errs.InternalOnlyLog, "update mapping: mappingID[%s]: %s", tm.ID, err)
	}

	return toAppMapping(updTm)
}

// deleteMapping removes a mapping.
func (a *app) deleteMapping(ctx context.Context, r *http.Request) web.Encoder {
	tm, err := a.mapping(ctx, r)
	if err != nil {
		return errs.New(errs.NotFound, err)
	}

	if err := a.mappingBus.Delete(ctx, tm); err != nil {
		return errs.Errorf(errs.InternalOnlyLog, "delete mapping: mappingID[%s]: %s", tm.ID, err)
	}

	return nil
}

// queryMappings returns the hub's active mappings.
func (a *app) queryMappings(ctx context.Context, r *http.Request) web.Encoder {
	hub, err := a.hub(ctx, r)
	if err != nil {
		return errs.New(errs.NotFound, err)
	}

	tms, err := a.mappingBus.QueryActiveByHub(ctx, hub.ID)
	if err != nil {
		return errs.Errorf(errs.Internal, "query mappings: %s", err)
	}

	return toAppMappings(tms)
}

func (a *app) mapping(ctx context.Context, r *http.Request) (mappingbus.TeamMapping, error) {
	mappingID, err := uuid.Parse(web.Param(r, "mapping_id"))
	if err != nil {
		return mappingbus.TeamMapping{}, mappingbus.ErrNotFound
	}

	return a.mappingBus.QueryByID(ctx, mappingID)
}

// =============================================================================
// Memberships

// invite creates a pending membership on the hub.
func (a *app) invite(ctx context.Context, r *http.Request) web.Encoder {
	var app NewMembership
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	hub, err := a.hub(ctx, r)
	if err != nil {
		return errs.New(errs.NotFound, err)
	}

	nm, err := toBusNewMembership(app, hub.ID)
	if err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	mbr, err := a.memberBus.Invite(ctx, nm)
	if err != nil {
		if errors.Is(err, memberbus.ErrAlreadyInvited) {
			return errs.New(errs.Aborted, memberbus.ErrAlreadyInvited)
		}
		return errs.Errorf(errs.InternalOnlyLog, "invite: hubID[%s] email[%s]: %s", hub.ID, app.Email, err)
	}

	return toAppMembership(mbr)
}

// queryMembers returns the hub's memberships.
func (a *app) queryMembers(ctx context.Context, r *http.Request) web.Encoder {
	hub, err := a.hub(ctx, r)
	if err != nil {
		return errs.New(errs.NotFound, err)
	}

	mbrs, err := a.memberBus.QueryByHub(ctx, hub.ID)
	if err != nil {
		return errs.Errorf(errs.Internal, "query members: %s", err)
	}

	return toAppMemberships(mbrs)
}

// deleteMember removes a membership from the hub.
func (a *app) deleteMember(ctx context.Context, r *http.Request) web.Encoder {
	membershipID, err := uuid.Parse(web.Param(r, "membership_id"))
	if err != nil {
		return errs.New(errs.NotFound, memberbus.ErrNotFound)
	}

	mbr, err := a.memberBus.QueryByID(ctx, membershipID)
	if err != nil {
		return errs.New(errs.NotFound, err)
	}

	if err := a.memberBus.Delete(ctx, mbr); err != nil {
		return errs.Errorf(errs.InternalOnlyLog, "delete member: membershipID[%s]: %s", mbr.ID, err)
	}

	return nil
}

// =============================================================================
// Webhook subscriptions

// createSubscription registers a webhook signing secret. The secret is only
// ever returned here.
func (a *app) createSubscription(ctx context.Context, r *http.Request) web.Encoder {
	var app NewSubscription
	if err := web.Decode(r, &app); err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	sub, err := a.webhookBus.Create(ctx, webhookbus.NewSubscription{
		Label:  app.Label,
		Secret: app.Secret,
	})
	if err != nil {
		return errs.Errorf(errs.InternalOnlyLog, "create subscription: %s", err)
	}

	return toAppSubscription(sub, true)
}

// deleteSubscription removes a webhook subscription.
func (a *app) deleteSubscription(ctx context.Context, r *http.Request) web.Encoder {
	subID, err := uuid.Parse(web.Param(r, "subscription_id"))
	if err != nil {
		return errs.New(errs.NotFound, webhookbus.ErrNotFound)
	}

	sub, err := a.webhookBus.QueryByID(ctx, subID)
	if err != nil {
		return errs.New(errs.NotFound, err)
	}

	if err := a.webhookBus.Delete(ctx, sub); err != nil {
		return errs.Errorf(errs.InternalOnlyLog, "delete subscription: subID[%s]: %s", sub.ID, err)
	}

	return nil
}
