package mid

import (
	"context"
	"errors"
	"net/http"

	"github.com/dcapri/hubmirror/app/sdk/errs"
	"github.com/dcapri/hubmirror/business/domain/hubbus"
	"github.com/dcapri/hubmirror/business/domain/memberbus"
	"github.com/dcapri/hubmirror/business/sdk/web"
	"github.com/google/uuid"
)

// HubMember resolves the hub named in the route and the caller's grant on
// it. The guard fails closed: a missing or deactivated hub is NotFound, and
// a caller with no membership, no claimable invite, and no global admin
// grant is PermissionDenied.
func HubMember(hubBus *hubbus.Core, memberBus *memberbus.Core) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			hub, err := resolveHub(ctx, hubBus, web.Param(r, "hub_id"))
			if err != nil {
				return errs.New(errs.NotFound, err)
			}

			if !hub.Enabled {
				return errs.New(errs.NotFound, hubbus.ErrNotFound)
			}

			identityID, err := GetIdentityID(ctx)
			if err != nil {
				return errs.New(errs.Unauthenticated, err)
			}

			access, err := memberBus.ResolveAccess(ctx, hub.ID, identityID, GetClaims(ctx).Email)
			if err != nil {
				if errors.Is(err, memberbus.ErrNotMember) {
					return errs.New(errs.PermissionDenied, err)
				}
				return errs.New(errs.Internal, err)
			}

			ctx = setHub(ctx, hub)
			ctx = setAccess(ctx, access)

			return next(ctx, r)
		}

		return h
	}

	return m
}

// HubWrite rejects view-only grants. It must run after HubMember.
func HubWrite() web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			access, err := GetAccess(ctx)
			if err != nil {
				return errs.New(errs.Unauthenticated, err)
			}

			if !access.CanWrite() {
				return errs.New(errs.PermissionDenied, errors.New("view-only members cannot perform writes"))
			}

			return next(ctx, r)
		}

		return h
	}

	return m
}

func resolveHub(ctx context.Context, hubBus *hubbus.Core, param string) (hubbus.Hub, error) {
	if hubID, err := uuid.Parse(param); err == nil {
		return hubBus.QueryByID(ctx, hubID)
	}

	return hubBus.QueryBySlug(ctx, param)
}
