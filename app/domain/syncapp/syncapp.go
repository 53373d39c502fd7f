// Package syncapp exposes the manual sync trigger and the scheduled
// reconciliation endpoint.
package syncapp

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/dcapri/hubmirror/app/sdk/errs"
	"github.com/dcapri/hubmirror/app/sdk/mid"
	"github.com/dcapri/hubmirror/business/domain/syncbus"
	"github.com/dcapri/hubmirror/business/sdk/web"
)

type app struct {
	syncBus    *syncbus.Core
	cronSecret string
}

func newApp(syncBus *syncbus.Core, cronSecret string) *app {
	return &app{
		syncBus:    syncBus,
		cronSecret: cronSecret,
	}
}

// sync performs a full sync for the hub resolved by the route guards. Even
// with per-team errors the response is 200; the counters tell the story.
func (a *app) sync(ctx context.Context, _ *http.Request) web.Encoder {
	hub, err := mid.GetHub(ctx)
	if err != nil {
		return errs.Errorf(errs.Internal, "hub missing in context: %s", err)
	}

	res, err := a.syncBus.SyncHub(ctx, hub.ID)
	if err != nil {
		return errs.Errorf(errs.InternalOnlyLog, "sync: hubID[%s]: %s", hub.ID, err)
	}

	return toAppResult(res)
}

// reconcile runs the incremental reconciler across every active mapping.
// The route is guarded by the shared cron secret, not by user auth.
func (a *app) reconcile(ctx context.Context, r *http.Request) web.Encoder {
	if a.cronSecret != "" {
		supplied := strings.TrimPrefix(r.Header.Get("authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(a.cronSecret)) != 1 {
			return errs.New(errs.Unauthenticated, errors.New("invalid cron secret"))
		}
	}

	res, err := a.syncBus.Reconcile(ctx)
	if err != nil {
		return errs.Errorf(errs.InternalOnlyLog, "reconcile: %s", err)
	}

	return toAppResult(res)
}
