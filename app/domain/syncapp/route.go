package syncapp

import (
	"net/http"

	"github.com/dcapri/hubmirror/app/sdk/auth"
	"github.com/dcapri/hubmirror/app/sdk/mid"
	"github.com/dcapri/hubmirror/business/domain/hubbus"
	"github.com/dcapri/hubmirror/business/domain/memberbus"
	"github.com/dcapri/hubmirror/business/domain/syncbus"
	"github.com/dcapri/hubmirror/business/sdk/web"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Auth       *auth.Auth
	HubBus     *hubbus.Core
	MemberBus  *memberbus.Core
	SyncBus    *syncbus.Core
	CronSecret string
}

// Routes adds specific routes for this group.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	authen := mid.Authenticate(cfg.Auth)
	member := mid.HubMember(cfg.HubBus, cfg.MemberBus)
	write := mid.HubWrite()

	api := newApp(cfg.SyncBus, cfg.CronSecret)

	app.HandlerFunc(http.MethodPost, version, "/hubs/{hub_id}/sync", api.sync, authen, member, write)

	// The cron endpoint authenticates with the shared secret inside the
	// handler; there is no user identity on scheduler calls.
	app.HandlerFunc(http.MethodPost, version, "/cron/reconcile", api.reconcile)
}
