package hubapp

import (
	"net/http"

	"github.com/dcapri/hubmirror/app/sdk/auth"
	"github.com/dcapri/hubmirror/app/sdk/mid"
	"github.com/dcapri/hubmirror/business/domain/hubbus"
	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/dcapri/hubmirror/business/domain/memberbus"
	"github.com/dcapri/hubmirror/business/domain/webhookbus"
	"github.com/dcapri/hubmirror/business/sdk/web"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Auth       *auth.Auth
	HubBus     *hubbus.Core
	MappingBus *mappingbus.Core
	MemberBus  *memberbus.Core
	WebhookBus *webhookbus.Core
}

// Routes adds specific routes for this group. Everything here is operator
// only.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	authen := mid.Authenticate(cfg.Auth)
	admin := mid.Admin(cfg.MemberBus)

	api := newApp(cfg.HubBus, cfg.MappingBus, cfg.MemberBus, cfg.WebhookBus)

	app.HandlerFunc(http.MethodGet, version, "/admin/hubs", api.query, authen, admin)
	app.HandlerFunc(http.MethodPost, version, "/admin/hubs", api.create, authen, admin)
	app.HandlerFunc(http.MethodGet, version, "/admin/hubs/{hub_id}", api.queryByID, authen, admin)
	app.HandlerFunc(http.MethodPut, version, "/admin/hubs/{hub_id}", api.update, authen, admin)
	app.HandlerFunc(http.MethodDelete, version, "/admin/hubs/{hub_id}", api.deactivate, authen, admin)

	app.HandlerFunc(http.MethodGet, version, "/admin/hubs/{hub_id}/mappings", api.queryMappings, authen, admin)
	app.HandlerFunc(http.MethodPost, version, "/admin/hubs/{hub_id}/mappings", api.createMapping, authen, admin)
	app.HandlerFunc(http.MethodPut, version, "/admin/hubs/{hub_id}/mappings/{mapping_id}", api.updateMapping, authen, admin)
	app.HandlerFunc(http.MethodDelete, version, "/admin/hubs/{hub_id}/mappings/{mapping_id}", api.deleteMapping, authen, admin)

	app.HandlerFunc(http.MethodGet, version, "/admin/hubs/{hub_id}/members", api.queryMembers, authen, admin)
	app.HandlerFunc(http.MethodPost, version, "/admin/hubs/{hub_id}/members", api.invite, authen, admin)
	app.HandlerFunc(http.MethodDelete, version, "/admin/hubs/{hub_id}/members/{membership_id}", api.deleteMember, authen, admin)

	app.HandlerFunc(http.MethodPost, version, "/admin/webhooks", api.createSubscription, authen, admin)
	app.HandlerFunc(http.MethodDelete, version, "/admin/webhooks/{subscription_id}", api.deleteSubscription, authen, admin)
}
