package issueapp

import (
	"net/http"

	"github.com/dcapri/hubmirror/app/sdk/auth"
	"github.com/dcapri/hubmirror/app/sdk/mid"
	"github.com/dcapri/hubmirror/business/domain/hubbus"
	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/dcapri/hubmirror/business/domain/memberbus"
	"github.com/dcapri/hubmirror/business/domain/mirrorbus"
	"github.com/dcapri/hubmirror/business/sdk/web"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Auth       *auth.Auth
	HubBus     *hubbus.Core
	MemberBus  *memberbus.Core
	MirrorBus  *mirrorbus.Core
	MappingBus *mappingbus.Core
	Workspace  string
}

// Routes adds specific routes for this group.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	authen := mid.Authenticate(cfg.Auth)
	member := mid.HubMember(cfg.HubBus, cfg.MemberBus)

	api := newApp(cfg.MirrorBus, cfg.MappingBus, cfg.Workspace)

	app.HandlerFunc(http.MethodGet, version, "/hubs/{hub_id}/issues", api.queryIssues, authen, member)
	app.HandlerFunc(http.MethodGet, version, "/hubs/{hub_id}/issues/{issue_id}", api.queryIssueByID, authen, member)
	app.HandlerFunc(http.MethodGet, version, "/hubs/{hub_id}/issues/{issue_id}/comments", api.queryComments, authen, member)
	app.HandlerFunc(http.MethodGet, version, "/hubs/{hub_id}/teams", api.queryTeams, authen, member)
	app.HandlerFunc(http.MethodGet, version, "/hubs/{hub_id}/projects", api.queryProjects, authen, member)
	app.HandlerFunc(http.MethodGet, version, "/hubs/{hub_id}/initiatives", api.queryInitiatives, authen, member)
}
