// Package all binds every route into the single binary.
package all

import (
	"github.com/dcapri/hubmirror/app/domain/checkapp"
	"github.com/dcapri/hubmirror/app/domain/hubapp"
	"github.com/dcapri/hubmirror/app/domain/issueapp"
	"github.com/dcapri/hubmirror/app/domain/syncapp"
	"github.com/dcapri/hubmirror/app/domain/webhookapp"
	"github.com/dcapri/hubmirror/app/sdk/auth"
	"github.com/dcapri/hubmirror/app/sdk/mux"
	"github.com/dcapri/hubmirror/business/domain/hubbus"
	"github.com/dcapri/hubmirror/business/domain/hubbus/stores/hubdb"
	"github.com/dcapri/hubmirror/business/domain/mappingbus"
	"github.com/dcapri/hubmirror/business/domain/mappingbus/stores/mappingcache"
	"github.com/dcapri/hubmirror/business/domain/mappingbus/stores/mappingdb"
	"github.com/dcapri/hubmirror/business/domain/memberbus"
	"github.com/dcapri/hubmirror/business/domain/memberbus/stores/memberdb"
	"github.com/dcapri/hubmirror/business/domain/mirrorbus"
	"github.com/dcapri/hubmirror/business/domain/mirrorbus/stores/mirrordb"
	"github.com/dcapri/hubmirror/business/domain/syncbus"
	"github.com/dcapri/hubmirror/business/domain/webhookbus"
	"github.com/dcapri/hubmirror/business/domain/webhookbus/stores/webhookdb"
	"github.com/dcapri/hubmirror/business/sdk/web"
)

// Routes constructs the add value which provides the implementation of
// of RouteAdder for specifying what routes to bind to this instance.
func Routes() add {
	return add{}
}

type add struct{}

func (add) Add(app *web.App, cfg mux.Config) {

	// Every mapping mutation must flow through the cached store so the
	// invalidation happens inside the same request.
	mappingStore := mappingcache.NewStore(cfg.Log, mappingdb.NewStore(cfg.Log, cfg.DB), cfg.MappingCacheTTL)

	hubBus := hubbus.NewCore(cfg.Log, hubdb.NewStore(cfg.Log, cfg.DB))
	mappingBus := mappingbus.NewCore(cfg.Log, mappingStore)
	memberBus := memberbus.NewCore(cfg.Log, memberdb.NewStore(cfg.Log, cfg.DB), cfg.GlobalAdmins)
	mirrorBus := mirrorbus.NewCore(cfg.Log, mirrordb.NewStore(cfg.Log, cfg.DB))
	syncBus := syncbus.NewCore(cfg.Log, cfg.Tracker, mirrorBus, mappingBus, cfg.Workspace)
	webhookBus := webhookbus.NewCore(cfg.Log, webhookdb.NewStore(cfg.Log, cfg.DB), mappingBus, mirrorBus, cfg.Workspace)

	authClient := auth.New(auth.Config{
		Log:       cfg.Log,
		KeyLookup: cfg.AuthConfig.KeyLookup,
		Issuer:    cfg.AuthConfig.Issuer,
	})

	checkapp.Routes(app, checkapp.Config{
		Build: cfg.Build,
		Log:   cfg.Log,
		DB:    cfg.DB,
	})

	hubapp.Routes(app, hubapp.Config{
		Auth:       authClient,
		HubBus:     hubBus,
		MappingBus: mappingBus,
		MemberBus:  memberBus,
		WebhookBus: webhookBus,
	})

	issueapp.Routes(app, issueapp.Config{
		Auth:       authClient,
		HubBus:     hubBus,
		MemberBus:  memberBus,
		MirrorBus:  mirrorBus,
		MappingBus: mappingBus,
		Workspace:  cfg.Workspace,
	})

	syncapp.Routes(app, syncapp.Config{
		Auth:       authClient,
		HubBus:     hubBus,
		MemberBus:  memberBus,
		SyncBus:    syncBus,
		CronSecret: cfg.CronSecret,
	})

	webhookapp.Routes(app, webhookapp.Config{
		Log:        cfg.Log,
		WebhookBus: webhookBus,
	})
}
