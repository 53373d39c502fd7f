package webhookapp

import (
	"net/http"

	"github.com/dcapri/hubmirror/business/domain/webhookbus"
	"github.com/dcapri/hubmirror/business/sdk/web"
	"github.com/dcapri/hubmirror/foundation/logger"
)

// Config contains all the mandatory systems required by handlers.
type Config struct {
	Log        *logger.Logger
	WebhookBus *webhookbus.Core
}

// Routes adds specific routes for this group. Deliveries authenticate by
// signature, not bearer token, so no auth middleware runs here.
func Routes(app *web.App, cfg Config) {
	const version = "v1"

	api := newApp(cfg.Log, cfg.WebhookBus)

	app.HandlerFunc(http.MethodPost, version, "/webhooks/tracker", api.receive)
}
