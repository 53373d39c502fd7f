// Package webhookapp maintains the webhook ingress endpoint.
package webhookapp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dcapri/hubmirror/app/sdk/errs"
	"github.com/dcapri/hubmirror/business/domain/webhookbus"
	"github.com/dcapri/hubmirror/business/sdk/web"
	"github.com/dcapri/hubmirror/foundation/logger"
)

// signatureHeader carries the hex-encoded HMAC-SHA256 of the raw body.
const signatureHeader = "x-tracker-signature"

type app struct {
	log        *logger.Logger
	webhookBus *webhookbus.Core
}

func newApp(log *logger.Logger, webhookBus *webhookbus.Core) *app {
	return &app{
		log:        log,
		webhookBus: webhookBus,
	}
}

// Ack is the fixed acknowledgement body.
type Ack struct {
	Status string `json:"status"`
}

// Encode implements the web.Encoder interface.
func (app Ack) Encode() ([]byte, string, error) {
	data, err := json.Marshal(app)
	return data, "application/json", err
}

// receive handles one delivery. The only non-200 responses are 401 for a
// missing or unverifiable signature and 400 for a body that is not JSON.
// Routing errors are logged and acknowledged anyway; a handler bug must not
// trigger an upstream retry storm, and the reconciler compensates for
// anything dropped here.
func (a *app) receive(ctx context.Context, r *http.Request) web.Encoder {
	signature := r.Header.Get(signatureHeader)
	if signature == "" {
		return errs.New(errs.Unauthenticated, webhookbus.ErrSignatureMissing)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return errs.New(errs.InvalidArgument, err)
	}

	var event webhookbus.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return errs.New(errs.InvalidArgument, errors.New("body is not valid json"))
	}

	if err := a.webhookBus.Verify(ctx, body, signature, event.WebhookID); err != nil {
		if errors.Is(err, webhookbus.ErrSignatureMissing) || errors.Is(err, webhookbus.ErrSignatureInvalid) {
			return errs.New(errs.Unauthenticated, err)
		}
		return errs.Errorf(errs.InternalOnlyLog, "verify: %s", err)
	}

	if err := a.webhookBus.Process(ctx, event); err != nil {
		a.log.Error(ctx, "webhook: process failed", "type", event.Type, "action", event.Action, "err", err)
	}

	return Ack{Status: "ok"}
}
