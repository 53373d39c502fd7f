package mid

import (
	"context"
	"net/http"

	"github.com/dcapri/hubmirror/app/sdk/errs"
	"github.com/dcapri/hubmirror/app/sdk/metrics"
	"github.com/dcapri/hubmirror/business/sdk/web"
	"github.com/dcapri/hubmirror/foundation/logger"
)

// Errors handles errors coming out of the call chain. The error is logged
// here with full detail; what the caller sees is the errs.Error encoding.
func Errors(log *logger.Logger) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			resp := next(ctx, r)
			err := checkIsError(resp)
			if err == nil {
				return resp
			}

			_ = metrics.AddErrors(ctx)

			appErr := errs.GetError(err)
			log.Error(ctx, "handled error during request",
				"err", err.Error(), "code", appErr.Code.String(), "status", appErr.HTTPStatus())

			if !errs.IsError(err) {
				appErr = errs.New(errs.Internal, err)
			}

			return appErr
		}

		return h
	}

	return m
}
