package mid

import (
	"context"
	"net/http"

	"github.com/dcapri/hubmirror/app/sdk/metrics"
	"github.com/dcapri/hubmirror/business/sdk/web"
)

// Metrics updates program counters.
func Metrics() web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			ctx = metrics.Set(ctx)

			n := metrics.AddRequests(ctx)
			if n%1000 == 0 {
				metrics.AddGoroutines(ctx)
			}

			return next(ctx, r)
		}

		return h
	}

	return m
}
