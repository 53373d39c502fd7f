package mid

import (
	"context"
	"errors"
	"net/http"

	"github.com/dcapri/hubmirror/app/sdk/errs"
	"github.com/dcapri/hubmirror/business/domain/memberbus"
	"github.com/dcapri/hubmirror/business/sdk/web"
)

// Admin restricts the route to identities on the global administrator
// allow-list. It must run after Authenticate.
func Admin(memberBus *memberbus.Core) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			claims := GetClaims(ctx)
			if claims.Email == "" {
				return errs.New(errs.Unauthenticated, errors.New("claims missing from context"))
			}

			if !memberBus.IsGlobalAdmin(claims.Email) {
				return errs.New(errs.PermissionDenied, errors.New("operator access required"))
			}

			return next(ctx, r)
		}

		return h
	}

	return m
}
