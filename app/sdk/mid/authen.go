package mid

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dcapri/hubmirror/app/sdk/auth"
	"github.com/dcapri/hubmirror/app/sdk/errs"
	"github.com/dcapri/hubmirror/business/sdk/web"
)

// Authenticate validates the JWT in the Authorization header and stores the
// claims and identity id in the context. It carries no hub authorization;
// that is HubMember's job.
func Authenticate(a *auth.Auth) web.MidFunc {
	m := func(next web.HandlerFunc) web.HandlerFunc {
		h := func(ctx context.Context, r *http.Request) web.Encoder {
			authStr := r.Header.Get("authorization")
			if authStr == "" {
				return errs.New(errs.Unauthenticated, errors.New("missing authorization header"))
			}

			// Same exact-scheme rule the token layer applies, so a bad
			// scheme fails here with the format message.
			parts := strings.Split(authStr, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return errs.New(errs.Unauthenticated, errors.New("expected authorization header format: Bearer <token>"))
			}

			claims, err := a.Authenticate(ctx, authStr)
			if err != nil {
				return errs.New(errs.Unauthenticated, err)
			}

			identityID, err := claims.IdentityID()
			if err != nil {
				return errs.New(errs.Unauthenticated, err)
			}

			ctx = setClaims(ctx, claims)
			ctx = setIdentityID(ctx, identityID)

			return next(ctx, r)
		}

		return h
	}

	return m
}
