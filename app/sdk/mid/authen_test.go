package mid_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dcapri/hubmirror/app/sdk/errs"
	"github.com/dcapri/hubmirror/app/sdk/mid"
	"github.com/dcapri/hubmirror/business/sdk/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticateRejectsMalformedHeader(t *testing.T) {
	// Malformed headers must be rejected before the token layer runs, and
	// with the same exact-scheme rule it applies.
	handler := mid.Authenticate(nil)(func(ctx context.Context, r *http.Request) web.Encoder {
		t.Fatal("handler must not run")
		return nil
	})

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"lowercase scheme", "bearer some.jwt.token"},
		{"wrong scheme", "Basic some.jwt.token"},
		{"no token", "Bearer"},
		{"extra parts", "Bearer some.jwt.token extra"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			resp := handler(context.Background(), r)

			err, ok := resp.(*errs.Error)
			require.True(t, ok)
			assert.Equal(t, errs.Unauthenticated, err.Code)
		})
	}
}
