// Package mid provides app level middleware support.
package mid

import (
	"context"
	"errors"

	"github.com/dcapri/hubmirror/app/sdk/auth"
	"github.com/dcapri/hubmirror/business/domain/hubbus"
	"github.com/dcapri/hubmirror/business/domain/memberbus"
	"github.com/dcapri/hubmirror/business/sdk/sqldb"
	"github.com/dcapri/hubmirror/business/sdk/web"
	"github.com/google/uuid"
)

func checkIsError(e web.Encoder) error {
	err, hasError := e.(error)
	if hasError {
		return err
	}

	return nil
}

// =============================================================================

type ctxKey int

const (
	claimKey ctxKey = iota + 1
	identityIDKey
	hubKey
	accessKey
	trKey
)

func setClaims(ctx context.Context, claims auth.Claims) context.Context {
	return context.WithValue(ctx, claimKey, claims)
}

// GetClaims returns the claims from the context.
func GetClaims(ctx context.Context) auth.Claims {
	v, ok := ctx.Value(claimKey).(auth.Claims)
	if !ok {
		return auth.Claims{}
	}
	return v
}

func setIdentityID(ctx context.Context, identityID uuid.UUID) context.Context {
	return context.WithValue(ctx, identityIDKey, identityID)
}

// GetIdentityID returns the authenticated identity id from the context.
func GetIdentityID(ctx context.Context) (uuid.UUID, error) {
	v, ok := ctx.Value(identityIDKey).(uuid.UUID)
	if !ok {
		return uuid.UUID{}, errors.New("identity id not found in context")
	}

	return v, nil
}

func setHub(ctx context.Context, hub hubbus.Hub) context.Context {
	return context.WithValue(ctx, hubKey, hub)
}

// GetHub returns the resolved hub from the context.
func GetHub(ctx context.Context) (hubbus.Hub, error) {
	v, ok := ctx.Value(hubKey).(hubbus.Hub)
	if !ok {
		return hubbus.Hub{}, errors.New("hub not found in context")
	}

	return v, nil
}

func setAccess(ctx context.Context, access memberbus.Access) context.Context {
	return context.WithValue(ctx, accessKey, access)
}

// GetAccess returns the caller's resolved hub grant from the context.
func GetAccess(ctx context.Context) (memberbus.Access, error) {
	v, ok := ctx.Value(accessKey).(memberbus.Access)
	if !ok {
		return memberbus.Access{}, errors.New("access not found in context")
	}

	return v, nil
}

func setTran(ctx context.Context, tx sqldb.CommitRollbacker) context.Context {
	return context.WithValue(ctx, trKey, tx)
}

// GetTran retrieves the value that can manage a transaction.
func GetTran(ctx context.Context) (sqldb.CommitRollbacker, error) {
	v, ok := ctx.Value(trKey).(sqldb.CommitRollbacker)
	if !ok {
		return nil, errors.New("transaction not found in context")
	}

	return v, nil
}
