package contextkeys

import (
	"context"

	"github.com/chordme/chordme/pkg/auth"
)

// WithAuth attaches the authenticated caller to the context.
func WithAuth(ctx context.Context, authCtx *auth.Context) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

// AuthFromContext returns the authenticated caller, or nil for
// anonymous requests.
func AuthFromContext(ctx context.Context) *auth.Context {
	if v, ok := ctx.Value(AuthKey).(*auth.Context); ok {
		return v
	}
	return nil
}
