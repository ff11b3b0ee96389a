// Package contextkeys provides centralized context key definitions.
//
// All context keys used across the application must be defined here. This
// prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.Context
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: all protected API endpoints
	AuthKey Key = "auth_context"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: logger, audit trail
	RequestIDKey Key = "request_id"

	// ClientIPKey contains the originating client IP string
	// Set by: middleware.RequestID
	// Used by: audit trail, rate limiter
	ClientIPKey Key = "client_ip"
)

// WithRequestID attaches a request id to the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestIDFromContext returns the request id, or "" if none is set.
func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithClientIP attaches the client IP to the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}

// ClientIPFromContext returns the client IP, or "" if none is set.
func ClientIPFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ClientIPKey).(string); ok {
		return v
	}
	return ""
}
