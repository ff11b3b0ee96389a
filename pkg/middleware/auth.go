package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/chordme/chordme/pkg/auth"
	"github.com/chordme/chordme/pkg/contextkeys"
	"github.com/chordme/chordme/pkg/httputil"
)

// AuthMiddleware authenticates requests with bearer API tokens.
type AuthMiddleware struct {
	tokenManager *auth.TokenManager
	optional     bool
}

// NewAuthMiddleware creates an authentication middleware. When optional
// is true, requests without an Authorization header pass through
// anonymously; a header that is present must still validate.
func NewAuthMiddleware(tokenManager *auth.TokenManager, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		tokenManager: tokenManager,
		optional:     optional,
	}
}

// Handler wraps an HTTP handler with authentication.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		authCtx, err := m.tokenManager.Validate(r.Context(), parts[1])
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) {
				httputil.WriteUnauthorized(w, "invalid or expired token")
				return
			}
			// Store outage is not an authentication verdict.
			httputil.WriteServiceUnavailable(w, "authentication temporarily unavailable")
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuthFromRequest extracts the auth context from a request, or nil for
// anonymous requests.
func AuthFromRequest(r *http.Request) *auth.Context {
	return contextkeys.AuthFromContext(r.Context())
}

// RequireAuth rejects anonymous requests. It is used on routes behind
// an optional AuthMiddleware that must still demand a caller identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if AuthFromRequest(r) == nil {
			httputil.WriteUnauthorized(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
