package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/chordme/chordme/pkg/contextkeys"
)

// RequestIDHeader carries the request id back to the client and accepts
// ids minted by upstream proxies.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request a unique id and records the client IP
// on the context. An id supplied by a trusted proxy via X-Request-ID is
// kept; otherwise a fresh UUID is minted.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)

		ctx := contextkeys.WithRequestID(r.Context(), id)
		ctx = contextkeys.WithClientIP(ctx, clientIP(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP extracts the originating client address, preferring the
// leftmost X-Forwarded-For entry when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return strings.TrimSpace(real)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
