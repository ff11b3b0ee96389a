package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chordme/chordme/pkg/contextkeys"
)

func TestRequestIDMintsUUID(t *testing.T) {
	var gotID, gotIP string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = contextkeys.RequestIDFromContext(r.Context())
		gotIP = contextkeys.ClientIPFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/songs", nil)
	req.RemoteAddr = "203.0.113.9:54321"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.NotEmpty(t, gotID)
	_, err := uuid.Parse(gotID)
	assert.NoError(t, err)
	assert.Equal(t, gotID, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "203.0.113.9", gotIP)
}

func TestRequestIDKeepsUpstreamID(t *testing.T) {
	var gotID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = contextkeys.RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/songs", nil)
	req.Header.Set(RequestIDHeader, "upstream-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "upstream-42", gotID)
	assert.Equal(t, "upstream-42", rec.Header().Get(RequestIDHeader))
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote addr only",
			remoteAddr: "192.0.2.1:1234",
			want:       "192.0.2.1",
		},
		{
			name:       "x-forwarded-for single",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.9"},
			want:       "203.0.113.9",
		},
		{
			name:       "x-forwarded-for chain keeps leftmost",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.2, 10.0.0.3"},
			want:       "203.0.113.9",
		},
		{
			name:       "x-real-ip fallback",
			remoteAddr: "10.0.0.1:1234",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			want:       "198.51.100.7",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, clientIP(req))
		})
	}
}
