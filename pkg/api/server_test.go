package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chordme/chordme/pkg/audit"
	"github.com/chordme/chordme/pkg/auth"
	"github.com/chordme/chordme/pkg/authz"
	"github.com/chordme/chordme/pkg/config"
	"github.com/chordme/chordme/pkg/middleware"
)

func TestNewServerValidation(t *testing.T) {
	store := newMemSongStore()
	users := newMemUserStore()
	manager, err := auth.NewTokenManager(newMemTokenStore(), users)
	require.NoError(t, err)
	enforcer, err := authz.NewEnforcer(store, audit.NewLogger(nil))
	require.NoError(t, err)

	tests := []struct {
		name string
		deps Deps
	}{
		{name: "missing songs", deps: Deps{Users: users, Enforcer: enforcer, Tokens: manager}},
		{name: "missing users", deps: Deps{Songs: store, Enforcer: enforcer, Tokens: manager}},
		{name: "missing enforcer", deps: Deps{Songs: store, Users: users, Tokens: manager}},
		{name: "missing tokens", deps: Deps{Songs: store, Users: users, Enforcer: enforcer}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewServer(tc.deps)
			assert.Error(t, err)
		})
	}
}

func TestRequestIDOnEveryResponse(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/songs", "", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

// newRateLimitedFixture wires a server with a 1-request-per-window
// limiter over miniredis.
func newRateLimitedFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := newMemSongStore()
	users := newMemUserStore()
	sink := &memSink{}

	manager, err := auth.NewTokenManager(newMemTokenStore(), users)
	require.NoError(t, err)
	enforcer, err := authz.NewEnforcer(store, audit.NewLogger(sink))
	require.NoError(t, err)

	limiter := middleware.NewRateLimitMiddleware(client, config.RateLimitConfig{
		Enabled:           true,
		RequestsPerWindow: 1,
		Window:            time.Minute,
	}, nil)

	server, err := NewServer(Deps{
		Songs:     store,
		Users:     users,
		Enforcer:  enforcer,
		Tokens:    manager,
		RateLimit: limiter,
	})
	require.NoError(t, err)

	return &fixture{server: server, store: store, users: users, tokens: manager, sink: sink}
}

func TestRateLimitKeyedByCallerIdentity(t *testing.T) {
	f := newRateLimitedFixture(t)
	_, aliceToken := f.newUser(t, "alice@example.com")
	_, bobToken := f.newUser(t, "bob@example.com")

	// Both callers share the httptest client IP; each still gets their
	// own window because authenticated traffic is keyed by user id.
	first := f.do(t, http.MethodGet, "/api/v1/songs", aliceToken, nil)
	require.Equal(t, http.StatusOK, first.Code)

	second := f.do(t, http.MethodGet, "/api/v1/songs", bobToken, nil)
	assert.Equal(t, http.StatusOK, second.Code)

	third := f.do(t, http.MethodGet, "/api/v1/songs", aliceToken, nil)
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
}

func TestRateLimitAnonymousKeyedByIP(t *testing.T) {
	f := newRateLimitedFixture(t)
	_, token := f.newUser(t, "alice@example.com")

	first := f.do(t, http.MethodGet, "/api/v1/songs", "", nil)
	require.Equal(t, http.StatusOK, first.Code)

	second := f.do(t, http.MethodGet, "/api/v1/songs", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// Anonymous exhaustion does not starve an authenticated caller on
	// the same IP.
	authed := f.do(t, http.MethodGet, "/api/v1/songs", token, nil)
	assert.Equal(t, http.StatusOK, authed.Code)
}

func TestAuditRoutesAbsentWithoutStore(t *testing.T) {
	f := newFixture(t)
	_, token := f.newUser(t, "alice@example.com")
	rec := f.do(t, http.MethodGet, "/api/v1/audit", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
