package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/chordme/chordme/pkg/audit"
	"github.com/chordme/chordme/pkg/auth"
	"github.com/chordme/chordme/pkg/authz"
	"github.com/chordme/chordme/pkg/middleware"
	"github.com/chordme/chordme/pkg/observability"
	"github.com/chordme/chordme/pkg/songs"
)

// Deps carries everything the API server needs. AuditStore, Metrics and
// RateLimit are optional.
type Deps struct {
	Songs    songs.Store
	Users    songs.UserStore
	Enforcer *authz.Enforcer
	Tokens   *auth.TokenManager

	AuditStore audit.Store
	Metrics    *observability.Metrics
	Logger     *observability.Logger
	RateLimit  *middleware.RateLimitMiddleware
}

// Server is the ChordMe API server.
type Server struct {
	router *mux.Router
	deps   Deps

	authHandlers    *AuthHandlers
	songHandlers    *SongHandlers
	sharingHandlers *SharingHandlers
	auditHandlers   *AuditHandlers
}

// NewServer creates the API server and wires its routes.
func NewServer(deps Deps) (*Server, error) {
	switch {
	case deps.Songs == nil:
		return nil, errors.New("song store is required")
	case deps.Users == nil:
		return nil, errors.New("user store is required")
	case deps.Enforcer == nil:
		return nil, errors.New("enforcer is required")
	case deps.Tokens == nil:
		return nil, errors.New("token manager is required")
	}
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.InfoLevel, os.Stderr)
	}

	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
	}
	s.authHandlers = NewAuthHandlers(deps.Users, deps.Tokens)
	s.songHandlers = NewSongHandlers(deps.Songs, deps.Enforcer)
	s.sharingHandlers = NewSharingHandlers(deps.Enforcer)
	if deps.AuditStore != nil {
		s.auditHandlers = NewAuditHandlers(deps.AuditStore)
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := observability.WithLogger(r.Context(), s.deps.Logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	s.router.Use(otelhttp.NewMiddleware("chordme-api"))
	if s.deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.deps.Metrics))
	}

	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Account routes take no bearer token. They still get rate limited,
	// keyed by client IP since no identity exists yet.
	account := api.NewRoute().Subrouter()
	if s.deps.RateLimit != nil {
		account.Use(s.deps.RateLimit.Handler)
	}
	account.HandleFunc("/auth/register", s.authHandlers.Register).Methods("POST")
	account.HandleFunc("/auth/login", s.authHandlers.Login).Methods("POST")

	// Everything else runs behind optional token auth: anonymous
	// callers can still reach public songs and share links; handlers
	// demand identity where the operation needs one. Rate limiting runs
	// after auth so authenticated callers are keyed by user id, not by
	// an IP they may share with anonymous traffic.
	authMW := middleware.NewAuthMiddleware(s.deps.Tokens, true)
	authed := api.NewRoute().Subrouter()
	authed.Use(authMW.Handler)
	if s.deps.RateLimit != nil {
		authed.Use(s.deps.RateLimit.Handler)
	}

	s.authHandlers.RegisterRoutes(authed)
	s.songHandlers.RegisterRoutes(authed)
	s.sharingHandlers.RegisterRoutes(authed)
	if s.auditHandlers != nil {
		s.auditHandlers.RegisterRoutes(authed)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
