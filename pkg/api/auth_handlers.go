package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/chordme/chordme/pkg/auth"
	"github.com/chordme/chordme/pkg/httputil"
	"github.com/chordme/chordme/pkg/middleware"
	"github.com/chordme/chordme/pkg/observability"
	"github.com/chordme/chordme/pkg/songs"
)

// AuthHandlers serves registration, login and API token management.
type AuthHandlers struct {
	users  songs.UserStore
	tokens *auth.TokenManager
}

// NewAuthHandlers creates the account handlers.
func NewAuthHandlers(users songs.UserStore, tokens *auth.TokenManager) *AuthHandlers {
	return &AuthHandlers{users: users, tokens: tokens}
}

// RegisterRoutes registers the token management routes. Register and
// Login are mounted separately, outside the auth middleware.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/me", h.Me).Methods("GET")
	router.HandleFunc("/auth/tokens", h.CreateToken).Methods("POST")
	router.HandleFunc("/auth/tokens", h.ListTokens).Methods("GET")
	router.HandleFunc("/auth/tokens/{id:[0-9]+}", h.RevokeToken).Methods("DELETE")
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// TokenName labels the minted token, e.g. "cli" or "mobile".
	TokenName string `json:"token_name,omitempty"`
}

type tokenResponse struct {
	Token     string         `json:"token"`
	TokenInfo *auth.APIToken `json:"token_info"`
	User      *songs.User    `json:"user"`
}

// Register handles POST /auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		httputil.WriteBadRequest(w, "a valid email is required")
		return
	}
	if len(req.Password) < 8 {
		httputil.WriteBadRequest(w, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	user := &songs.User{
		Email:        req.Email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, songs.ErrDuplicate) {
			httputil.WriteConflict(w, "email is already registered")
			return
		}
		writeStoreError(w, err)
		return
	}

	observability.FromContext(r.Context()).WithField("user_id", user.ID).Info("user registered")
	httputil.WriteCreated(w, user)
}

// Login handles POST /auth/login. A successful login mints a new API
// token; failures are uniform so email enumeration gains nothing.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.users.GetByEmail(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		if errors.Is(err, songs.ErrNotFound) {
			httputil.WriteUnauthorized(w, "invalid email or password")
			return
		}
		writeStoreError(w, err)
		return
	}
	if !user.IsActive || auth.VerifyPassword(user.PasswordHash, req.Password) != nil {
		httputil.WriteUnauthorized(w, "invalid email or password")
		return
	}

	name := req.TokenName
	if name == "" {
		name = "login"
	}
	info, plaintext, err := h.tokens.Create(r.Context(), user.ID, name, nil)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	observability.FromContext(r.Context()).WithField("user_id", user.ID).Info("user logged in")
	httputil.WriteSuccess(w, tokenResponse{Token: plaintext, TokenInfo: info, User: user})
}

// Me handles GET /auth/me.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.AuthFromRequest(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	httputil.WriteSuccess(w, authCtx.User)
}

type createTokenRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CreateToken handles POST /auth/tokens.
func (h *AuthHandlers) CreateToken(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.AuthFromRequest(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req createTokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		httputil.WriteBadRequest(w, "token name is required")
		return
	}
	if req.ExpiresAt != nil && req.ExpiresAt.Before(time.Now()) {
		httputil.WriteBadRequest(w, "expires_at must be in the future")
		return
	}

	info, plaintext, err := h.tokens.Create(r.Context(), authCtx.User.ID, req.Name, req.ExpiresAt)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteCreated(w, tokenResponse{Token: plaintext, TokenInfo: info, User: authCtx.User})
}

// ListTokens handles GET /auth/tokens.
func (h *AuthHandlers) ListTokens(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.AuthFromRequest(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	tokens, err := h.tokens.ListUserTokens(r.Context(), authCtx.User.ID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, tokens)
}

// RevokeToken handles DELETE /auth/tokens/{id}. Callers can only revoke
// their own tokens; anything else reads as not found.
func (h *AuthHandlers) RevokeToken(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.AuthFromRequest(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	tokenID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	token, err := h.tokens.Get(r.Context(), tokenID)
	if err != nil || token.UserID != authCtx.User.ID {
		httputil.WriteNotFoundError(w, "token not found")
		return
	}

	if err := h.tokens.Revoke(r.Context(), tokenID, authCtx.User.ID, "revoked by owner"); err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
