package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/chordme/chordme/pkg/authz"
	"github.com/chordme/chordme/pkg/httputil"
	"github.com/chordme/chordme/pkg/middleware"
	"github.com/chordme/chordme/pkg/permissions"
)

// SharingHandlers serves grant and visibility mutations. These are the
// only write paths into permission state, so their payloads are parsed
// strictly: an unrecognized field is treated as a bypass attempt, not a
// typo.
type SharingHandlers struct {
	enforcer *authz.Enforcer
}

// NewSharingHandlers creates the sharing handlers.
func NewSharingHandlers(enforcer *authz.Enforcer) *SharingHandlers {
	return &SharingHandlers{enforcer: enforcer}
}

// RegisterRoutes registers the sharing routes.
func (h *SharingHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/songs/{id:[0-9]+}/permissions/{userID:[0-9]+}", h.SetGrant).Methods("PUT")
	router.HandleFunc("/songs/{id:[0-9]+}/permissions/{userID:[0-9]+}", h.RemoveGrant).Methods("DELETE")
	router.HandleFunc("/songs/{id:[0-9]+}/visibility", h.SetVisibility).Methods("PUT")
}

type setGrantRequest struct {
	Level string `json:"level"`
}

type setVisibilityRequest struct {
	Visibility string `json:"visibility"`
}

// parseStrict parses a permission payload, reporting unknown fields as
// bypass attempts. Returns false when a response has been written.
func (h *SharingHandlers) parseStrict(w http.ResponseWriter, r *http.Request, songID int64, action string, dest any) bool {
	err := httputil.ParseJSONStrict(r, dest)
	if err == nil {
		return true
	}
	if field, isUnknown := httputil.IsUnknownField(err); isUnknown {
		h.enforcer.ReportBypassAttempt(r.Context(), songID, callerID(r), action, map[string]any{
			"unknown_field": field,
		})
		httputil.WriteBadRequest(w, "unknown field \""+field+"\"")
		return false
	}
	httputil.WriteBadRequest(w, "invalid JSON payload")
	return false
}

// SetGrant handles PUT /songs/{id}/permissions/{userID}.
func (h *SharingHandlers) SetGrant(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.AuthFromRequest(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	songID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	targetUserID, ok := httputil.ParsePathInt64OrError(w, r, "userID")
	if !ok {
		return
	}

	var req setGrantRequest
	if !h.parseStrict(w, r, songID, "set_grant", &req) {
		return
	}
	level, err := permissions.ParseLevel(req.Level)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.enforcer.SetGrant(r.Context(), songID, authCtx.User.ID, targetUserID, level); err != nil {
		writeAuthzError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// RemoveGrant handles DELETE /songs/{id}/permissions/{userID}.
func (h *SharingHandlers) RemoveGrant(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.AuthFromRequest(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	songID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	targetUserID, ok := httputil.ParsePathInt64OrError(w, r, "userID")
	if !ok {
		return
	}

	if err := h.enforcer.RemoveGrant(r.Context(), songID, authCtx.User.ID, targetUserID); err != nil {
		writeAuthzError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// SetVisibility handles PUT /songs/{id}/visibility.
func (h *SharingHandlers) SetVisibility(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.AuthFromRequest(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	songID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req setVisibilityRequest
	if !h.parseStrict(w, r, songID, "set_visibility", &req) {
		return
	}
	visibility := permissions.Visibility(req.Visibility)
	if !visibility.Valid() {
		httputil.WriteBadRequest(w, "invalid visibility \""+req.Visibility+"\"")
		return
	}

	if err := h.enforcer.SetVisibility(r.Context(), songID, authCtx.User.ID, visibility); err != nil {
		writeAuthzError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
