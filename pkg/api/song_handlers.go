package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/chordme/chordme/pkg/authz"
	"github.com/chordme/chordme/pkg/chordpro"
	"github.com/chordme/chordme/pkg/httputil"
	"github.com/chordme/chordme/pkg/middleware"
	"github.com/chordme/chordme/pkg/observability"
	"github.com/chordme/chordme/pkg/permissions"
	"github.com/chordme/chordme/pkg/songs"
)

// SongHandlers serves song CRUD, listing, share-link redemption and
// transposition.
type SongHandlers struct {
	songs    songs.Store
	enforcer *authz.Enforcer
}

// NewSongHandlers creates the song handlers.
func NewSongHandlers(store songs.Store, enforcer *authz.Enforcer) *SongHandlers {
	return &SongHandlers{songs: store, enforcer: enforcer}
}

// RegisterRoutes registers the song routes.
func (h *SongHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/songs", h.Create).Methods("POST")
	router.HandleFunc("/songs", h.List).Methods("GET")
	// The shared route must precede {id} so "shared" is not parsed as
	// an id; the numeric constraint below keeps them disjoint anyway.
	router.HandleFunc("/songs/shared/{token}", h.GetShared).Methods("GET")
	router.HandleFunc("/songs/{id:[0-9]+}", h.Get).Methods("GET")
	router.HandleFunc("/songs/{id:[0-9]+}", h.Update).Methods("PUT")
	router.HandleFunc("/songs/{id:[0-9]+}", h.Delete).Methods("DELETE")
	router.HandleFunc("/songs/{id:[0-9]+}/transpose", h.Transpose).Methods("POST")
	router.HandleFunc("/songs/{id:[0-9]+}/validate", h.Validate).Methods("GET")
}

// callerID returns the authenticated user's id, or nil for anonymous.
func callerID(r *http.Request) *int64 {
	if authCtx := middleware.AuthFromRequest(r); authCtx != nil {
		return authCtx.UserID()
	}
	return nil
}

// redactForLevel strips sharing state out of a response copy unless the
// caller holds admin. The grants map is ACL data, and the share token
// is itself a read capability that would outlive a revoked grant.
func redactForLevel(song *songs.Song, effective permissions.Level) *songs.Song {
	if permissions.HasAtLeast(effective, permissions.LevelAdmin) {
		return song
	}
	redacted := *song
	redacted.Grants = nil
	redacted.ShareToken = ""
	return &redacted
}

type songRequest struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Content    string `json:"content"`
	Visibility string `json:"visibility"`
}

// Create handles POST /songs. The creator becomes the owner.
func (h *SongHandlers) Create(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.AuthFromRequest(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req songRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	visibility := permissions.VisibilityPrivate
	if req.Visibility != "" {
		visibility = permissions.Visibility(req.Visibility)
	}

	song := &songs.Song{
		Title:      strings.TrimSpace(req.Title),
		Artist:     strings.TrimSpace(req.Artist),
		Content:    req.Content,
		OwnerID:    authCtx.User.ID,
		Visibility: visibility,
	}
	if song.Visibility == permissions.VisibilityLinkShared {
		// A link-shared song must always carry a redeemable token.
		song.ShareToken = uuid.NewString()
	}
	if err := song.Validate(); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if result := chordpro.Validate(song.Content); !result.Valid() {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "song content failed validation",
			"issues": result.Issues,
		})
		return
	}

	if err := h.songs.Create(r.Context(), song); err != nil {
		writeStoreError(w, err)
		return
	}

	observability.FromContext(r.Context()).WithFields(map[string]any{
		"song_id": song.ID,
		"user_id": authCtx.User.ID,
	}).Info("song created")
	httputil.WriteCreated(w, song)
}

// Get handles GET /songs/{id}.
func (h *SongHandlers) Get(w http.ResponseWriter, r *http.Request) {
	songID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	userID := callerID(r)
	song, err := h.enforcer.Authorize(r.Context(), songID, userID, permissions.LevelRead)
	if err != nil {
		writeAuthzError(w, err)
		return
	}
	httputil.WriteSuccess(w, redactForLevel(song, h.enforcer.Effective(song, userID)))
}

// List handles GET /songs. Authenticated callers get everything they
// can read; anonymous callers get public songs only.
func (h *SongHandlers) List(w http.ResponseWriter, r *http.Request) {
	var (
		list []*songs.Song
		err  error
	)
	userID := callerID(r)
	if userID != nil {
		list, err = h.songs.ListAccessible(r.Context(), *userID)
	} else {
		limit, limitErr := httputil.ParseQueryInt(r, "limit", 50)
		offset, offsetErr := httputil.ParseQueryInt(r, "offset", 0)
		if limitErr != nil || offsetErr != nil {
			httputil.WriteBadRequest(w, "limit and offset must be integers")
			return
		}
		list, err = h.songs.ListPublic(r.Context(), limit, offset)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}

	out := make([]*songs.Song, len(list))
	for i, song := range list {
		out[i] = redactForLevel(song, h.enforcer.Effective(song, userID))
	}
	httputil.WriteSuccess(w, out)
}

// Update handles PUT /songs/{id}. Requires edit. Visibility and grants
// are not updatable here; they have dedicated endpoints with admin
// checks, and any attempt to smuggle them through this payload is
// reported as a bypass attempt.
func (h *SongHandlers) Update(w http.ResponseWriter, r *http.Request) {
	songID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req songRequest
	if err := httputil.ParseJSONStrict(r, &req); err != nil {
		if field, isUnknown := httputil.IsUnknownField(err); isUnknown {
			h.enforcer.ReportBypassAttempt(r.Context(), songID, callerID(r), "song_update", map[string]any{
				"unknown_field": field,
			})
			httputil.WriteBadRequest(w, "unknown field \""+field+"\"")
			return
		}
		httputil.WriteBadRequest(w, "invalid JSON payload")
		return
	}
	if req.Visibility != "" {
		h.enforcer.ReportBypassAttempt(r.Context(), songID, callerID(r), "song_update", map[string]any{
			"unknown_field": "visibility",
		})
		httputil.WriteBadRequest(w, "visibility is managed via the visibility endpoint")
		return
	}

	userID := callerID(r)
	song, err := h.enforcer.Authorize(r.Context(), songID, userID, permissions.LevelEdit)
	if err != nil {
		writeAuthzError(w, err)
		return
	}

	song.Title = strings.TrimSpace(req.Title)
	song.Artist = strings.TrimSpace(req.Artist)
	song.Content = req.Content
	if err := song.Validate(); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if result := chordpro.Validate(song.Content); !result.Valid() {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "song content failed validation",
			"issues": result.Issues,
		})
		return
	}

	if err := h.songs.Update(r.Context(), song); err != nil {
		writeStoreError(w, err)
		return
	}
	httputil.WriteSuccess(w, redactForLevel(song, h.enforcer.Effective(song, userID)))
}

// Delete handles DELETE /songs/{id}. Requires admin; the row is soft
// deleted and disappears from every read path.
func (h *SongHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	songID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.enforcer.Authorize(r.Context(), songID, callerID(r), permissions.LevelAdmin); err != nil {
		writeAuthzError(w, err)
		return
	}
	if err := h.songs.SoftDelete(r.Context(), songID); err != nil {
		writeStoreError(w, err)
		return
	}

	observability.FromContext(r.Context()).WithField("song_id", songID).Info("song deleted")
	httputil.WriteNoContent(w)
}

// GetShared handles GET /songs/shared/{token}: read access via a share
// link, no account needed. An unknown token is indistinguishable from a
// revoked one.
func (h *SongHandlers) GetShared(w http.ResponseWriter, r *http.Request) {
	token, ok := httputil.ParsePathStringOrError(w, r, "token")
	if !ok {
		return
	}

	song, err := h.songs.GetByShareToken(r.Context(), token)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.enforcer.RecordSharedAccess(r.Context(), song.ID, callerID(r))
	httputil.WriteSuccess(w, redactForLevel(song, permissions.LevelRead))
}

type transposeRequest struct {
	Semitones int `json:"semitones"`
	// Persist writes the transposed content back to the song, which
	// requires edit instead of read.
	Persist bool `json:"persist,omitempty"`
}

type transposeResponse struct {
	Content   string `json:"content"`
	Semitones int    `json:"semitones"`
	Persisted bool   `json:"persisted"`
}

// Transpose handles POST /songs/{id}/transpose.
func (h *SongHandlers) Transpose(w http.ResponseWriter, r *http.Request) {
	songID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req transposeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	required := permissions.LevelRead
	if req.Persist {
		required = permissions.LevelEdit
	}
	song, err := h.enforcer.Authorize(r.Context(), songID, callerID(r), required)
	if err != nil {
		writeAuthzError(w, err)
		return
	}

	content, err := chordpro.Transpose(song.Content, req.Semitones)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if req.Persist {
		// Persisting is a content write and gets the same validation gate
		// as Create and Update.
		if result := chordpro.Validate(content); !result.Valid() {
			httputil.WriteJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "transposed content failed validation",
				"issues": result.Issues,
			})
			return
		}
		song.Content = content
		if err := h.songs.Update(r.Context(), song); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	httputil.WriteSuccess(w, transposeResponse{
		Content:   content,
		Semitones: req.Semitones,
		Persisted: req.Persist,
	})
}

// Validate handles GET /songs/{id}/validate: chordpro findings for a
// song the caller can read.
func (h *SongHandlers) Validate(w http.ResponseWriter, r *http.Request) {
	songID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	song, err := h.enforcer.Authorize(r.Context(), songID, callerID(r), permissions.LevelRead)
	if err != nil {
		writeAuthzError(w, err)
		return
	}
	httputil.WriteSuccess(w, chordpro.Validate(song.Content))
}
