package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/chordme/chordme/pkg/audit"
	"github.com/chordme/chordme/pkg/httputil"
	"github.com/chordme/chordme/pkg/middleware"
)

// AuditHandlers serves the audit trail query surface. Callers only see
// events they appear in as the actor; the full trail is an operator
// concern, reachable through the store directly.
type AuditHandlers struct {
	store audit.Store
}

// NewAuditHandlers creates the audit handlers.
func NewAuditHandlers(store audit.Store) *AuditHandlers {
	return &AuditHandlers{store: store}
}

// RegisterRoutes registers the audit routes.
func (h *AuditHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/audit", h.Search).Methods("GET")
	router.HandleFunc("/audit/export", h.Export).Methods("GET")
	router.HandleFunc("/audit/stats", h.Stats).Methods("GET")
}

// parseFilter builds a SearchFilter from the query string, pinning the
// actor to the authenticated caller.
func parseFilter(r *http.Request, actorID int64) (audit.SearchFilter, error) {
	filter := audit.SearchFilter{ActorUserID: &actorID}

	var err error
	if filter.Limit, err = httputil.ParseQueryInt(r, "limit", 100); err != nil {
		return filter, err
	}
	if filter.Offset, err = httputil.ParseQueryInt(r, "offset", 0); err != nil {
		return filter, err
	}
	if filter.Limit < 1 || filter.Limit > 1000 {
		filter.Limit = 100
	}

	if raw := r.URL.Query().Get("song_id"); raw != "" {
		songID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, err
		}
		filter.SongID = &songID
	}
	if raw := r.URL.Query().Get("event_type"); raw != "" {
		filter.EventTypes = []audit.EventType{audit.EventType(raw)}
	}
	if raw := r.URL.Query().Get("severity"); raw != "" {
		severity := audit.Severity(raw)
		filter.Severity = &severity
	}
	if raw := r.URL.Query().Get("start_time"); raw != "" {
		start, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.StartTime = &start
	}
	if raw := r.URL.Query().Get("end_time"); raw != "" {
		end, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, err
		}
		filter.EndTime = &end
	}
	filter.SortOrder = httputil.ParseQueryString(r, "sort", "desc")
	return filter, nil
}

// Search handles GET /audit.
func (h *AuditHandlers) Search(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.AuthFromRequest(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	filter, err := parseFilter(r, authCtx.User.ID)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid filter parameter")
		return
	}

	events, err := h.store.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// Export handles GET /audit/export?format=json|csv|ndjson.
func (h *AuditHandlers) Export(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.AuthFromRequest(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	filter, err := parseFilter(r, authCtx.User.ID)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid filter parameter")
		return
	}

	format := audit.ExportFormat(httputil.ParseQueryString(r, "format", string(audit.ExportFormatJSON)))
	var contentType string
	switch format {
	case audit.ExportFormatJSON:
		contentType = "application/json"
	case audit.ExportFormatCSV:
		contentType = "text/csv"
	case audit.ExportFormatNDJSON:
		contentType = "application/x-ndjson"
	default:
		httputil.WriteBadRequest(w, "format must be json, csv or ndjson")
		return
	}

	data, err := h.store.Export(r.Context(), filter, format)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="audit-export.`+string(format)+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Stats handles GET /audit/stats.
func (h *AuditHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.AuthFromRequest(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var start, end *time.Time
	if raw := r.URL.Query().Get("start_time"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid start_time")
			return
		}
		start = &parsed
	}
	if raw := r.URL.Query().Get("end_time"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid end_time")
			return
		}
		end = &parsed
	}

	stats, err := h.store.GetStats(r.Context(), start, end)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, stats)
}
