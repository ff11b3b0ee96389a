// Package httputil provides helpers for standardized JSON request and
// response handling.
//
// Responses:
//
//	httputil.WriteSuccess(w, data)
//	httputil.WriteNotFoundError(w, "song not found")
//	httputil.WriteForbidden(w, "insufficient permission")
//
// Requests:
//
//	var req updateSharingRequest
//	if !httputil.ParseJSONStrictOrError(w, r, &req) {
//	    return
//	}
//	songID, ok := httputil.ParsePathInt64OrError(w, r, "id")
//
// ParseJSONStrict rejects unknown fields and reports which field was
// unexpected, which lets the API layer treat stray fields in permission
// payloads as bypass attempts rather than silently dropping them.
package httputil
