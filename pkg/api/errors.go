package api

import (
	"errors"
	"net/http"

	"github.com/chordme/chordme/pkg/authz"
	"github.com/chordme/chordme/pkg/httputil"
	"github.com/chordme/chordme/pkg/permissions"
	"github.com/chordme/chordme/pkg/songs"
)

// writeAuthzError translates the enforcer's sentinel errors to HTTP.
// The 404 message is identical for missing songs and songs the caller
// cannot see at all.
func writeAuthzError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authz.ErrNotFound):
		httputil.WriteNotFoundError(w, "song not found")
	case errors.Is(err, authz.ErrForbidden):
		httputil.WriteForbidden(w, "insufficient permissions")
	case errors.Is(err, permissions.ErrInvalidLevel):
		httputil.WriteBadRequest(w, err.Error())
	case errors.Is(err, songs.ErrOwnerGrant):
		httputil.WriteBadRequest(w, "the owner cannot be granted permissions")
	case errors.Is(err, authz.ErrStoreUnavailable):
		httputil.WriteServiceUnavailable(w, "storage temporarily unavailable")
	default:
		httputil.WriteInternalError(w, err)
	}
}

// writeStoreError translates raw store errors on paths that do not go
// through the enforcer (creation, listing, share-link redemption).
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, songs.ErrNotFound):
		httputil.WriteNotFoundError(w, "song not found")
	case errors.Is(err, songs.ErrUnavailable):
		httputil.WriteServiceUnavailable(w, "storage temporarily unavailable")
	default:
		httputil.WriteInternalError(w, err)
	}
}
