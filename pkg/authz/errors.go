package authz

import "errors"

var (
	// ErrNotFound covers both a song id that does not resolve and an
	// existing song the caller has zero access to. The two cases are
	// deliberately indistinguishable to prevent existence enumeration.
	ErrNotFound = errors.New("authz: song not found")

	// ErrForbidden means the caller has some access to the song but not
	// the level the operation requires.
	ErrForbidden = errors.New("authz: insufficient permission")

	// ErrStoreUnavailable means the song store could not be reached. It
	// is fatal for the current operation and is never collapsed into
	// ErrNotFound.
	ErrStoreUnavailable = errors.New("authz: store unavailable")
)
