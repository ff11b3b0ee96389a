// Package authz is the single choke point for song access decisions.
//
// Every song-scoped operation passes through Enforcer.Authorize, which
// loads authoritative state from the store, resolves the caller's
// effective permission, records exactly one audit event, and fails
// closed. Callers with zero access receive the same ErrNotFound as a
// missing song, so private songs cannot be enumerated; callers with
// partial access receive ErrForbidden, which reveals existence but not
// content.
//
// The enforcer is invoked explicitly at the top of each protected
// handler rather than hidden inside HTTP middleware, keeping the control
// flow visible.
package authz
