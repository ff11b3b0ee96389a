// Package api implements the ChordMe HTTP surface: song CRUD, sharing
// and visibility management, share-link redemption, transposition, the
// audit query endpoints and account/token management.
//
// Handlers are thin. Every access decision on a song goes through
// authz.Enforcer so the not-found/forbidden distinction and the audit
// trail are produced in exactly one place; handlers only translate the
// enforcer's sentinel errors to HTTP status codes.
package api
