// Package permissions defines the permission model for shared songs:
// the closed set of permission levels, the per-song sharing map, and the
// pure resolver that computes the effective level a user holds on a song.
//
// The package is deliberately free of storage and transport concerns so
// that resolution stays a pure, deterministic function. Enforcement
// (loading songs, auditing decisions, failing closed) lives in pkg/authz.
package permissions
