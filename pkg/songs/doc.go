// Package songs defines the song document model, its sharing state, and
// the persistence contract implemented by pkg/storage/postgres.
//
// A Song is exclusively owned by its store: components hold transient
// references during a single operation and reload authoritative state per
// request, so permission changes are never served from stale in-process
// copies.
package songs
