// Package postgres implements the song, user, and token stores on
// PostgreSQL, plus the Redis client used for rate limiting.
//
// Sharing grants are stored inline on the songs row as JSONB, so a
// song's full permission state loads with a single row read and writes
// back with a single row write. Songs are soft deleted; a deleted song
// is indistinguishable from a missing one through the store API.
//
// All store errors are mapped to the songs package sentinels: absence
// surfaces as songs.ErrNotFound and anything else (connection loss,
// timeouts, malformed rows) as songs.ErrUnavailable, so callers can
// keep outages distinct from missing rows.
package postgres
