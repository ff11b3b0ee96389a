// Package audit provides append-only security audit logging for
// authorization decisions and sharing activity.
//
// Events flow through a Logger that never fails the guarded operation:
// sink errors are counted and discarded, because losing an audit record
// must not block the primary request. Sinks include PostgreSQL
// (queryable, with retention and archival), rotating files, and a
// fan-out multi sink.
package audit
