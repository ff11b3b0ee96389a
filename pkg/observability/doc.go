// Package observability bundles the operational surface of the service:
// structured logging over slog, Prometheus metrics, health probes,
// OpenTelemetry tracing, panic recovery helpers, and graceful shutdown.
//
// The logger emits JSON and can be enriched from the request context
// (request ID, user ID, trace IDs). Metrics live in a single Metrics
// struct registered against a caller-supplied registry so that tests can
// use isolated registries.
package observability
