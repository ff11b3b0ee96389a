package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Authorization metrics
	AuthzDecisionsTotal *prometheus.CounterVec

	// Audit metrics
	AuditEventsTotal  *prometheus.CounterVec
	AuditDroppedTotal prometheus.Gauge

	// Token cache metrics
	TokenCacheHitsTotal   prometheus.Counter
	TokenCacheMissesTotal prometheus.Counter

	// Rate limit metrics
	RateLimitRejectionsTotal *prometheus.CounterVec

	// Database metrics
	DBConnectionsActive       prometheus.Gauge
	DBConnectionsIdle         prometheus.Gauge
	DBConnectionsWaitCount    prometheus.Gauge
	DBConnectionsWaitDuration prometheus.Gauge

	// Business metrics
	SongsTotal       prometheus.Gauge
	ActiveUsersTotal prometheus.Gauge
	APITokensActive  prometheus.Gauge
}

// NewMetrics creates and registers all metrics against the registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chordme_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chordme_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chordme_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chordme_authz_decisions_total",
				Help: "Total number of authorization decisions",
			},
			[]string{"outcome"},
		),

		AuditEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chordme_audit_events_total",
				Help: "Total number of audit events emitted",
			},
			[]string{"event_type", "severity"},
		),
		AuditDroppedTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chordme_audit_dropped_total",
				Help: "Audit events that failed to reach their sink",
			},
		),

		TokenCacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chordme_token_cache_hits_total",
				Help: "Token validations served from cache",
			},
		),
		TokenCacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "chordme_token_cache_misses_total",
				Help: "Token validations that hit the database",
			},
		),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chordme_rate_limit_rejections_total",
				Help: "Requests rejected by the rate limiter",
			},
			[]string{"scope"},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chordme_db_connections_active",
				Help: "Number of open database connections in use",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chordme_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chordme_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
		DBConnectionsWaitDuration: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chordme_db_connections_wait_duration_seconds",
				Help: "Total time spent waiting for connections",
			},
		),

		SongsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chordme_songs_total",
				Help: "Total number of songs",
			},
		),
		ActiveUsersTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chordme_active_users_total",
				Help: "Total number of active users",
			},
		),
		APITokensActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "chordme_api_tokens_active",
				Help: "Number of active API tokens",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.AuthzDecisionsTotal,
		m.AuditEventsTotal,
		m.AuditDroppedTotal,
		m.TokenCacheHitsTotal,
		m.TokenCacheMissesTotal,
		m.RateLimitRejectionsTotal,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
		m.DBConnectionsWaitDuration,
		m.SongsTotal,
		m.ActiveUsersTotal,
		m.APITokensActive,
	)

	return m
}

// ObserveDBStats copies connection pool stats into the gauges. Intended
// to run on a ticker from the composition root.
func (m *Metrics) ObserveDBStats(stats sql.DBStats) {
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
	m.DBConnectionsWaitDuration.Set(stats.WaitDuration.Seconds())
}

// responseWriter wraps http.ResponseWriter to capture status and size.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeTemplate returns the mux route template for the request so that
// path label cardinality stays bounded. Falls back to the raw path for
// unrouted requests.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if template, err := route.GetPathTemplate(); err == nil {
			return template
		}
	}
	return r.URL.Path
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := routeTemplate(r)
			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler returns the scrape handler for the registry.
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
