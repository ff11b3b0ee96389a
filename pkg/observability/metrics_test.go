package observability

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetricsRegistersEverything(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}

	// Touch a few metrics so they show up in the gather.
	metrics.AuthzDecisionsTotal.WithLabelValues("granted").Inc()
	metrics.AuditEventsTotal.WithLabelValues("authz.access_denied", "WARNING").Inc()
	metrics.SongsTotal.Set(3)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("no metric families registered")
	}
}

func TestNewMetricsDoubleRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewMetrics(registry)
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/api/v1/songs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}).Methods(http.MethodGet)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/songs/42", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	// The path label is the route template, not the concrete URL.
	count := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/songs/{id}", "404"))
	if count != 1 {
		t.Errorf("HTTPRequestsTotal = %v, want 1", count)
	}
}

func TestObserveDBStats(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.ObserveDBStats(sql.DBStats{
		InUse:        5,
		Idle:         2,
		WaitCount:    7,
		WaitDuration: 1500 * time.Millisecond,
	})

	if got := testutil.ToFloat64(metrics.DBConnectionsActive); got != 5 {
		t.Errorf("DBConnectionsActive = %v, want 5", got)
	}
	if got := testutil.ToFloat64(metrics.DBConnectionsIdle); got != 2 {
		t.Errorf("DBConnectionsIdle = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.DBConnectionsWaitDuration); got != 1.5 {
		t.Errorf("DBConnectionsWaitDuration = %v, want 1.5", got)
	}
}

func TestMetricsHandlerServesScrape(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.AuthzDecisionsTotal.WithLabelValues("denied").Inc()

	rec := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body == "" {
		t.Error("empty scrape body")
	}
}
