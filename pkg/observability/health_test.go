package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
)

func TestLivenessAlwaysOK(t *testing.T) {
	checker := NewHealthChecker(nil, nil, "test")

	rec := httptest.NewRecorder()
	checker.Liveness(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestCheckHealthyDatabase(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

	checker := NewHealthChecker(db, nil, "test")
	status := checker.Check(context.Background())

	if status.Status != StatusHealthy {
		t.Errorf("status = %s, want %s", status.Status, StatusHealthy)
	}
	if status.Dependencies["database"].Status != StatusHealthy {
		t.Errorf("database status = %s, want %s", status.Dependencies["database"].Status, StatusHealthy)
	}
}

func TestCheckUnhealthyDatabase(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectPing().WillReturnError(context.DeadlineExceeded)

	checker := NewHealthChecker(db, nil, "test")
	status := checker.Check(context.Background())

	if status.Status != StatusUnhealthy {
		t.Errorf("status = %s, want %s", status.Status, StatusUnhealthy)
	}
}

func TestCheckRedisDownIsDegraded(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectPing()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close() // Redis is unreachable from here on.

	checker := NewHealthChecker(db, client, "test")
	status := checker.Check(context.Background())

	if status.Status != StatusDegraded {
		t.Errorf("status = %s, want %s", status.Status, StatusDegraded)
	}
	if status.Dependencies["redis"].Status != StatusUnhealthy {
		t.Errorf("redis status = %s, want %s", status.Dependencies["redis"].Status, StatusUnhealthy)
	}
}

func TestReadinessStatusCodes(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectPing().WillReturnError(context.DeadlineExceeded)

	checker := NewHealthChecker(db, nil, "test")
	rec := httptest.NewRecorder()
	checker.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestCheckHealthyRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	checker := NewHealthChecker(nil, client, "test")
	status := checker.Check(context.Background())

	if status.Status != StatusHealthy {
		t.Errorf("status = %s, want %s", status.Status, StatusHealthy)
	}
}
