package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) CheckHealth(ctx context.Context) error { return f(ctx) }

func healthy() HealthChecker { return checkerFunc(func(context.Context) error { return nil }) }

func failing(msg string) HealthChecker {
	return checkerFunc(func(context.Context) error { return errors.New(msg) })
}

// withGlobalManager installs a fresh process-wide manager for one test.
func withGlobalManager(t *testing.T, version string) *HealthManager {
	t.Helper()
	original := globalHealthManager
	t.Cleanup(func() { globalHealthManager = original })
	InitHealthManager(version)
	return GetHealthManager()
}

func TestHealthHandler_AllChecksHealthy(t *testing.T) {
	m := NewHealthManager("0.3.0")
	m.RegisterChecker("registry", healthy())
	m.RegisterChecker("identity", healthy())

	rec := httptest.NewRecorder()
	m.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "healthy" || resp.Version != "0.3.0" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Checks["registry"] != "healthy" || resp.Checks["identity"] != "healthy" {
		t.Fatalf("unexpected checks %v", resp.Checks)
	}
}

func TestHealthHandler_UnreadableRegistry(t *testing.T) {
	m := NewHealthManager("0.3.0")
	m.RegisterChecker("registry", failing("job registry unreadable"))
	m.RegisterChecker("identity", healthy())

	rec := httptest.NewRecorder()
	m.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Checks map[string]string `json:"checks"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != "SERVICE_UNAVAILABLE" {
		t.Fatalf("expected SERVICE_UNAVAILABLE, got %s", resp.Error.Code)
	}
	if resp.Error.Details.Checks["registry"] != "unhealthy" {
		t.Fatalf("expected registry unhealthy, got %v", resp.Error.Details.Checks)
	}
	if resp.Error.Details.Checks["identity"] != "healthy" {
		t.Fatalf("expected identity healthy, got %v", resp.Error.Details.Checks)
	}
}

func TestHealthHandler_SlowCheckIsDegraded(t *testing.T) {
	m := NewHealthManager("dev")
	m.RegisterChecker("slow", checkerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	results := m.runChecks(ctx)

	if results["slow"] != "timeout" {
		t.Fatalf("expected timeout, got %s", results["slow"])
	}
	if got := m.determineOverallStatus(results); got != "degraded" {
		t.Fatalf("expected degraded, got %s", got)
	}
}

func TestDetermineOverallStatus(t *testing.T) {
	m := NewHealthManager("dev")
	tests := []struct {
		results map[string]string
		want    string
	}{
		{map[string]string{}, "healthy"},
		{map[string]string{"a": "healthy", "b": "timeout"}, "degraded"},
		{map[string]string{"a": "timeout", "b": "unhealthy"}, "unhealthy"},
	}
	for _, tt := range tests {
		if got := m.determineOverallStatus(tt.results); got != tt.want {
			t.Fatalf("%v: expected %s, got %s", tt.results, tt.want, got)
		}
	}
}

func TestRegisterCheckerReplaces(t *testing.T) {
	m := NewHealthManager("dev")
	m.RegisterChecker("registry", failing("down"))
	m.RegisterChecker("registry", healthy())

	if got := m.runChecks(context.Background())["registry"]; got != "healthy" {
		t.Fatalf("expected replaced checker to be healthy, got %s", got)
	}
}

func TestGlobalHandlers(t *testing.T) {
	m := withGlobalManager(t, "0.3.0")
	m.RegisterChecker("registry", healthy())

	for name, h := range map[string]http.HandlerFunc{
		"/health":         HealthHandler,
		"/health/live":    LivenessHandler,
		"/health/ready":   ReadinessHandler,
		"/health/startup": StartupHandler,
	} {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, name, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", name, rec.Code)
		}
	}
}

func TestLivenessIgnoresChecks(t *testing.T) {
	m := withGlobalManager(t, "0.3.0")
	m.RegisterChecker("registry", failing("down"))

	rec := httptest.NewRecorder()
	LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected readiness 503, got %d", rec.Code)
	}
}

func TestGlobalHandlers_NotInitialized(t *testing.T) {
	original := globalHealthManager
	defer func() { globalHealthManager = original }()
	globalHealthManager = nil

	if GetHealthManager() != nil {
		t.Fatal("expected nil manager")
	}
	for _, h := range []http.HandlerFunc{HealthHandler, LivenessHandler, ReadinessHandler, StartupHandler} {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503 when not initialized, got %d", rec.Code)
		}
	}
}
