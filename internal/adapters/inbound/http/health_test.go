package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/ideomind/unreal-dashboard/internal/testutil"
)

// mockHealthChecker is a test implementation of HealthChecker
type mockHealthChecker struct {
	ready   bool
	healthy bool
}

func (m *mockHealthChecker) IsReady() bool   { return m.ready }
func (m *mockHealthChecker) IsHealthy() bool { return m.healthy }

func serveHealth(t *testing.T, checker *mockHealthChecker, shuttingDown bool, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var flag atomic.Bool
	flag.Store(shuttingDown)

	hh := NewHealthHandler(checker, &flag, testutil.DiscardLogger())
	router := NewRouter(nil, hh, 0, testutil.DiscardLogger())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return w, body
}

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		name           string
		ready          bool
		shuttingDown   bool
		expectedStatus int
		expectedBody   string
	}{
		{"ready returns 200", true, false, http.StatusOK, "ready"},
		{"not ready returns 503", false, false, http.StatusServiceUnavailable, "not_ready"},
		{"shutting down returns 503", true, true, http.StatusServiceUnavailable, "shutting_down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := serveHealth(t, &mockHealthChecker{ready: tt.ready, healthy: true}, tt.shuttingDown, "/health/ready")

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if body["status"] != tt.expectedBody {
				t.Errorf("expected status %q, got %q", tt.expectedBody, body["status"])
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected application/json, got %q", ct)
			}
		})
	}
}

func TestHealthHandler_Live(t *testing.T) {
	tests := []struct {
		name           string
		healthy        bool
		shuttingDown   bool
		expectedStatus int
		expectedBody   string
	}{
		{"healthy returns 200", true, false, http.StatusOK, "healthy"},
		{"unhealthy returns 503", false, false, http.StatusServiceUnavailable, "unhealthy"},
		{"shutting down returns 503", true, true, http.StatusServiceUnavailable, "shutting_down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := serveHealth(t, &mockHealthChecker{ready: true, healthy: tt.healthy}, tt.shuttingDown, "/health/live")

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if body["status"] != tt.expectedBody {
				t.Errorf("expected status %q, got %q", tt.expectedBody, body["status"])
			}
		})
	}
}

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name           string
		ready          bool
		healthy        bool
		shuttingDown   bool
		expectedStatus int
		expectedBody   string
	}{
		{"all good returns ok", true, true, false, http.StatusOK, "ok"},
		{"not ready is degraded", false, true, false, http.StatusServiceUnavailable, "degraded"},
		{"unhealthy is degraded", true, false, false, http.StatusServiceUnavailable, "degraded"},
		{"shutting down", true, true, true, http.StatusServiceUnavailable, "shutting_down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := serveHealth(t, &mockHealthChecker{ready: tt.ready, healthy: tt.healthy}, tt.shuttingDown, "/health")

			if w.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, w.Code)
			}
			if body["status"] != tt.expectedBody {
				t.Errorf("expected status %q, got %q", tt.expectedBody, body["status"])
			}
			if body["shuttingDown"] != tt.shuttingDown {
				t.Errorf("expected shuttingDown=%v, got %v", tt.shuttingDown, body["shuttingDown"])
			}
			wantReady := tt.ready && !tt.shuttingDown
			if body["ready"] != wantReady {
				t.Errorf("expected ready=%v, got %v", wantReady, body["ready"])
			}
		})
	}
}

func TestHealthHandler_ShutdownTransition(t *testing.T) {
	var shuttingDown atomic.Bool
	hh := NewHealthHandler(&mockHealthChecker{ready: true, healthy: true}, &shuttingDown, testutil.DiscardLogger())
	router := NewRouter(nil, hh, 0, testutil.DiscardLogger())

	probe := func() int {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		return w.Code
	}

	if code := probe(); code != http.StatusOK {
		t.Fatalf("expected 200 before shutdown, got %d", code)
	}
	shuttingDown.Store(true)
	if code := probe(); code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 after shutdown, got %d", code)
	}
}
