package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"github.com/ideomind/unreal-dashboard/internal/ports/inbound"
)

// HealthHandler serves health check endpoints for ECS/Kubernetes deployments.
//
// Endpoints:
//   - /health/ready  - Returns 200 only when dependencies are reachable (readiness probe)
//   - /health/live   - Returns 200 when the dependency checker is running (liveness probe)
//   - /health        - Combined health status for monitoring
//
// During deployment:
//  1. ECS starts new task
//  2. New task's /health/ready returns 503 until Postgres and Redis answer
//  3. Once ready (200), ECS routes traffic to the new task
//  4. ECS sends SIGTERM to old task
//  5. Old task marks shuttingDown=true, health checks return 503
//  6. Old task drains in-flight verifications and shuts down
type HealthHandler struct {
	checker      inbound.HealthChecker
	shuttingDown *atomic.Bool
	logger       *slog.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(checker inbound.HealthChecker, shuttingDown *atomic.Bool, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if shuttingDown == nil {
		shuttingDown = &atomic.Bool{}
	}
	return &HealthHandler{
		checker:      checker,
		shuttingDown: shuttingDown,
		logger:       logger.With("component", "health"),
	}
}

// RegisterRoutes registers the health routes with the given router.
func (hh *HealthHandler) RegisterRoutes(r chi.Router) {
	r.Get("/health/ready", hh.handleReady)
	r.Get("/health/live", hh.handleLive)
	r.Get("/health", hh.handleHealth)
}

// handleReady handles the readiness probe.
func (hh *HealthHandler) handleReady(w http.ResponseWriter, r *http.Request) {
	if hh.shuttingDown.Load() {
		hh.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	}
	if hh.checker.IsReady() {
		hh.respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	} else {
		hh.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
	}
}

// handleLive handles the liveness probe.
func (hh *HealthHandler) handleLive(w http.ResponseWriter, r *http.Request) {
	if hh.shuttingDown.Load() {
		hh.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	}
	if hh.checker.IsHealthy() {
		hh.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	} else {
		hh.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
}

// handleHealth handles the combined health check endpoint.
func (hh *HealthHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if hh.shuttingDown.Load() {
		hh.respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":       "shutting_down",
			"ready":        false,
			"healthy":      false,
			"shuttingDown": true,
		})
		return
	}

	ready := hh.checker.IsReady()
	healthy := hh.checker.IsHealthy()
	status := "ok"
	statusCode := http.StatusOK

	if !ready || !healthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	hh.respondJSON(w, statusCode, map[string]any{
		"status":       status,
		"ready":        ready,
		"healthy":      healthy,
		"shuttingDown": false,
	})
}

func (hh *HealthHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		hh.logger.Error("failed to encode JSON response", "error", err)
	}
}
