package handlers

import (
	"context"
	"net/http"
	"time"
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

type HealthHandler struct {
	checks  map[string]Check
	engine  func() bool
	startAt time.Time
}

// NewHealthHandler takes named dependency checks and a probe for whether the
// media engine has been loaded.
func NewHealthHandler(checks map[string]Check, engineLoaded func() bool) *HealthHandler {
	return &HealthHandler{
		checks:  checks,
		engine:  engineLoaded,
		startAt: time.Now(),
	}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	overall := "healthy"
	checks := make(map[string]interface{}, len(h.checks))
	for name, check := range h.checks {
		start := time.Now()
		err := check(ctx)
		result := map[string]interface{}{
			"status":     "up",
			"latency_ms": time.Since(start).Milliseconds(),
		}
		if err != nil {
			result["status"] = "down"
			result["error"] = "connection failed"
			overall = "degraded"
		}
		checks[name] = result
	}

	engineLoaded := false
	if h.engine != nil {
		engineLoaded = h.engine()
	}

	status := http.StatusOK
	if overall != "healthy" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"status":         overall,
		"checks":         checks,
		"engine_loaded":  engineLoaded,
		"uptime_seconds": int(time.Since(h.startAt).Seconds()),
	})
}
