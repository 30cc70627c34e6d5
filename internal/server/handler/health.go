package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// Check probes one backing dependency.
type Check func(ctx context.Context) error

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	checks  map[string]Check
	timeout time.Duration
	logger  *slog.Logger
}

// NewHealthHandler creates a HealthHandler. checks maps a dependency name
// (redis, postgres, s3) to its probe and may be empty.
func NewHealthHandler(checks map[string]Check, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second, logger: logger}
}

// HealthCheck runs every probe and reports ok only when all pass.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "ok"
	deps := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			deps[name] = "down"
			status = "degraded"
			continue
		}
		deps[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":       status,
		"dependencies": deps,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
