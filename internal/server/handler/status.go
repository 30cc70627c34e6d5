package handler

import (
	"net/http"

	"github.com/preyanshu/verdict/internal/domain"
)

// StatusHandler serves the running service summary.
type StatusHandler struct {
	snapshot func() domain.ServiceStatus
}

// NewStatusHandler creates a StatusHandler reporting snapshot().
func NewStatusHandler(snapshot func() domain.ServiceStatus) *StatusHandler {
	return &StatusHandler{snapshot: snapshot}
}

// GetStatus responds with the mode, chain and live counters.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot())
}
