package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/preyanshu/verdict/internal/domain"
)

// AuditService is what the audit endpoints need.
type AuditService interface {
	Audit(ctx context.Context, marketID string) (domain.AuditResult, error)
	LastResult(marketID string) (domain.AuditResult, bool)
}

// AuditHandler serves audit endpoints.
type AuditHandler struct {
	audits AuditService
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(audits AuditService, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audits: audits, logger: logger}
}

// RunAudit re-evaluates the market against live feeds.
// POST /api/markets/{id}/audit
func (h *AuditHandler) RunAudit(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	res, err := h.audits.Audit(r.Context(), id)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusNotFound {
			writeError(w, status, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: audit failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, status, "audit failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// LastAudit returns the most recent audit of the market.
// GET /api/markets/{id}/audit
func (h *AuditHandler) LastAudit(w http.ResponseWriter, r *http.Request) {
	res, ok := h.audits.LastResult(pathParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "no audit for market")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
