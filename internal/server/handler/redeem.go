package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/preyanshu/verdict/internal/domain"
	"github.com/preyanshu/verdict/internal/redemption"
)

// RedemptionService is what the redemption endpoints need.
type RedemptionService interface {
	Start(marketID, wallet string) (domain.RedemptionAttempt, error)
	Current(marketID, wallet string) domain.RedemptionAttempt
	Reset(marketID, wallet string) error
	History(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.RedemptionAttempt, error)
}

// RedeemHandler serves redemption endpoints.
type RedeemHandler struct {
	redemptions RedemptionService
	logger      *slog.Logger
}

// NewRedeemHandler creates a RedeemHandler.
func NewRedeemHandler(redemptions RedemptionService, logger *slog.Logger) *RedeemHandler {
	return &RedeemHandler{redemptions: redemptions, logger: logger}
}

type redeemRequest struct {
	Wallet string `json:"wallet"`
}

// Redeem starts a redemption and returns its first state. The attempt
// continues in the background; clients poll GET or listen on /ws.
// POST /api/markets/{id}/redeem
func (h *RedeemHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	var req redeemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	wallet, ok := walletParam(req.Wallet)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}

	a, err := h.redemptions.Start(marketID, wallet)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "handler: start redemption failed",
				slog.String("market_id", marketID),
				slog.String("wallet", wallet),
				slog.String("error", err.Error()),
			)
		}
		writeError(w, status, redemption.UserMessage(err))
		return
	}
	writeJSON(w, http.StatusAccepted, a)
}

// Current returns the live attempt for the wallet, idle when none exists.
// GET /api/markets/{id}/redeem?wallet=0x...
func (h *RedeemHandler) Current(w http.ResponseWriter, r *http.Request) {
	wallet, ok := walletParam(r.URL.Query().Get("wallet"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}
	writeJSON(w, http.StatusOK, h.redemptions.Current(pathParam(r, "id"), wallet))
}

// Reset clears a finished attempt so the market can be redeemed again.
// DELETE /api/markets/{id}/redeem?wallet=0x...
func (h *RedeemHandler) Reset(w http.ResponseWriter, r *http.Request) {
	wallet, ok := walletParam(r.URL.Query().Get("wallet"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}
	if err := h.redemptions.Reset(pathParam(r, "id"), wallet); err != nil {
		writeError(w, statusFor(err), redemption.UserMessage(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// History lists persisted attempts for a wallet.
// GET /api/redemptions?wallet=0x...&limit=50&offset=0
func (h *RedeemHandler) History(w http.ResponseWriter, r *http.Request) {
	wallet, ok := walletParam(r.URL.Query().Get("wallet"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid wallet address")
		return
	}
	opts := parseListOpts(r)
	list, err := h.redemptions.History(r.Context(), wallet, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: redemption history failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeError(w, statusFor(err), "failed to list redemptions")
		return
	}
	if list == nil {
		list = []domain.RedemptionAttempt{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"redemptions": list,
		"limit":       opts.Limit,
		"offset":      opts.Offset,
	})
}
