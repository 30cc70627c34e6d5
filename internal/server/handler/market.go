package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/preyanshu/verdict/internal/domain"
)

// MarketService is the read side of the market catalogue used by the
// handler.
type MarketService interface {
	ListResolved(ctx context.Context) ([]domain.Market, error)
	GetMarket(ctx context.Context, id string) (domain.Market, error)
}

// MarketHandler serves the graduated-market endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{markets: markets, logger: logger}
}

type marketPage struct {
	Markets []domain.Market `json:"markets"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// paginate slices items by opts. The result is never nil so it encodes as [].
func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset >= len(items) {
		return []T{}
	}
	return items[opts.Offset:min(opts.Offset+opts.Limit, len(items))]
}

// ListMarkets pages through the settled markets the engine has graduated,
// newest first.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	opts := parseListOpts(r)

	resolved, err := h.markets.ListResolved(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "handler: list resolved markets",
			slog.String("error", err.Error()),
		)
		writeError(w, statusFor(err), "failed to list markets")
		return
	}

	writeJSON(w, http.StatusOK, marketPage{
		Markets: paginate(resolved, opts),
		Total:   len(resolved),
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns one market with its repaired resolution conditions.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	m, err := h.markets.GetMarket(r.Context(), id)
	switch code := statusFor(err); {
	case err == nil:
		writeJSON(w, http.StatusOK, m)
	case code == http.StatusNotFound:
		writeError(w, code, "market not found")
	default:
		h.logger.ErrorContext(r.Context(), "handler: get market",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, code, "failed to get market")
	}
}
