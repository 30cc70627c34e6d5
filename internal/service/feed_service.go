package service

import (
	"context"
	"log/slog"

	"github.com/preyanshu/verdict/internal/domain"
)

// FeedCatalog lists the registered oracle feeds.
type FeedCatalog interface {
	All() []domain.OracleFeed
}

// FeedView is a catalog entry with its most recent observation, if any.
type FeedView struct {
	domain.OracleFeed
	LastObserved *float64 `json:"lastObserved,omitempty"`
}

// FeedService joins the catalog with the observed-price cache.
type FeedService struct {
	catalog FeedCatalog
	prices  domain.PriceCache
	logger  *slog.Logger
}

// NewFeedService creates a FeedService. prices may be nil.
func NewFeedService(catalog FeedCatalog, prices domain.PriceCache, logger *slog.Logger) *FeedService {
	return &FeedService{catalog: catalog, prices: prices, logger: logger.With(slog.String("component", "feed_service"))}
}

// List returns every feed in catalog order. A cache failure degrades to the
// bare catalog.
func (s *FeedService) List(ctx context.Context) []FeedView {
	feeds := s.catalog.All()
	out := make([]FeedView, len(feeds))
	for i, f := range feeds {
		out[i] = FeedView{OracleFeed: f}
	}
	if s.prices == nil {
		return out
	}
	ids := make([]int, len(feeds))
	for i, f := range feeds {
		ids[i] = f.ID
	}
	last, err := s.prices.GetPrices(ctx, ids)
	if err != nil {
		s.logger.WarnContext(ctx, "price cache read failed", slog.String("error", err.Error()))
		return out
	}
	for i := range out {
		if p, ok := last[out[i].ID]; ok {
			out[i].LastObserved = &p
		}
	}
	return out
}
