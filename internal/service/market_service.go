package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"github.com/preyanshu/verdict/internal/domain"
)

// MarketSource is the upstream market engine.
type MarketSource interface {
	Graduated(ctx context.Context) ([]domain.Market, error)
	Market(ctx context.Context, id string) (domain.Market, error)
}

// ConditionRepairer normalises a market's resolution conditions.
type ConditionRepairer interface {
	RepairMarket(m domain.Market) domain.Market
}

// EngineObserver records where a market lookup was served from.
type EngineObserver interface {
	ObserveEngine(source string, err error)
}

// MarketService serves engine markets through the Redis cache, with every
// market's conditions repaired before anyone sees it.
type MarketService struct {
	engine   MarketSource
	cache    domain.MarketCache
	repairer ConditionRepairer
	observer EngineObserver
	group    singleflight.Group
	logger   *slog.Logger
}

// NewMarketService creates a MarketService. cache and observer may be nil.
func NewMarketService(
	engine MarketSource,
	cache domain.MarketCache,
	repairer ConditionRepairer,
	observer EngineObserver,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		engine:   engine,
		cache:    cache,
		repairer: repairer,
		observer: observer,
		logger:   logger.With(slog.String("component", "market_service")),
	}
}

// ListResolved returns the engine's graduated markets.
func (s *MarketService) ListResolved(ctx context.Context) ([]domain.Market, error) {
	if s.cache != nil {
		if markets, err := s.cache.Graduated(ctx); err == nil {
			s.observe("cache", nil)
			return markets, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "market cache read failed", slog.String("error", err.Error()))
		}
	}

	v, err, _ := s.group.Do("graduated", func() (any, error) {
		markets, err := s.engine.Graduated(ctx)
		s.observe("engine", err)
		if err != nil {
			return nil, err
		}
		for i := range markets {
			markets[i] = s.repairer.RepairMarket(markets[i])
		}
		if s.cache != nil {
			if err := s.cache.SetGraduated(ctx, markets); err != nil {
				s.logger.WarnContext(ctx, "market cache write failed", slog.String("error", err.Error()))
			}
		}
		return markets, nil
	})
	if err != nil {
		return nil, fmt.Errorf("market_service: list resolved: %w", err)
	}
	return v.([]domain.Market), nil
}

// GetMarket returns one market, cache first. Only settled markets are
// cached: a winner never changes once set, while an undecided market must be
// re-read so a resolution is seen as soon as the engine records it.
func (s *MarketService) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	if s.cache != nil {
		m, err := s.cache.Get(ctx, id)
		switch {
		case err == nil && m.Settled():
			s.observe("cache", nil)
			return m, nil
		case err == nil:
			// Written before settlement; drop it along with the listing.
			if err := s.cache.Invalidate(ctx, id); err != nil {
				s.logger.WarnContext(ctx, "market cache invalidate failed",
					slog.String("market_id", id),
					slog.String("error", err.Error()),
				)
			}
		case !errors.Is(err, domain.ErrNotFound):
			s.logger.WarnContext(ctx, "market cache read failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	v, err, _ := s.group.Do("market:"+id, func() (any, error) {
		m, err := s.engine.Market(ctx, id)
		s.observe("engine", err)
		if err != nil {
			return domain.Market{}, err
		}
		m = s.repairer.RepairMarket(m)
		if s.cache != nil && m.Settled() {
			if err := s.cache.Set(ctx, m); err != nil {
				s.logger.WarnContext(ctx, "market cache write failed",
					slog.String("market_id", id),
					slog.String("error", err.Error()),
				)
			}
		}
		return m, nil
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %q: %w", id, err)
	}
	return v.(domain.Market), nil
}

func (s *MarketService) observe(source string, err error) {
	if s.observer != nil {
		s.observer.ObserveEngine(source, err)
	}
}
