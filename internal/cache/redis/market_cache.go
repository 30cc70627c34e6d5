package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/preyanshu/verdict/internal/domain"
)

// graduatedKey holds the JSON list of graduated markets.
const graduatedKey = "market:graduated"

// MarketCache stores engine markets as JSON strings at "market:{id}".
type MarketCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewMarketCache creates a MarketCache whose entries expire after ttl.
func NewMarketCache(c *Client, ttl time.Duration) *MarketCache {
	return &MarketCache{rdb: c.Underlying(), ttl: ttl}
}

func marketKey(id string) string { return "market:" + id }

// Set caches one market.
func (mc *MarketCache) Set(ctx context.Context, market domain.Market) error {
	data, err := json.Marshal(market)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", market.ID, err)
	}
	if err := mc.rdb.Set(ctx, marketKey(market.ID), string(data), mc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", market.ID, err)
	}
	return nil
}

// Get returns a cached market or domain.ErrNotFound.
func (mc *MarketCache) Get(ctx context.Context, id string) (domain.Market, error) {
	var m domain.Market
	if err := mc.getJSON(ctx, marketKey(id), &m); err != nil {
		return domain.Market{}, fmt.Errorf("redis: get market %s: %w", id, err)
	}
	return m, nil
}

// SetGraduated caches the full graduated listing.
func (mc *MarketCache) SetGraduated(ctx context.Context, markets []domain.Market) error {
	data, err := json.Marshal(markets)
	if err != nil {
		return fmt.Errorf("redis: marshal graduated: %w", err)
	}
	if err := mc.rdb.Set(ctx, graduatedKey, string(data), mc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set graduated: %w", err)
	}
	return nil
}

// Graduated returns the cached listing or domain.ErrNotFound.
func (mc *MarketCache) Graduated(ctx context.Context) ([]domain.Market, error) {
	var out []domain.Market
	if err := mc.getJSON(ctx, graduatedKey, &out); err != nil {
		return nil, fmt.Errorf("redis: get graduated: %w", err)
	}
	return out, nil
}

// Invalidate drops a market and the listing that may contain it.
func (mc *MarketCache) Invalidate(ctx context.Context, id string) error {
	if err := mc.rdb.Del(ctx, marketKey(id), graduatedKey).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", id, err)
	}
	return nil
}

func (mc *MarketCache) getJSON(ctx context.Context, key string, v any) error {
	data, err := mc.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

var _ domain.MarketCache = (*MarketCache)(nil)
