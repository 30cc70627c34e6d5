package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/preyanshu/verdict/internal/domain"
)

// PriceCache keeps the last value observed per oracle feed in a hash at
// "oracle:price:{sourceID}" with fields "value" and "ts" (unix millis).
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache. A ttl of zero keeps entries forever.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{rdb: c.Underlying(), ttl: ttl}
}

func priceKey(sourceID int) string {
	return "oracle:price:" + strconv.Itoa(sourceID)
}

// SetPrice records an observation.
func (pc *PriceCache) SetPrice(ctx context.Context, sourceID int, price float64, ts time.Time) error {
	key := priceKey(sourceID)
	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key,
		"value", strconv.FormatFloat(price, 'f', -1, 64),
		"ts", strconv.FormatInt(ts.UnixMilli(), 10),
	)
	if pc.ttl > 0 {
		pipe.Expire(ctx, key, pc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %d: %w", sourceID, err)
	}
	return nil
}

// GetPrice returns the last observation for sourceID, or domain.ErrNotFound.
func (pc *PriceCache) GetPrice(ctx context.Context, sourceID int) (float64, time.Time, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(sourceID)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("redis: get price %d: %w", sourceID, err)
	}
	price, ts, ok := parseObservation(vals)
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return price, ts, nil
}

// GetPrices fetches several feeds in one round trip. Feeds without a stored
// observation are left out of the result.
func (pc *PriceCache) GetPrices(ctx context.Context, sourceIDs []int) (map[int]float64, error) {
	out := make(map[int]float64, len(sourceIDs))
	if len(sourceIDs) == 0 {
		return out, nil
	}

	pipe := pc.rdb.Pipeline()
	cmds := make(map[int]*redis.MapStringStringCmd, len(sourceIDs))
	for _, id := range sourceIDs {
		cmds[id] = pipe.HGetAll(ctx, priceKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices: %w", err)
	}

	for id, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			continue
		}
		if price, _, ok := parseObservation(vals); ok {
			out[id] = price
		}
	}
	return out, nil
}

func parseObservation(vals map[string]string) (float64, time.Time, bool) {
	raw, ok := vals["value"]
	if !ok {
		return 0, time.Time{}, false
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, time.Time{}, false
	}
	var ts time.Time
	if ms, err := strconv.ParseInt(vals["ts"], 10, 64); err == nil {
		ts = time.UnixMilli(ms).UTC()
	}
	return price, ts, true
}

var _ domain.PriceCache = (*PriceCache)(nil)
