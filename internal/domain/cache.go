package domain

import (
	"context"
	"time"
)

// PriceCache remembers the latest observation of each oracle feed, keyed by
// source id.
type PriceCache interface {
	SetPrice(ctx context.Context, sourceID int, price float64, ts time.Time) error
	GetPrice(ctx context.Context, sourceID int) (float64, time.Time, error)
	// GetPrices omits ids with no observation.
	GetPrices(ctx context.Context, sourceIDs []int) (map[int]float64, error)
}

// MarketCache holds repaired markets so reads do not hit the engine. Misses
// are reported as ErrNotFound.
type MarketCache interface {
	Get(ctx context.Context, id string) (Market, error)
	Set(ctx context.Context, market Market) error
	Invalidate(ctx context.Context, id string) error

	Graduated(ctx context.Context) ([]Market, error)
	SetGraduated(ctx context.Context, markets []Market) error
}

// RateLimiter answers whether key may make another call within window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager hands out exclusive leases that expire after ttl. Acquire
// fails with ErrLockHeld while another holder owns key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamEntry is one record of a replayable event stream.
type StreamEntry struct {
	ID      string
	Payload []byte
}

// SignalBus fans events out to live subscribers and keeps a bounded,
// replayable history per stream.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)

	StreamAppend(ctx context.Context, stream string, payload []byte) error
	// StreamRead returns up to count entries after lastID ("0" for the
	// beginning of the stream).
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamEntry, error)
}
