package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/preyanshu/verdict/internal/domain"
)

const maxFeedBody = 1 << 20

// errCallerGone marks a request abandoned because the caller's context
// ended. The feed itself did not fail, so the breaker ignores it.
var errCallerGone = errors.New("caller gone")

// FetcherConfig tunes HTTP feed reads.
type FetcherConfig struct {
	Timeout           time.Duration
	PriceField        string
	RequestsPerSecond float64
	BreakerFailures   int
	BreakerCooldown   time.Duration
}

// FetchObserver receives per-feed fetch outcomes, e.g. for metrics.
type FetchObserver interface {
	ObserveFetch(sourceID int, d time.Duration, err error)
}

// HTTPFetcher reads the current value of a feed from its JSON endpoint.
// Each feed gets its own circuit breaker so one dead endpoint does not slow
// every audit; all feeds share one outbound rate limit.
type HTTPFetcher struct {
	client   *http.Client
	field    string
	limiter  *rate.Limiter
	cfg      FetcherConfig
	observer FetchObserver
	logger   *slog.Logger

	mu       sync.Mutex
	breakers map[int]*gobreaker.CircuitBreaker
}

// NewHTTPFetcher creates an HTTPFetcher. observer may be nil.
func NewHTTPFetcher(cfg FetcherConfig, observer FetchObserver, logger *slog.Logger) *HTTPFetcher {
	if cfg.PriceField == "" {
		cfg.PriceField = "Price"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 5
	}
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = int(math.Max(1, math.Ceil(cfg.RequestsPerSecond)))
	}
	return &HTTPFetcher{
		client:   &http.Client{Timeout: cfg.Timeout},
		field:    cfg.PriceField,
		limiter:  rate.NewLimiter(limit, burst),
		cfg:      cfg,
		observer: observer,
		logger:   logger.With(slog.String("component", "feed_fetcher")),
		breakers: make(map[int]*gobreaker.CircuitBreaker),
	}
}

func (f *HTTPFetcher) breaker(feed domain.OracleFeed) *gobreaker.CircuitBreaker {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := f.breakers[feed.ID]; ok {
		return cb
	}
	failures := uint32(f.cfg.BreakerFailures)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        feed.Ticker,
		MaxRequests: 1,
		Timeout:     f.cfg.BreakerCooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerGone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn("feed breaker state change",
				slog.String("feed", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	f.breakers[feed.ID] = cb
	return cb
}

// Fetch returns the feed's current value. A missing, zero, or non-numeric
// price field is reported as domain.ErrFeedUnavailable.
func (f *HTTPFetcher) Fetch(ctx context.Context, feed domain.OracleFeed) (float64, error) {
	start := time.Now()
	var v interface{}
	err := f.limiter.Wait(ctx)
	if err == nil {
		v, err = f.breaker(feed).Execute(func() (interface{}, error) {
			price, err := f.get(ctx, feed)
			if err != nil && ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", errCallerGone, err)
			}
			return price, err
		})
	}
	if f.observer != nil {
		f.observer.ObserveFetch(feed.ID, time.Since(start), err)
	}
	if err != nil {
		return 0, fmt.Errorf("oracle: fetch %d (%s): %w", feed.ID, feed.Ticker, err)
	}
	return v.(float64), nil
}

func (f *HTTPFetcher) get(ctx context.Context, feed domain.OracleFeed) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.Endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
	if err != nil {
		return 0, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, fmt.Errorf("%w: status %d", domain.ErrFeedUnavailable, resp.StatusCode)
	}
	return extractPrice(body, f.field)
}

// extractPrice reads a numeric (or numeric string) top-level field.
func extractPrice(body []byte, field string) (float64, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return 0, fmt.Errorf("%w: decode: %v", domain.ErrFeedUnavailable, err)
	}

	var (
		v   float64
		err error
	)
	switch raw := doc[field].(type) {
	case json.Number:
		v, err = raw.Float64()
	case string:
		v, err = strconv.ParseFloat(raw, 64)
	default:
		return 0, fmt.Errorf("%w: field %q missing", domain.ErrFeedUnavailable, field)
	}
	if err != nil || v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: field %q has no usable value", domain.ErrFeedUnavailable, field)
	}
	return v, nil
}
