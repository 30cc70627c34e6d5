package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/preyanshu/verdict/internal/domain"
)

// historyMaxLen caps each event stream (XADD MAXLEN ~).
const historyMaxLen int64 = 5000

// SignalBus carries events over Pub/Sub and keeps bounded histories in
// streams for late subscribers.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus on c.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// Publish sends payload to channel subscribers.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe streams payloads from channel until ctx ends, then closes the
// returned channel. Slow readers apply backpressure to the subscription.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ps := sb.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// StreamAppend records payload in stream.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	err := sb.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: historyMaxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: xadd %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count entries after lastID ("0" reads from the
// start). No entries is not an error.
func (sb *SignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamEntry, error) {
	res, err := sb.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, lastID},
		Count:   int64(count),
		Block:   -1,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: xread %s: %w", stream, err)
	}

	var out []domain.StreamEntry
	for _, s := range res {
		for _, msg := range s.Messages {
			switch v := msg.Values["payload"].(type) {
			case string:
				out = append(out, domain.StreamEntry{ID: msg.ID, Payload: []byte(v)})
			case []byte:
				out = append(out, domain.StreamEntry{ID: msg.ID, Payload: v})
			}
		}
	}
	return out, nil
}

var _ domain.SignalBus = (*SignalBus)(nil)
