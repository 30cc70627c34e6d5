// Package redis backs the shared caches, locks, limiter and event bus with
// go-redis/v9.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/preyanshu/verdict/internal/config"
)

// Client owns the connection pool shared by every Redis-backed component.
type Client struct {
	rdb *redis.Client
}

// Options translates cfg into driver options. Addr may be host:port or a
// redis:// / rediss:// URL; explicit cfg fields override what the URL sets.
func Options(cfg config.RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{Addr: cfg.Addr}
	if strings.Contains(cfg.Addr, "://") {
		parsed, err := redis.ParseURL(cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("redis: parse url: %w", err)
		}
		opts = parsed
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	opts.PoolSize = cfg.PoolSize
	opts.MaxRetries = cfg.MaxRetries
	if cfg.TLSEnabled && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

// New connects with cfg and fails unless the server answers PING.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Wrap adopts an existing go-redis client. Tests use it with redismock.
func Wrap(rdb *redis.Client) *Client { return &Client{rdb: rdb} }

// Ping backs the /api/health redis check.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error { return c.rdb.Close() }

// Underlying exposes the driver to the components in this package.
func (c *Client) Underlying() *redis.Client { return c.rdb }
