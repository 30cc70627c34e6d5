// Package postgres persists the audit log and redemption history with pgx.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/preyanshu/verdict/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DSN returns cfg.DSN when set, otherwise a URL built from the discrete
// fields.
func DSN(cfg config.PostgresConfig) string {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		return dsn
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, port, cfg.Database, sslMode)
}

// Client owns the connection pool.
type Client struct {
	pool *pgxpool.Pool
}

// New opens a pool for cfg and pings it.
func New(ctx context.Context, cfg config.PostgresConfig) (*Client, error) {
	poolCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.PoolMaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.PoolMaxConns)
	}
	if cfg.PoolMinConns > 0 {
		poolCfg.MinConns = int32(cfg.PoolMinConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Client{pool: pool}, nil
}

// Pool returns the underlying pool.
func (c *Client) Pool() *pgxpool.Pool { return c.pool }

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Close shuts the pool down.
func (c *Client) Close() { c.pool.Close() }

// migrationNames lists the embedded migrations in apply order.
func migrationNames() ([]string, error) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// RunMigrations applies each embedded migration once, in filename order,
// recording applied files in schema_migrations.
func (c *Client) RunMigrations(ctx context.Context) error {
	const tracker = `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`
	if _, err := c.pool.Exec(ctx, tracker); err != nil {
		return fmt.Errorf("postgres: create schema_migrations: %w", err)
	}

	names, err := migrationNames()
	if err != nil {
		return fmt.Errorf("postgres: read migrations: %w", err)
	}
	for _, name := range names {
		if err := c.apply(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) apply(ctx context.Context, name string) error {
	var done bool
	err := c.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, name,
	).Scan(&done)
	if err != nil {
		return fmt.Errorf("postgres: check migration %s: %w", name, err)
	}
	if done {
		return nil
	}

	sql, err := migrationsFS.ReadFile("migrations/" + name)
	if err != nil {
		return fmt.Errorf("postgres: read migration %s: %w", name, err)
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("postgres: exec migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, name); err != nil {
		return fmt.Errorf("postgres: record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit migration %s: %w", name, err)
	}
	return nil
}
