// Package app owns the application lifecycle: it wires the stores, caches,
// ledger client and services, then runs the configured mode.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/preyanshu/verdict/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	startedAt time.Time
	closers   []func()

	// MarketID selects the market for the one-shot modes.
	MarketID string
	// Out receives one-shot results; defaults to stdout.
	Out io.Writer
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "app")),
		startedAt: time.Now(),
		Out:       os.Stdout,
	}
}

// Run wires all dependencies, runs the configured mode and blocks until it
// finishes or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("mode", a.cfg.Mode),
		slog.String("log_level", a.cfg.LogLevel),
	)
	a.logger.DebugContext(ctx, "active configuration", slog.Any("config", config.RedactedConfig(a.cfg)))

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	switch strings.ToLower(a.cfg.Mode) {
	case "server":
		return a.ServerMode(ctx, deps)
	case "audit":
		return a.AuditMode(ctx, deps, a.MarketID, a.Out)
	case "redeem":
		return a.RedeemMode(ctx, deps, a.MarketID, a.Out)
	default:
		return fmt.Errorf("app: unsupported mode %q", a.cfg.Mode)
	}
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
