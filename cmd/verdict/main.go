// Command verdict serves the redemption and audit API for resolved
// prediction markets, or runs a single audit or redemption from the shell.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/preyanshu/verdict/internal/app"
	"github.com/preyanshu/verdict/internal/config"
)

// exitAuditNotPassed distinguishes a failed or incomplete audit from a crash.
const exitAuditNotPassed = 2

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	mode := flag.String("mode", "", "override the configured mode (server, audit, redeem)")
	marketID := flag.String("market", "", "market id for the audit and redeem modes")
	flag.Parse()

	// One-shot modes print their result on stdout, so logs go to stderr.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Mode = *mode
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("verdict starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)
	application.MarketID = *marketID

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = application.Run(ctx)
	stop()
	application.Close()

	switch {
	case err == nil, errors.Is(err, context.Canceled):
		logger.Info("verdict stopped")
	case errors.Is(err, app.ErrAuditNotPassed):
		logger.Warn("audit did not pass", slog.String("error", err.Error()))
		os.Exit(exitAuditNotPassed)
	default:
		logger.Error("application exited with error", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
