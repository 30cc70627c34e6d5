package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/preyanshu/verdict/internal/domain"
	"github.com/preyanshu/verdict/internal/server"
	"github.com/preyanshu/verdict/internal/server/handler"
	"github.com/preyanshu/verdict/internal/server/ws"
)

// ErrAuditNotPassed is returned by the audit mode when the verdict is
// failed or incomplete.
var ErrAuditNotPassed = errors.New("app: audit did not pass")

// shutdownGrace bounds how long in-flight HTTP requests may finish.
const shutdownGrace = 10 * time.Second

// ServerMode runs the HTTP API, the websocket hub and, when enabled, the
// archive loop until ctx is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	g, ctx := errgroup.WithContext(ctx)

	// Without a bus there is nothing to relay, so /ws stays unrouted.
	var hub *ws.Hub
	var wsClients func() int
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, ws.Config{
			Status: func() domain.ServiceStatus { return a.status(deps, hub.ClientCount) },
			Gauge:  deps.Metrics.WSClients,
		}, a.logger)
		wsClients = hub.ClientCount
		g.Go(func() error { return ignoreCanceled(hub.Run(ctx)) })
	}

	srv := server.NewServer(server.Config{
		Port:               a.cfg.Server.Port,
		CORSOrigins:        a.cfg.Server.CORSOrigins,
		APIKey:             a.cfg.Server.APIKey,
		RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
	}, server.Handlers{
		Health:      handler.NewHealthHandler(healthChecks(deps), a.logger),
		Status:      handler.NewStatusHandler(func() domain.ServiceStatus { return a.status(deps, wsClients) }),
		Feeds:       handler.NewFeedHandler(deps.Feeds),
		Markets:     handler.NewMarketHandler(deps.Markets, a.logger),
		Redemptions: handler.NewRedeemHandler(deps.Redemptions, a.logger),
		Audits:      handler.NewAuditHandler(deps.Audits, a.logger),
		Metrics:     deps.Metrics.Handler(),
	}, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return ignoreCanceled(a.archiveLoop(ctx, deps))
		})
	}

	return g.Wait()
}

// AuditMode audits one market, writes the JSON result to out and returns
// ErrAuditNotPassed unless the verdict is passed.
func (a *App) AuditMode(ctx context.Context, deps *Dependencies, marketID string, out io.Writer) error {
	if marketID == "" {
		return errors.New("app: audit mode requires -market")
	}
	res, err := deps.Audits.Audit(ctx, marketID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("app: write audit result: %w", err)
	}
	if res.Verdict != domain.VerdictPassed {
		return fmt.Errorf("%w: %s", ErrAuditNotPassed, res.Verdict)
	}
	return nil
}

// RedeemMode redeems one market for the configured wallet and writes the
// terminal attempt to out.
func (a *App) RedeemMode(ctx context.Context, deps *Dependencies, marketID string, out io.Writer) error {
	if marketID == "" {
		return errors.New("app: redeem mode requires -market")
	}
	wallets := deps.Keyring.Addresses()
	if len(wallets) == 0 {
		return fmt.Errorf("app: redeem: %w", domain.ErrWalletNotConnected)
	}

	attempt, err := deps.Redemptions.Redeem(ctx, marketID, wallets[0])
	if err != nil && attempt.ID == "" {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(attempt); encErr != nil {
		return fmt.Errorf("app: write attempt: %w", encErr)
	}
	if attempt.Status != domain.RedemptionDone {
		return fmt.Errorf("app: redemption %s: %s", attempt.Status, attempt.LastError)
	}
	return nil
}

// archiveLoop moves history older than the retention window to S3 once at
// start-up and then every archive interval.
func (a *App) archiveLoop(ctx context.Context, deps *Dependencies) error {
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
	ticker := time.NewTicker(a.cfg.Archive.Interval.Duration)
	defer ticker.Stop()

	for {
		cutoff := time.Now().UTC().Add(-retention)
		if n, err := deps.Archiver.ArchiveRedemptions(ctx, cutoff); err != nil {
			a.logger.ErrorContext(ctx, "archive redemptions failed", slog.String("error", err.Error()))
		} else if n > 0 {
			a.logger.InfoContext(ctx, "archived redemptions", slog.Int64("rows", n))
		}
		if n, err := deps.Archiver.ArchiveAuditLog(ctx, cutoff); err != nil {
			a.logger.ErrorContext(ctx, "archive audit log failed", slog.String("error", err.Error()))
		} else if n > 0 {
			a.logger.InfoContext(ctx, "archived audit log", slog.Int64("rows", n))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *App) status(deps *Dependencies, wsClients func() int) domain.ServiceStatus {
	st := domain.ServiceStatus{
		Mode:          a.cfg.Mode,
		ChainID:       a.cfg.Chain.ChainID,
		UptimeSeconds: int64(time.Since(a.startedAt).Seconds()),
	}
	if deps.Redemptions != nil {
		st.InFlight = deps.Redemptions.InFlight()
	}
	if wsClients != nil {
		st.WSClients = wsClients()
	}
	return st
}

func healthChecks(deps *Dependencies) map[string]handler.Check {
	checks := map[string]handler.Check{}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis.Ping
	}
	if deps.Postgres != nil {
		checks["postgres"] = deps.Postgres.Ping
	}
	if deps.S3 != nil {
		checks["s3"] = deps.S3.Health
	}
	return checks
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
