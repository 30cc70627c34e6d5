package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/preyanshu/verdict/internal/chain"
	"github.com/preyanshu/verdict/internal/domain"
	"github.com/preyanshu/verdict/internal/notify"
)

// TransitionObserver records redemption state changes.
type TransitionObserver interface {
	ObserveTransition(a domain.RedemptionAttempt)
}

// InFlightGauge reports the number of running attempts.
type InFlightGauge interface {
	Set(v float64)
}

// RedemptionRecorderDeps bundles what a RedemptionRecorder mirrors to. All
// fields are optional.
type RedemptionRecorderDeps struct {
	History  domain.RedemptionStore
	Bus      domain.SignalBus
	Notifier Notifier
	Metrics  TransitionObserver
	InFlight InFlightGauge
	// Running reports the current in-flight count for InFlight.
	Running func() int
}

// RedemptionRecorder observes every attempt transition and mirrors it to
// history, the bus, metrics and, for terminal states, the notifier.
type RedemptionRecorder struct {
	deps   RedemptionRecorderDeps
	pub    publisher
	logger *slog.Logger
}

// NewRedemptionRecorder creates a RedemptionRecorder.
func NewRedemptionRecorder(deps RedemptionRecorderDeps, logger *slog.Logger) *RedemptionRecorder {
	logger = logger.With(slog.String("component", "redemption_recorder"))
	return &RedemptionRecorder{
		deps:   deps,
		pub:    publisher{bus: deps.Bus, now: time.Now, logger: logger},
		logger: logger,
	}
}

// AttemptChanged implements redemption.Observer. Failures here never affect
// the attempt itself.
func (r *RedemptionRecorder) AttemptChanged(ctx context.Context, a domain.RedemptionAttempt) {
	// The attempt may outlive a cancelled caller; mirrors still need to land.
	ctx = context.WithoutCancel(ctx)

	if r.deps.History != nil {
		if err := r.deps.History.Save(ctx, a); err != nil {
			r.logger.WarnContext(ctx, "redemption history write failed",
				slog.String("attempt_id", a.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	r.pub.publish(ctx, domain.ChannelRedemptions, domain.Event{
		Type:      "redemption." + string(a.Status),
		MarketID:  a.MarketID,
		Wallet:    a.Wallet,
		Data:      a,
		Timestamp: a.UpdatedAt,
	})
	if r.deps.Metrics != nil {
		r.deps.Metrics.ObserveTransition(a)
	}
	if r.deps.InFlight != nil && r.deps.Running != nil {
		r.deps.InFlight.Set(float64(r.deps.Running()))
	}
	r.notify(ctx, a)
}

func (r *RedemptionRecorder) notify(ctx context.Context, a domain.RedemptionAttempt) {
	if r.deps.Notifier == nil {
		return
	}
	var event, title, msg string
	switch a.Status {
	case domain.RedemptionDone:
		event = notify.EventRedemptionDone
		title = "Redemption complete"
		msg = fmt.Sprintf("market %s, wallet %s, amount %s, tx %s", a.MarketID, a.Wallet, tokenAmount(a.Amount), a.SwapTx)
	case domain.RedemptionFailed:
		event = notify.EventRedemptionFailed
		title = "Redemption failed"
		msg = fmt.Sprintf("market %s, wallet %s: %s", a.MarketID, a.Wallet, a.LastError)
	default:
		return
	}
	if err := r.deps.Notifier.Notify(ctx, event, title, msg); err != nil {
		r.logger.WarnContext(ctx, "redemption notification failed", slog.String("error", err.Error()))
	}
}

// tokenAmount renders a base-unit amount in whole tokens.
func tokenAmount(raw string) string {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return raw
	}
	return chain.FormatUnits(v, chain.TokenDecimals)
}

// Redeemer runs the redemption state machine.
type Redeemer interface {
	Redeem(ctx context.Context, marketID, wallet string) (domain.RedemptionAttempt, error)
	RedeemAsync(ctx context.Context, marketID, wallet string) (domain.RedemptionAttempt, <-chan domain.RedemptionAttempt, error)
}

// AttemptStore is the live per-(market, wallet) attempt table.
type AttemptStore interface {
	Get(marketID, wallet string) (domain.RedemptionAttempt, bool)
	Reset(marketID, wallet string) error
	InFlight() int
}

// RedemptionService is the entry point for starting, inspecting and
// resetting redemptions.
type RedemptionService struct {
	// base outlives any single request so background attempts are not
	// cancelled when the HTTP handler returns.
	base     context.Context
	redeemer Redeemer
	attempts AttemptStore
	history  domain.RedemptionStore
	logger   *slog.Logger
}

// NewRedemptionService creates a RedemptionService. history may be nil.
func NewRedemptionService(base context.Context, redeemer Redeemer, attempts AttemptStore, history domain.RedemptionStore, logger *slog.Logger) *RedemptionService {
	return &RedemptionService{
		base:     base,
		redeemer: redeemer,
		attempts: attempts,
		history:  history,
		logger:   logger.With(slog.String("component", "redemption_service")),
	}
}

// Start begins a redemption in the background and returns its first state.
func (s *RedemptionService) Start(marketID, wallet string) (domain.RedemptionAttempt, error) {
	a, _, err := s.redeemer.RedeemAsync(s.base, marketID, wallet)
	if err != nil {
		return domain.RedemptionAttempt{}, err
	}
	s.logger.Info("redemption started",
		slog.String("attempt_id", a.ID),
		slog.String("market_id", marketID),
		slog.String("wallet", wallet),
	)
	return a, nil
}

// Redeem runs a redemption to completion.
func (s *RedemptionService) Redeem(ctx context.Context, marketID, wallet string) (domain.RedemptionAttempt, error) {
	return s.redeemer.Redeem(ctx, marketID, wallet)
}

// Current returns the live attempt for (marketID, wallet). With no attempt
// the key is idle.
func (s *RedemptionService) Current(marketID, wallet string) domain.RedemptionAttempt {
	if a, ok := s.attempts.Get(marketID, wallet); ok {
		return a
	}
	return domain.RedemptionAttempt{MarketID: marketID, Wallet: wallet, Status: domain.RedemptionIdle}
}

// Reset clears a terminal attempt so the key is idle again.
func (s *RedemptionService) Reset(marketID, wallet string) error {
	if err := s.attempts.Reset(marketID, wallet); err != nil {
		return fmt.Errorf("redemption_service: reset: %w", err)
	}
	return nil
}

// InFlight counts running attempts.
func (s *RedemptionService) InFlight() int { return s.attempts.InFlight() }

// History lists persisted attempts for wallet.
func (s *RedemptionService) History(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.RedemptionAttempt, error) {
	if s.history == nil {
		return nil, errors.New("redemption_service: history store not configured")
	}
	out, err := s.history.ListByWallet(ctx, wallet, opts)
	if err != nil {
		return nil, fmt.Errorf("redemption_service: history: %w", err)
	}
	return out, nil
}
