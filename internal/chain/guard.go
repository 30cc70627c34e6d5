package chain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/preyanshu/verdict/internal/domain"
)

// ChainGuard makes sure a wallet is attached to the settlement network.
type ChainGuard struct {
	// timeout bounds the switch request; zero leaves it to the caller's context.
	timeout time.Duration
	logger  *slog.Logger
}

// NewChainGuard creates a ChainGuard.
func NewChainGuard(switchTimeout time.Duration, logger *slog.Logger) *ChainGuard {
	return &ChainGuard{
		timeout: switchTimeout,
		logger:  logger.With(slog.String("component", "chain_guard")),
	}
}

// EnsureNetwork returns nil once w reports required as its active network,
// asking the wallet to switch when it does not. A refused or incomplete
// switch yields domain.ErrNetworkMismatch. Cancelling ctx abandons the wait.
func (g *ChainGuard) EnsureNetwork(ctx context.Context, w Wallet, required int64) error {
	current, err := w.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain: read wallet network: %w", err)
	}
	if current == required {
		return nil
	}

	g.logger.Info("requesting network switch",
		slog.String("wallet", w.Address().Hex()),
		slog.Int64("from", current),
		slog.Int64("to", required),
	)

	switchCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		switchCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	if err := w.SwitchChain(switchCtx, required); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("chain: network switch abandoned: %w", ctx.Err())
		}
		return fmt.Errorf("%w: switch %d -> %d: %w", domain.ErrNetworkMismatch, current, required, err)
	}

	after, err := w.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain: read wallet network: %w", err)
	}
	if after != required {
		return fmt.Errorf("%w: wallet still on %d, need %d", domain.ErrNetworkMismatch, after, required)
	}
	return nil
}
