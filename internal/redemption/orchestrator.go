// Package redemption sequences the on-chain steps that turn a winning
// outcome token back into settlement currency.
package redemption

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/preyanshu/verdict/internal/chain"
	"github.com/preyanshu/verdict/internal/domain"
)

// Ledger is the router surface used for balances and the swap.
type Ledger interface {
	Router() common.Address
	OutcomeToken(ctx context.Context, marketID string, side domain.Outcome) (common.Address, error)
	Balance(ctx context.Context, marketID string, side domain.Outcome, owner common.Address) (*big.Int, error)
	Swap(ctx context.Context, w chain.Wallet, marketID string, tokenIn common.Address, amountIn, minOut *big.Int) (chain.PendingTx, error)
}

// Allowances reads and grants token spending authorization.
type Allowances interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) *big.Int
	Approve(ctx context.Context, w chain.Wallet, token, spender common.Address, amount *big.Int) (chain.PendingTx, error)
}

// NetworkGuard attaches a wallet to the settlement network.
type NetworkGuard interface {
	EnsureNetwork(ctx context.Context, w chain.Wallet, required int64) error
}

// Confirmations waits for a submitted transaction to be mined.
type Confirmations interface {
	Wait(ctx context.Context, tx chain.PendingTx) (*types.Receipt, error)
}

// Wallets resolves a connected wallet by address.
type Wallets interface {
	Get(address string) (chain.Wallet, error)
}

// Markets supplies the settled side of a market.
type Markets interface {
	GetMarket(ctx context.Context, id string) (domain.Market, error)
}

// Observer is told about every state change of every attempt.
type Observer interface {
	AttemptChanged(ctx context.Context, a domain.RedemptionAttempt)
}

// DefaultLockTTL matches the chain.lock_ttl default.
const DefaultLockTTL = 30 * time.Minute

// Config holds the orchestrator's timing and network parameters.
type Config struct {
	ChainID     int64
	SettleDelay time.Duration
	// LockTTL bounds the cross-process lock; it should exceed the longest
	// expected redemption. Zero selects DefaultLockTTL.
	LockTTL time.Duration
}

// Deps bundles the collaborators of an Orchestrator. Lock and Observer may
// be nil.
type Deps struct {
	Guard      NetworkGuard
	Allowances Allowances
	Ledger     Ledger
	Confirm    Confirmations
	Wallets    Wallets
	Markets    Markets
	Store      *Store
	Lock       domain.LockManager
	Observer   Observer
}

// Orchestrator runs redemptions as an explicit state machine. Steps within
// one attempt are strictly sequential; attempts for different keys run
// independently. Ledger writes are never retried automatically.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	steps  map[domain.RedemptionStatus]step
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	logger *slog.Logger
}

// step performs the work of one state and names the next state.
type step func(ctx context.Context, r *run) (domain.RedemptionStatus, error)

// run is the working set of one attempt.
type run struct {
	attempt  domain.RedemptionAttempt
	wallet   chain.Wallet
	side     domain.Outcome
	token    common.Address
	amount   *big.Int
	pending  chain.PendingTx
	approved bool
	unlock   func()
}

// transitions lists the legal successors of each non-terminal state.
var transitions = map[domain.RedemptionStatus][]domain.RedemptionStatus{
	domain.RedemptionCheckingChain:     {domain.RedemptionCheckingBalance},
	domain.RedemptionCheckingBalance:   {domain.RedemptionCheckingAllowance},
	domain.RedemptionCheckingAllowance: {domain.RedemptionApproving, domain.RedemptionSwapping},
	domain.RedemptionApproving:         {domain.RedemptionAwaitingApproval},
	domain.RedemptionAwaitingApproval:  {domain.RedemptionCheckingAllowance},
	domain.RedemptionSwapping:          {domain.RedemptionAwaitingSwap},
	domain.RedemptionAwaitingSwap:      {domain.RedemptionDone},
}

func legal(from, to domain.RedemptionStatus) bool {
	if to == domain.RedemptionFailed {
		return !from.Terminal()
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// New creates an Orchestrator.
func New(cfg Config, deps Deps, logger *slog.Logger) *Orchestrator {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	o := &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		now:    time.Now,
		sleep:  sleepCtx,
		logger: logger.With(slog.String("component", "redemption")),
	}
	o.steps = map[domain.RedemptionStatus]step{
		domain.RedemptionCheckingChain:     o.checkChain,
		domain.RedemptionCheckingBalance:   o.checkBalance,
		domain.RedemptionCheckingAllowance: o.checkAllowance,
		domain.RedemptionApproving:         o.approve,
		domain.RedemptionAwaitingApproval:  o.awaitApproval,
		domain.RedemptionSwapping:          o.swap,
		domain.RedemptionAwaitingSwap:      o.awaitSwap,
	}
	return o
}

// Redeem runs a full redemption for (marketID, wallet) and returns the
// terminal attempt. Preconditions that fail before any state is entered
// (wallet not connected, attempt already in flight) return an error and a
// zero attempt.
func (o *Orchestrator) Redeem(ctx context.Context, marketID, wallet string) (domain.RedemptionAttempt, error) {
	r, err := o.start(ctx, marketID, wallet)
	if err != nil {
		return domain.RedemptionAttempt{}, err
	}
	return o.drive(ctx, r)
}

// RedeemAsync checks preconditions synchronously, then runs the state
// machine in the background. The channel receives the terminal attempt.
func (o *Orchestrator) RedeemAsync(ctx context.Context, marketID, wallet string) (domain.RedemptionAttempt, <-chan domain.RedemptionAttempt, error) {
	r, err := o.start(ctx, marketID, wallet)
	if err != nil {
		return domain.RedemptionAttempt{}, nil, err
	}
	initial := r.attempt
	done := make(chan domain.RedemptionAttempt, 1)
	go func() {
		final, _ := o.drive(ctx, r)
		done <- final
		close(done)
	}()
	return initial, done, nil
}

func (o *Orchestrator) start(ctx context.Context, marketID, wallet string) (*run, error) {
	w, err := o.deps.Wallets.Get(wallet)
	if err != nil {
		return nil, err
	}
	walletAddr := w.Address().Hex()

	attempt, err := o.deps.Store.Begin(marketID, walletAddr, o.now().UTC())
	if err != nil {
		o.logger.Info("redemption rejected: attempt in flight",
			slog.String("market_id", marketID),
			slog.String("wallet", walletAddr),
		)
		return nil, err
	}

	r := &run{attempt: attempt, wallet: w, unlock: func() {}}
	if o.deps.Lock != nil {
		unlock, err := o.deps.Lock.Acquire(ctx, lockKey(marketID, walletAddr), o.cfg.LockTTL)
		if err != nil {
			o.deps.Store.Discard(attempt)
			if errors.Is(err, domain.ErrLockHeld) {
				return nil, fmt.Errorf("redemption: %s/%s: %w", marketID, walletAddr, domain.ErrAttemptInFlight)
			}
			return nil, fmt.Errorf("redemption: acquire lock: %w", err)
		}
		r.unlock = unlock
	}
	o.notify(ctx, r.attempt)
	return r, nil
}

func lockKey(marketID, wallet string) string {
	return "redeem:" + marketID + ":" + wallet
}

func (o *Orchestrator) drive(ctx context.Context, r *run) (domain.RedemptionAttempt, error) {
	defer r.unlock()

	for status := r.attempt.Status; !status.Terminal(); {
		next, err := o.steps[status](ctx, r)
		if err != nil {
			o.fail(ctx, r, err)
			return r.attempt, err
		}
		if err := o.transition(ctx, r, next); err != nil {
			o.fail(ctx, r, err)
			return r.attempt, err
		}
		status = next
	}
	return r.attempt, nil
}

func (o *Orchestrator) transition(ctx context.Context, r *run, to domain.RedemptionStatus) error {
	from := r.attempt.Status
	if !legal(from, to) {
		return fmt.Errorf("redemption: illegal transition %s -> %s", from, to)
	}
	now := o.now().UTC()
	r.attempt.Status = to
	r.attempt.UpdatedAt = now
	if to.Terminal() {
		r.attempt.FinishedAt = &now
	}
	o.deps.Store.Update(r.attempt)
	o.logger.Debug("redemption transition",
		slog.String("attempt_id", r.attempt.ID),
		slog.String("market_id", r.attempt.MarketID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)
	o.notify(ctx, r.attempt)
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, r *run, err error) {
	r.attempt.LastError = UserMessage(err)
	o.logger.Warn("redemption failed",
		slog.String("attempt_id", r.attempt.ID),
		slog.String("market_id", r.attempt.MarketID),
		slog.String("wallet", r.attempt.Wallet),
		slog.String("state", string(r.attempt.Status)),
		slog.String("error", err.Error()),
	)
	// Failing from a terminal state cannot happen: drive stops at terminals.
	_ = o.transition(ctx, r, domain.RedemptionFailed)
}

func (o *Orchestrator) notify(ctx context.Context, a domain.RedemptionAttempt) {
	if o.deps.Observer != nil {
		o.deps.Observer.AttemptChanged(ctx, a)
	}
}

// ── steps ──

func (o *Orchestrator) checkChain(ctx context.Context, r *run) (domain.RedemptionStatus, error) {
	if err := o.deps.Guard.EnsureNetwork(ctx, r.wallet, o.cfg.ChainID); err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", &WalletError{Err: err}
	}
	return domain.RedemptionCheckingBalance, nil
}

func (o *Orchestrator) checkBalance(ctx context.Context, r *run) (domain.RedemptionStatus, error) {
	m, err := o.deps.Markets.GetMarket(ctx, r.attempt.MarketID)
	if err != nil {
		return "", fmt.Errorf("redemption: load market: %w", err)
	}
	if !m.Settled() {
		return "", fmt.Errorf("redemption: %s: %w", m.ID, domain.ErrMarketUnresolved)
	}
	r.side = m.Winner

	token, err := o.deps.Ledger.OutcomeToken(ctx, r.attempt.MarketID, r.side)
	if err != nil {
		return "", &balanceError{err: err}
	}
	amount, err := o.deps.Ledger.Balance(ctx, r.attempt.MarketID, r.side, r.wallet.Address())
	if err != nil {
		return "", &balanceError{err: err}
	}
	if amount.Sign() <= 0 {
		return "", fmt.Errorf("redemption: %s holds no %s tokens: %w", r.attempt.Wallet, r.side, domain.ErrNoBalance)
	}

	r.token = token
	r.amount = amount
	r.attempt.Token = token.Hex()
	r.attempt.Amount = amount.String()
	return domain.RedemptionCheckingAllowance, nil
}

func (o *Orchestrator) checkAllowance(ctx context.Context, r *run) (domain.RedemptionStatus, error) {
	allowance := o.deps.Allowances.Allowance(ctx, r.token, r.wallet.Address(), o.deps.Ledger.Router())
	if allowance.Cmp(r.amount) >= 0 {
		return domain.RedemptionSwapping, nil
	}
	if r.approved {
		// The approval receipt is authoritative; a short read here is lag.
		o.logger.Warn("allowance still short after confirmed approval, proceeding",
			slog.String("attempt_id", r.attempt.ID),
			slog.String("allowance", allowance.String()),
			slog.String("amount", r.amount.String()),
		)
		return domain.RedemptionSwapping, nil
	}
	return domain.RedemptionApproving, nil
}

func (o *Orchestrator) approve(ctx context.Context, r *run) (domain.RedemptionStatus, error) {
	tx, err := o.deps.Allowances.Approve(ctx, r.wallet, r.token, o.deps.Ledger.Router(), chain.MaxApproval())
	if err != nil {
		return "", &WalletError{Err: err}
	}
	r.pending = tx
	r.attempt.ApproveTx = tx.Hash.Hex()
	return domain.RedemptionAwaitingApproval, nil
}

func (o *Orchestrator) awaitApproval(ctx context.Context, r *run) (domain.RedemptionStatus, error) {
	if _, err := o.deps.Confirm.Wait(ctx, r.pending); err != nil {
		return "", err
	}
	r.approved = true
	if err := o.sleep(ctx, o.cfg.SettleDelay); err != nil {
		return "", err
	}
	return domain.RedemptionCheckingAllowance, nil
}

func (o *Orchestrator) swap(ctx context.Context, r *run) (domain.RedemptionStatus, error) {
	// Redemption is 1:1, so the minimum out equals the amount in.
	minOut := new(big.Int).Set(r.amount)
	tx, err := o.deps.Ledger.Swap(ctx, r.wallet, r.attempt.MarketID, r.token, r.amount, minOut)
	if err != nil {
		return "", &WalletError{Err: err}
	}
	r.pending = tx
	r.attempt.SwapTx = tx.Hash.Hex()
	return domain.RedemptionAwaitingSwap, nil
}

func (o *Orchestrator) awaitSwap(ctx context.Context, r *run) (domain.RedemptionStatus, error) {
	if _, err := o.deps.Confirm.Wait(ctx, r.pending); err != nil {
		return "", err
	}
	bal, err := o.deps.Ledger.Balance(ctx, r.attempt.MarketID, r.side, r.wallet.Address())
	if err != nil {
		o.logger.Warn("post-redemption balance refresh failed",
			slog.String("attempt_id", r.attempt.ID),
			slog.String("error", err.Error()),
		)
	} else {
		r.attempt.Balance = bal.String()
	}
	o.logger.Info("redemption complete",
		slog.String("attempt_id", r.attempt.ID),
		slog.String("market_id", r.attempt.MarketID),
		slog.String("wallet", r.attempt.Wallet),
		slog.String("amount", r.attempt.Amount),
		slog.String("tx", r.attempt.SwapTx),
	)
	return domain.RedemptionDone, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
