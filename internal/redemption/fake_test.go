package redemption

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/preyanshu/verdict/internal/chain"
	"github.com/preyanshu/verdict/internal/domain"
)

var (
	testRouter = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	yesToken   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	noToken    = common.HexToAddress("0x00000000000000000000000000000000000000e2")
	holder     = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeWallet struct {
	addr common.Address
}

func (w *fakeWallet) Address() common.Address { return w.addr }
func (w *fakeWallet) ChainID(context.Context) (int64, error) { return 16602, nil }
func (w *fakeWallet) SwitchChain(context.Context, int64) error { return nil }
func (w *fakeWallet) SendTransaction(context.Context, chain.TxRequest) (common.Hash, error) {
	return common.Hash{}, errors.New("fakeWallet: writes go through the fake ledger")
}

type fakeWallets struct {
	w chain.Wallet
}

func (f fakeWallets) Get(address string) (chain.Wallet, error) {
	if f.w == nil || !common.IsHexAddress(address) || common.HexToAddress(address) != f.w.Address() {
		return nil, domain.ErrWalletNotConnected
	}
	return f.w, nil
}

// fakeGuard optionally blocks until release is closed.
type fakeGuard struct {
	entered chan struct{}
	release chan struct{}
	err     error
}

func (g *fakeGuard) EnsureNetwork(ctx context.Context, _ chain.Wallet, _ int64) error {
	if g.entered != nil {
		close(g.entered)
	}
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return g.err
}

// fakeLedger records every read and write.
type fakeLedger struct {
	mu       sync.Mutex
	balances map[domain.Outcome]*big.Int
	// afterSwap is the balance reported once the swap is sent.
	afterSwap  *big.Int
	balanceErr error
	swapErr    error
	swapped    bool
	reads      int
	swaps      []*big.Int
}

func (l *fakeLedger) Router() common.Address { return testRouter }

func (l *fakeLedger) OutcomeToken(_ context.Context, _ string, side domain.Outcome) (common.Address, error) {
	if side == domain.OutcomeNo {
		return noToken, nil
	}
	return yesToken, nil
}

func (l *fakeLedger) Balance(_ context.Context, _ string, side domain.Outcome, _ common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reads++
	if l.balanceErr != nil {
		return nil, l.balanceErr
	}
	if l.swapped && l.afterSwap != nil {
		return l.afterSwap, nil
	}
	if b, ok := l.balances[side]; ok {
		return b, nil
	}
	return big.NewInt(0), nil
}

func (l *fakeLedger) Swap(_ context.Context, _ chain.Wallet, _ string, _ common.Address, amountIn, _ *big.Int) (chain.PendingTx, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.swapErr != nil {
		return chain.PendingTx{}, l.swapErr
	}
	l.swapped = true
	l.swaps = append(l.swaps, amountIn)
	return chain.PendingTx{Hash: common.HexToHash("0x5a")}, nil
}

type fakeAllowances struct {
	mu         sync.Mutex
	allowance  *big.Int
	approveErr error
	approvals  []*big.Int
	// grant is the allowance visible after an approval; nil means the
	// approved amount.
	grant *big.Int
}

func (a *fakeAllowances) Allowance(context.Context, common.Address, common.Address, common.Address) *big.Int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.allowance == nil {
		return big.NewInt(0)
	}
	return a.allowance
}

func (a *fakeAllowances) Approve(_ context.Context, _ chain.Wallet, _, _ common.Address, amount *big.Int) (chain.PendingTx, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.approveErr != nil {
		return chain.PendingTx{}, a.approveErr
	}
	a.approvals = append(a.approvals, amount)
	if a.grant != nil {
		a.allowance = a.grant
	} else {
		a.allowance = amount
	}
	return chain.PendingTx{Hash: common.HexToHash("0xa1")}, nil
}

// fakeConfirm fails the confirmation of any hash in errs.
type fakeConfirm struct {
	errs   map[common.Hash]error
	waited []common.Hash
}

func (c *fakeConfirm) Wait(_ context.Context, tx chain.PendingTx) (*types.Receipt, error) {
	c.waited = append(c.waited, tx.Hash)
	if err := c.errs[tx.Hash]; err != nil {
		return nil, err
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: tx.Hash}, nil
}

type fakeMarkets struct {
	markets map[string]domain.Market
}

func (f fakeMarkets) GetMarket(_ context.Context, id string) (domain.Market, error) {
	m, ok := f.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	statuses []domain.RedemptionStatus
}

func (o *recordingObserver) AttemptChanged(_ context.Context, a domain.RedemptionAttempt) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, a.Status)
}

func (o *recordingObserver) seen() []domain.RedemptionStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.RedemptionStatus(nil), o.statuses...)
}

// heldLock reports every key as held.
type heldLock struct{}

func (heldLock) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

// recordingLock grants every key and remembers the ttl it was asked for.
type recordingLock struct {
	mu       sync.Mutex
	ttls     []time.Duration
	released int
}

func (l *recordingLock) Acquire(_ context.Context, _ string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ttls = append(l.ttls, ttl)
	return func() {
		l.mu.Lock()
		l.released++
		l.mu.Unlock()
	}, nil
}

type fixture struct {
	guard    *fakeGuard
	ledger   *fakeLedger
	allow    *fakeAllowances
	confirm  *fakeConfirm
	store    *Store
	observer *recordingObserver
	markets  map[string]domain.Market
	lock     domain.LockManager
	lockTTL  time.Duration
}

func newFixture() *fixture {
	return &fixture{
		guard:    &fakeGuard{},
		ledger:   &fakeLedger{balances: map[domain.Outcome]*big.Int{}},
		allow:    &fakeAllowances{},
		confirm:  &fakeConfirm{errs: map[common.Hash]error{}},
		store:    NewStore(),
		observer: &recordingObserver{},
		markets: map[string]domain.Market{
			"m-yes":  {ID: "m-yes", Resolved: true, Winner: domain.OutcomeYes},
			"m-no":   {ID: "m-no", Resolved: true, Winner: domain.OutcomeNo},
			"m-open": {ID: "m-open"},
		},
	}
}

func (f *fixture) orchestrator() *Orchestrator {
	o := New(Config{ChainID: 16602, LockTTL: f.lockTTL}, Deps{
		Guard:      f.guard,
		Allowances: f.allow,
		Ledger:     f.ledger,
		Confirm:    f.confirm,
		Wallets:    fakeWallets{w: &fakeWallet{addr: holder}},
		Markets:    fakeMarkets{markets: f.markets},
		Store:      f.store,
		Lock:       f.lock,
		Observer:   f.observer,
	}, discardLogger())
	o.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return o
}
