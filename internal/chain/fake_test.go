package chain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type callHandler func(to common.Address, args []any) ([]any, error)

// fakeBackend answers contract reads by dispatching on the 4-byte selector.
type fakeBackend struct {
	mu       sync.Mutex
	chainID  int64
	handlers map[string]callHandler
	nonce    uint64
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
	// pendingPolls is how many receipt polls report NotFound first.
	pendingPolls int
	replayErr    error
}

func newFakeBackend(chainID int64) *fakeBackend {
	return &fakeBackend{
		chainID:  chainID,
		handlers: make(map[string]callHandler),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (f *fakeBackend) on(method string, h callHandler) { f.handlers[method] = h }

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(f.chainID), nil
}

func lookupMethod(sel []byte) (*abi.Method, error) {
	if m, err := RouterABI.MethodById(sel); err == nil {
		return m, nil
	}
	return ERC20ABI.MethodById(sel)
}

func (f *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if block != nil && f.replayErr != nil {
		return nil, f.replayErr
	}
	m, err := lookupMethod(call.Data[:4])
	if err != nil {
		return nil, err
	}
	h, ok := f.handlers[m.Name]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	args, err := m.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}
	out, err := h(*call.To, args)
	if err != nil {
		return nil, err
	}
	return m.Outputs.Pack(out...)
}

func (f *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 90_000, nil
}

func (f *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonce, nil
}

func (f *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	f.nonce++
	return nil
}

func (f *fakeBackend) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pendingPolls > 0 {
		f.pendingPolls--
		return nil, ethereum.NotFound
	}
	r, ok := f.receipts[h]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

// recordingWallet captures requests instead of signing them.
type recordingWallet struct {
	addr     common.Address
	chainID  int64
	switchTo func(int64) error
	reqs     []TxRequest
	sendErr  error
}

func (w *recordingWallet) Address() common.Address { return w.addr }

func (w *recordingWallet) ChainID(context.Context) (int64, error) { return w.chainID, nil }

func (w *recordingWallet) SwitchChain(ctx context.Context, id int64) error {
	if w.switchTo == nil {
		w.chainID = id
		return nil
	}
	return w.switchTo(id)
}

func (w *recordingWallet) SendTransaction(_ context.Context, req TxRequest) (common.Hash, error) {
	if w.sendErr != nil {
		return common.Hash{}, w.sendErr
	}
	w.reqs = append(w.reqs, req)
	return common.BigToHash(big.NewInt(int64(len(w.reqs)))), nil
}
