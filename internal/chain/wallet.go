package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/preyanshu/verdict/internal/crypto"
	"github.com/preyanshu/verdict/internal/domain"
)

// TxRequest is an unsigned contract call.
type TxRequest struct {
	To       common.Address
	Data     []byte
	GasPrice *big.Int
	GasLimit uint64
}

// Wallet is a connected account able to sign and submit transactions.
// SendTransaction errors (including a user declining to sign) are returned
// unchanged so they can be shown verbatim.
type Wallet interface {
	Address() common.Address
	ChainID(ctx context.Context) (int64, error)
	SwitchChain(ctx context.Context, chainID int64) error
	SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error)
}

// RPCResolver maps a chain id to an RPC endpoint.
type RPCResolver func(chainID int64) (string, bool)

// KeyWallet is a Wallet backed by a locally held key.
type KeyWallet struct {
	signer  *crypto.Signer
	resolve RPCResolver
	dial    Dialer
	logger  *slog.Logger

	mu      sync.RWMutex
	backend Backend

	// sendMu serialises nonce assignment across concurrent redemptions.
	sendMu sync.Mutex
}

// NewKeyWallet creates a KeyWallet attached to backend.
func NewKeyWallet(signer *crypto.Signer, backend Backend, resolve RPCResolver, dial Dialer, logger *slog.Logger) *KeyWallet {
	return &KeyWallet{
		signer:  signer,
		resolve: resolve,
		dial:    dial,
		backend: backend,
		logger:  logger.With(slog.String("component", "key_wallet"), slog.String("wallet", signer.Address().Hex())),
	}
}

// Address implements Wallet.
func (w *KeyWallet) Address() common.Address {
	return w.signer.Address()
}

func (w *KeyWallet) current() Backend {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.backend
}

// ChainID implements Wallet by asking the attached node.
func (w *KeyWallet) ChainID(ctx context.Context) (int64, error) {
	id, err := w.current().ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: wallet chain id: %w", err)
	}
	return id.Int64(), nil
}

// SwitchChain re-attaches the wallet to the RPC configured for chainID.
func (w *KeyWallet) SwitchChain(ctx context.Context, chainID int64) error {
	url, ok := w.resolve(chainID)
	if !ok {
		return fmt.Errorf("chain: no rpc configured for chain %d", chainID)
	}
	b, err := w.dial(ctx, url)
	if err != nil {
		return err
	}
	got, err := b.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain: switch: chain id: %w", err)
	}
	if got.Int64() != chainID {
		return fmt.Errorf("chain: switch: rpc for %d reports chain %d", chainID, got.Int64())
	}

	w.mu.Lock()
	w.backend = b
	w.mu.Unlock()
	w.logger.Info("wallet switched network", slog.Int64("chain_id", chainID))
	return nil
}

// SendTransaction signs req as a legacy transaction at req.GasPrice and
// broadcasts it.
func (w *KeyWallet) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	b := w.current()
	chainID, err := b.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain: send: chain id: %w", err)
	}
	from := w.Address()
	nonce, err := b.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("chain: send: nonce: %w", err)
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		to := req.To
		gasLimit, err = b.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: req.Data, GasPrice: req.GasPrice})
		if err != nil {
			return common.Hash{}, fmt.Errorf("chain: send: estimate gas: %w", err)
		}
	}

	to := req.To
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: req.GasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    new(big.Int),
		Data:     req.Data,
	})
	signed, err := w.signer.SignTx(tx, chainID)
	if err != nil {
		return common.Hash{}, err
	}
	if err := b.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("chain: send: %w", err)
	}
	return signed.Hash(), nil
}

// Keyring holds the wallets currently connected to the service.
type Keyring struct {
	mu      sync.RWMutex
	wallets map[common.Address]Wallet
}

// NewKeyring creates an empty Keyring.
func NewKeyring() *Keyring {
	return &Keyring{wallets: make(map[common.Address]Wallet)}
}

// Add connects w.
func (k *Keyring) Add(w Wallet) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.wallets[w.Address()] = w
}

// Get returns the connected wallet for a hex address.
func (k *Keyring) Get(address string) (Wallet, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("chain: %q: %w", address, domain.ErrWalletNotConnected)
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	w, ok := k.wallets[common.HexToAddress(address)]
	if !ok {
		return nil, fmt.Errorf("chain: %s: %w", strings.ToLower(address), domain.ErrWalletNotConnected)
	}
	return w, nil
}

// Addresses lists connected wallets in checksum form.
func (k *Keyring) Addresses() []string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]string, 0, len(k.wallets))
	for a := range k.wallets {
		out = append(out, a.Hex())
	}
	sort.Strings(out)
	return out
}
