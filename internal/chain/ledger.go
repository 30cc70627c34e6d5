package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/preyanshu/verdict/internal/domain"
)

// Ledger wraps the market router contract.
type Ledger struct {
	backend Backend
	router  common.Address
	gas     GasPolicy
	logger  *slog.Logger
}

// NewLedger creates a Ledger bound to the router deployed at router.
func NewLedger(backend Backend, router common.Address, gas GasPolicy, logger *slog.Logger) *Ledger {
	return &Ledger{
		backend: backend,
		router:  router,
		gas:     gas,
		logger:  logger.With(slog.String("component", "ledger")),
	}
}

// Router returns the router address, which is also the spender that needs
// an allowance before a swap.
func (l *Ledger) Router() common.Address {
	return l.router
}

// OutcomeToken returns the token contract for one side of a market. The NO
// side relies on the router exposing getNoTokenAddress.
func (l *Ledger) OutcomeToken(ctx context.Context, marketID string, side domain.Outcome) (common.Address, error) {
	method := "getYesTokenAddress"
	if side == domain.OutcomeNo {
		method = "getNoTokenAddress"
	}
	out, err := readContract(ctx, l.backend, l.router, RouterABI, method, marketID)
	if err != nil {
		return common.Address{}, fmt.Errorf("chain: %s %s: %w", method, marketID, err)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("chain: %s: unexpected return type %T", method, out[0])
	}
	return addr, nil
}

// Balance reads owner's raw balance of one side of a market. The yes side
// goes through the router's own getter; the no side reads the token
// contract directly.
func (l *Ledger) Balance(ctx context.Context, marketID string, side domain.Outcome, owner common.Address) (*big.Int, error) {
	if side == domain.OutcomeYes {
		out, err := readContract(ctx, l.backend, l.router, RouterABI, "getYESBalance", marketID, owner)
		if err != nil {
			return nil, fmt.Errorf("chain: getYESBalance %s: %w", marketID, err)
		}
		return asBigInt(out)
	}
	token, err := l.OutcomeToken(ctx, marketID, side)
	if err != nil {
		return nil, err
	}
	out, err := readContract(ctx, l.backend, token, ERC20ABI, "balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("chain: balanceOf %s: %w", token.Hex(), err)
	}
	return asBigInt(out)
}

// Swap submits router.swap from w.
func (l *Ledger) Swap(ctx context.Context, w Wallet, marketID string, tokenIn common.Address, amountIn, minOut *big.Int) (PendingTx, error) {
	data, err := RouterABI.Pack("swap", marketID, tokenIn, amountIn, minOut)
	if err != nil {
		return PendingTx{}, fmt.Errorf("chain: pack swap: %w", err)
	}
	tx, err := submit(ctx, w, l.gas, l.router, data)
	if err != nil {
		return PendingTx{}, err
	}
	l.logger.Info("swap submitted",
		slog.String("market_id", marketID),
		slog.String("wallet", w.Address().Hex()),
		slog.String("amount_in", amountIn.String()),
		slog.String("tx", tx.Hash.Hex()),
	)
	return tx, nil
}

func readContract(ctx context.Context, b Backend, to common.Address, contract abi.ABI, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack: %w", err)
	}
	raw, err := b.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("unpack: empty result")
	}
	return out, nil
}

func asBigInt(out []any) (*big.Int, error) {
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: unexpected return type %T", out[0])
	}
	return v, nil
}
