package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AllowanceManager reads and grants ERC-20 spending authorization.
type AllowanceManager struct {
	backend Backend
	gas     GasPolicy
	logger  *slog.Logger
}

// NewAllowanceManager creates an AllowanceManager that submits approvals
// at the fixed gas price in gas.
func NewAllowanceManager(backend Backend, gas GasPolicy, logger *slog.Logger) *AllowanceManager {
	return &AllowanceManager{
		backend: backend,
		gas:     gas,
		logger:  logger.With(slog.String("component", "allowance")),
	}
}

// Allowance returns what owner has authorized spender to move of token. A
// failed read reports zero so the caller re-approves instead of swapping
// against an allowance it could not confirm.
func (m *AllowanceManager) Allowance(ctx context.Context, token, owner, spender common.Address) *big.Int {
	out, err := readContract(ctx, m.backend, token, ERC20ABI, "allowance", owner, spender)
	if err != nil {
		m.logger.Warn("allowance read failed, assuming zero",
			slog.String("token", token.Hex()),
			slog.String("owner", owner.Hex()),
			slog.String("error", err.Error()),
		)
		return new(big.Int)
	}
	v, err := asBigInt(out)
	if err != nil {
		m.logger.Warn("allowance decode failed, assuming zero", slog.String("error", err.Error()))
		return new(big.Int)
	}
	return v
}

// Approve submits token.approve(spender, amount) from w.
func (m *AllowanceManager) Approve(ctx context.Context, w Wallet, token, spender common.Address, amount *big.Int) (PendingTx, error) {
	data, err := ERC20ABI.Pack("approve", spender, amount)
	if err != nil {
		return PendingTx{}, fmt.Errorf("chain: pack approve: %w", err)
	}
	tx, err := submit(ctx, w, m.gas, token, data)
	if err != nil {
		return PendingTx{}, err
	}
	m.logger.Info("approve submitted",
		slog.String("token", token.Hex()),
		slog.String("spender", spender.Hex()),
		slog.String("wallet", w.Address().Hex()),
		slog.String("tx", tx.Hash.Hex()),
	)
	return tx, nil
}
