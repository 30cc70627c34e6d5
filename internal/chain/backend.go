// Package chain talks to the settlement ledger: contract reads, signed
// writes with a fixed gas price, receipt polling and wallet network checks.
package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the slice of an Ethereum JSON-RPC client the service needs.
// *ethclient.Client satisfies it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Dialer opens a Backend for an RPC URL.
type Dialer func(ctx context.Context, rawURL string) (Backend, error)

// Dial connects to an RPC endpoint and confirms it answers eth_chainId.
func Dial(ctx context.Context, rawURL string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial: %w", err)
	}
	if _, err := client.ChainID(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("chain: dial: chain id: %w", err)
	}
	return client, nil
}

// GasPolicy is the fixed pricing applied to every write.
type GasPolicy struct {
	Price *big.Int
	// Limit of zero asks the node to estimate.
	Limit uint64
}

// PendingTx is a submitted write. Call replays the transaction as a read so a
// revert reason can be recovered after the fact.
type PendingTx struct {
	Hash common.Hash
	Call ethereum.CallMsg
}

func submit(ctx context.Context, w Wallet, gas GasPolicy, to common.Address, data []byte) (PendingTx, error) {
	req := TxRequest{To: to, Data: data, GasPrice: gas.Price, GasLimit: gas.Limit}
	hash, err := w.SendTransaction(ctx, req)
	if err != nil {
		return PendingTx{}, err
	}
	return PendingTx{
		Hash: hash,
		Call: ethereum.CallMsg{From: w.Address(), To: &to, Data: data, GasPrice: gas.Price},
	}, nil
}
