package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/preyanshu/verdict/internal/domain"
)

// RevertError reports a mined transaction with a failed status.
type RevertError struct {
	Hash   common.Hash
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("transaction %s reverted", e.Hash.Hex())
	}
	return fmt.Sprintf("transaction %s reverted: %s", e.Hash.Hex(), e.Reason)
}

func (e *RevertError) Unwrap() error { return domain.ErrTxReverted }

// Confirmer waits for transactions to be mined.
type Confirmer struct {
	backend Backend
	poll    time.Duration
	timeout time.Duration
	logger  *slog.Logger
}

// NewConfirmer creates a Confirmer. A zero timeout waits until ctx ends.
func NewConfirmer(backend Backend, poll, timeout time.Duration, logger *slog.Logger) *Confirmer {
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &Confirmer{
		backend: backend,
		poll:    poll,
		timeout: timeout,
		logger:  logger.With(slog.String("component", "confirmer")),
	}
}

// Wait polls for tx's receipt. A reverted transaction returns the receipt
// together with a *RevertError.
func (c *Confirmer) Wait(ctx context.Context, tx PendingTx) (*types.Receipt, error) {
	waitCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(waitCtx, tx.Hash)
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusSuccessful {
				return receipt, nil
			}
			reason := c.revertReason(waitCtx, tx, receipt)
			c.logger.Warn("transaction reverted",
				slog.String("tx", tx.Hash.Hex()),
				slog.String("reason", reason),
			)
			return receipt, &RevertError{Hash: tx.Hash, Reason: reason}
		case errors.Is(err, ethereum.NotFound):
		default:
			c.logger.Debug("receipt poll failed", slog.String("tx", tx.Hash.Hex()), slog.String("error", err.Error()))
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() == nil {
				return nil, fmt.Errorf("chain: %s: %w", tx.Hash.Hex(), domain.ErrConfirmTimeout)
			}
			return nil, fmt.Errorf("chain: wait %s: %w", tx.Hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// revertReason replays the call at the block it was mined in.
func (c *Confirmer) revertReason(ctx context.Context, tx PendingTx, receipt *types.Receipt) string {
	if tx.Call.To == nil {
		return ""
	}
	_, err := c.backend.CallContract(ctx, tx.Call, receipt.BlockNumber)
	if err == nil {
		return ""
	}
	var de rpc.DataError
	if errors.As(err, &de) {
		if s, ok := de.ErrorData().(string); ok {
			if data, derr := hexutil.Decode(s); derr == nil {
				if reason, uerr := abi.UnpackRevert(data); uerr == nil {
					return reason
				}
			}
		}
	}
	return err.Error()
}
