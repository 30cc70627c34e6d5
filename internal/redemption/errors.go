package redemption

import (
	"context"
	"errors"

	"github.com/preyanshu/verdict/internal/domain"
)

// Messages shown to users for each failure class.
const (
	MsgNoBalance     = "No balance to redeem"
	MsgInFlight      = "Redemption already in progress"
	MsgUnresolved    = "Market not resolved"
	MsgTxFailed      = "Transaction failed. Please try again."
	MsgNotConfirmed  = "Transaction not confirmed in time. Check your wallet before retrying."
	MsgCancelled     = "Redemption cancelled"
	MsgNotConnected  = "Wallet not connected"
	MsgBalanceFailed = "Could not read balance. Please try again."
)

// WalletError marks a failure reported by the wallet itself (declined
// signature, refused network switch). Its message is shown as is.
type WalletError struct {
	Err error
}

func (e *WalletError) Error() string { return e.Err.Error() }

func (e *WalletError) Unwrap() error { return e.Err }

type balanceError struct{ err error }

func (e *balanceError) Error() string { return "redemption: read balance: " + e.err.Error() }

func (e *balanceError) Unwrap() error { return e.err }

// UserMessage maps err to the short string stored in lastError.
func UserMessage(err error) string {
	var we *WalletError
	var be *balanceError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrNoBalance):
		return MsgNoBalance
	case errors.Is(err, domain.ErrAttemptInFlight):
		return MsgInFlight
	case errors.Is(err, domain.ErrMarketUnresolved):
		return MsgUnresolved
	case errors.Is(err, domain.ErrWalletNotConnected):
		return MsgNotConnected
	case errors.Is(err, domain.ErrTxReverted):
		return MsgTxFailed
	case errors.Is(err, domain.ErrConfirmTimeout):
		return MsgNotConfirmed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return MsgCancelled
	case errors.As(err, &we):
		return we.Error()
	case errors.As(err, &be):
		return MsgBalanceFailed
	default:
		return MsgTxFailed
	}
}
