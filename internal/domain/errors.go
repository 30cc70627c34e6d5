package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrLockHeld     = errors.New("lock already held")

	// Redemption preconditions and ledger outcomes.
	ErrNoBalance          = errors.New("no balance to redeem")
	ErrAttemptInFlight    = errors.New("redemption already in progress")
	ErrNetworkMismatch    = errors.New("wallet is on the wrong network")
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrMarketUnresolved   = errors.New("market not resolved")
	ErrTxReverted         = errors.New("transaction reverted")
	ErrConfirmTimeout     = errors.New("timed out waiting for confirmation")

	// Oracle feeds.
	ErrUnknownFeed     = errors.New("unknown data source")
	ErrFeedUnavailable = errors.New("data source unavailable")
)
