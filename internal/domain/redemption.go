package domain

import "time"

// RedemptionStatus is a state of the redemption state machine.
type RedemptionStatus string

const (
	RedemptionIdle              RedemptionStatus = "idle"
	RedemptionCheckingChain     RedemptionStatus = "checking_chain"
	RedemptionCheckingBalance   RedemptionStatus = "checking_balance"
	RedemptionCheckingAllowance RedemptionStatus = "checking_allowance"
	RedemptionApproving         RedemptionStatus = "approving"
	RedemptionAwaitingApproval  RedemptionStatus = "awaiting_approval_confirmation"
	RedemptionSwapping          RedemptionStatus = "swapping"
	RedemptionAwaitingSwap      RedemptionStatus = "awaiting_swap_confirmation"
	RedemptionDone              RedemptionStatus = "done"
	RedemptionFailed            RedemptionStatus = "failed"
)

// Terminal reports whether no further transitions happen from s.
func (s RedemptionStatus) Terminal() bool {
	return s == RedemptionDone || s == RedemptionFailed || s == RedemptionIdle
}

// RedemptionAttempt is the observable state of a single redeem call for a
// (market, wallet) pair. Amounts are decimal strings of native integer units.
type RedemptionAttempt struct {
	ID         string           `json:"id"`
	MarketID   string           `json:"marketId"`
	Wallet     string           `json:"wallet"`
	Status     RedemptionStatus `json:"status"`
	Token      string           `json:"token,omitempty"`
	Amount     string           `json:"amount,omitempty"`
	ApproveTx  string           `json:"approveTx,omitempty"`
	SwapTx     string           `json:"swapTx,omitempty"`
	Balance    string           `json:"balanceAfter,omitempty"`
	LastError  string           `json:"lastError,omitempty"`
	StartedAt  time.Time        `json:"startedAt"`
	UpdatedAt  time.Time        `json:"updatedAt"`
	FinishedAt *time.Time       `json:"finishedAt,omitempty"`
}

// InFlight reports whether the attempt is still progressing.
func (a RedemptionAttempt) InFlight() bool {
	return !a.Status.Terminal()
}
