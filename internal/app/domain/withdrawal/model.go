// Package withdrawal defines withdrawal requests and their settlement states.
package withdrawal

import (
	"time"

	"github.com/shopspring/decimal"
)

// EarlyExitPenaltyRate is the fraction withheld from withdrawals requested
// before the stake's unlock date.
var EarlyExitPenaltyRate = decimal.NewFromFloat(0.10)

// Status tracks a request through manual settlement. pending → approved →
// paid is the happy path; pending or approved may be rejected, which returns
// the stake to active.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPaid     Status = "paid"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusPaid
}

// Request is a user's ask to withdraw a stake. NetAmount is always
// Amount − Penalty.
type Request struct {
	ID            string          `json:"id"`
	StakeID       string          `json:"stake_id"`
	WalletAddress string          `json:"wallet_address"`
	Amount        decimal.Decimal `json:"amount"`
	Penalty       decimal.Decimal `json:"penalty"`
	NetAmount     decimal.Decimal `json:"net_amount"`
	Status        Status          `json:"status"`
	WithdrawalTx  string          `json:"withdrawal_tx,omitempty"`
	RequestedAt   time.Time       `json:"requested_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

// PenaltyFor computes the early-exit penalty for withdrawing the given amount
// at the given time. Requests at or after the unlock date carry no penalty.
func PenaltyFor(amount decimal.Decimal, unlockDate, now time.Time) decimal.Decimal {
	if now.Before(unlockDate) {
		return amount.Mul(EarlyExitPenaltyRate)
	}
	return decimal.Zero
}
