// Package stake defines deposits, individual staked positions and their
// accrued yield records.
package stake

import (
	"time"

	"github.com/shopspring/decimal"
)

// DepositStatus tracks whether a deposit's funds are still in the pool.
type DepositStatus string

const (
	DepositActive    DepositStatus = "active"
	DepositWithdrawn DepositStatus = "withdrawn"
)

// Deposit records funds a wallet placed into the pool. Each deposit is paired
// with exactly one stake.
type Deposit struct {
	ID              string          `json:"id"`
	WalletAddress   string          `json:"wallet_address"`
	Amount          decimal.Decimal `json:"amount"`
	DepositTx       string          `json:"deposit_tx"`
	CurrentValue    decimal.Decimal `json:"current_value"`
	TotalEarnedUSDC decimal.Decimal `json:"total_earned_usdc"`
	Status          DepositStatus   `json:"status"`
	DepositedAt     time.Time       `json:"deposited_at"`
}

// Status values for a stake's lifecycle. A stake moves active →
// withdrawal_requested → withdrawn; rejection of the pending request returns
// it to active.
type Status string

const (
	StatusActive              Status = "active"
	StatusWithdrawalRequested Status = "withdrawal_requested"
	StatusWithdrawn           Status = "withdrawn"
)

// Stake is a wallet's locked position within the pool.
type Stake struct {
	ID            string          `json:"id"`
	DepositID     string          `json:"deposit_id"`
	WalletAddress string          `json:"wallet_address"`
	Amount        decimal.Decimal `json:"amount"`
	Tier          Tier            `json:"tier"`
	APY           decimal.Decimal `json:"apy"`
	LockDays      int             `json:"lock_days"`
	UnlockDate    time.Time       `json:"unlock_date"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
}

// IsUnlocked reports whether the lock period has elapsed at the given time.
func (s *Stake) IsUnlocked(now time.Time) bool {
	return !now.Before(s.UnlockDate)
}

// DaysUntilUnlock returns the whole days remaining before the stake unlocks,
// rounded up, floored at zero.
func (s *Stake) DaysUntilUnlock(now time.Time) int {
	if s.IsUnlocked(now) {
		return 0
	}
	remaining := s.UnlockDate.Sub(now)
	days := int(remaining / (24 * time.Hour))
	if remaining%(24*time.Hour) > 0 {
		days++
	}
	return days
}

// YieldRecord is one day's accrued yield for one stake. At most one record
// may exist per (stake, accrual date).
type YieldRecord struct {
	ID          string          `json:"id"`
	StakeID     string          `json:"stake_id"`
	Amount      decimal.Decimal `json:"amount"`
	AccrualDate time.Time       `json:"accrual_date"`
	CreatedAt   time.Time       `json:"created_at"`
}

// AccrualDay normalises a timestamp to the calendar day used as the accrual
// idempotence key.
func AccrualDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
