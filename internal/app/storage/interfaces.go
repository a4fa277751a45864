// Package storage defines the persistence contracts of the staking engine.
// Operations that must be atomic with respect to the ledger invariants
// (deposit recording, withdrawal flips, settlement, yield credits) are store
// methods so each implementation can supply its own transaction boundary.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/refit-labs/staking-engine/internal/app/domain/audit"
	"github.com/refit-labs/staking-engine/internal/app/domain/pool"
	"github.com/refit-labs/staking-engine/internal/app/domain/stake"
	"github.com/refit-labs/staking-engine/internal/app/domain/treasury"
	"github.com/refit-labs/staking-engine/internal/app/domain/withdrawal"
)

// Sentinel errors implementations must return so services can map failures to
// the caller-facing taxonomy.
var (
	ErrNotFound             = errors.New("record not found")
	ErrDuplicateDepositTx   = errors.New("deposit transaction already processed")
	ErrDuplicateYieldRecord = errors.New("yield already recorded for stake and date")
	ErrStakeNotActive       = errors.New("stake is not active")
	ErrInvalidTransition    = errors.New("invalid withdrawal status transition")
)

// PoolStore persists the singleton liquidity pool aggregate.
type PoolStore interface {
	GetPool(ctx context.Context) (pool.LiquidityPool, error)
	// UpdateTreasuryBalances overwrites the pool's liquid and validator
	// balances, leaving the staked totals untouched.
	UpdateTreasuryBalances(ctx context.Context, liquid, validator decimal.Decimal) (pool.LiquidityPool, error)
}

// DepositStore persists deposits and their paired stakes.
type DepositStore interface {
	// CreateDepositAndStake atomically inserts the deposit and its stake and
	// increments the pool's deposited and staked totals. A reused deposit
	// transaction signature fails with ErrDuplicateDepositTx and leaves no
	// partial state.
	CreateDepositAndStake(ctx context.Context, dep stake.Deposit, stk stake.Stake) (stake.Deposit, stake.Stake, error)
	GetDeposit(ctx context.Context, id string) (stake.Deposit, error)
	ListDepositsForWallet(ctx context.Context, wallet string) ([]stake.Deposit, error)
	ListActiveDeposits(ctx context.Context) ([]stake.Deposit, error)
}

// StakeStore reads individual staked positions.
type StakeStore interface {
	GetStake(ctx context.Context, id string) (stake.Stake, error)
	ListStakesForWallet(ctx context.Context, wallet string) ([]stake.Stake, error)
	ListActiveStakes(ctx context.Context) ([]stake.Stake, error)
}

// YieldStore persists daily yield records.
type YieldStore interface {
	// CreditYield inserts the record and adds its amount to the paired
	// deposit's cached earnings. A second record for the same stake and
	// accrual date fails with ErrDuplicateYieldRecord.
	CreditYield(ctx context.Context, rec stake.YieldRecord) (stake.YieldRecord, error)
	// HasAccrualForDate reports whether any yield record exists for the
	// calendar day, marking that day's accrual run as complete.
	HasAccrualForDate(ctx context.Context, day time.Time) (bool, error)
	ListYieldRecords(ctx context.Context, stakeID string) ([]stake.YieldRecord, error)
	SumYield(ctx context.Context, stakeID string) (decimal.Decimal, error)
}

// WithdrawalStore persists withdrawal requests and drives their settlement
// transitions.
type WithdrawalStore interface {
	// CreateWithdrawalRequest atomically flips the stake from active to
	// withdrawal_requested and inserts the pending request. If the stake is
	// not active (including when another request won the race) it fails with
	// ErrStakeNotActive.
	CreateWithdrawalRequest(ctx context.Context, req withdrawal.Request) (withdrawal.Request, error)
	GetWithdrawalRequest(ctx context.Context, id string) (withdrawal.Request, error)
	ListWithdrawalsForWallet(ctx context.Context, wallet string) ([]withdrawal.Request, error)
	ListWithdrawalsByStatus(ctx context.Context, status withdrawal.Status) ([]withdrawal.Request, error)
	// SumPaidWithdrawals totals the amounts already disbursed for a stake.
	SumPaidWithdrawals(ctx context.Context, stakeID string) (decimal.Decimal, error)

	// ApproveWithdrawalRequest moves pending → approved.
	ApproveWithdrawalRequest(ctx context.Context, id string) (withdrawal.Request, error)
	// RejectWithdrawalRequest moves pending or approved → rejected and
	// returns the stake to active.
	RejectWithdrawalRequest(ctx context.Context, id string) (withdrawal.Request, error)
	// MarkWithdrawalPaid moves pending or approved → paid, marks the stake
	// and its deposit withdrawn and decrements the pool's staked total by the
	// stake amount, all atomically.
	MarkWithdrawalPaid(ctx context.Context, id, txSignature string) (withdrawal.Request, error)
}

// TreasuryStore persists the append-only treasury snapshot trail.
type TreasuryStore interface {
	CreateTreasurySnapshot(ctx context.Context, snap treasury.Snapshot) (treasury.Snapshot, error)
	GetLatestTreasurySnapshot(ctx context.Context) (treasury.Snapshot, error)
}

// AdminActionStore persists the audit trail.
type AdminActionStore interface {
	RecordAdminAction(ctx context.Context, act audit.AdminAction) (audit.AdminAction, error)
	ListAdminActions(ctx context.Context, limit int) ([]audit.AdminAction, error)
}
