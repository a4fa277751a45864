// Package postgres implements the storage interfaces backed by PostgreSQL.
// Atomic operations lock the singleton pool row FOR UPDATE and rely on the
// schema's unique constraints for idempotence.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/refit-labs/staking-engine/internal/app/domain/audit"
	"github.com/refit-labs/staking-engine/internal/app/domain/pool"
	"github.com/refit-labs/staking-engine/internal/app/domain/stake"
	"github.com/refit-labs/staking-engine/internal/app/domain/treasury"
	"github.com/refit-labs/staking-engine/internal/app/domain/withdrawal"
	"github.com/refit-labs/staking-engine/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.PoolStore = (*Store)(nil)
var _ storage.DepositStore = (*Store)(nil)
var _ storage.StakeStore = (*Store)(nil)
var _ storage.YieldStore = (*Store)(nil)
var _ storage.WithdrawalStore = (*Store)(nil)
var _ storage.TreasuryStore = (*Store)(nil)
var _ storage.AdminActionStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return constraint == "" || pqErr.Constraint == constraint
	}
	return false
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// --- row types --------------------------------------------------------------

type poolRow struct {
	TotalDeposited   decimal.Decimal `db:"total_deposited"`
	TotalStaked      decimal.Decimal `db:"total_staked"`
	LiquidBalance    decimal.Decimal `db:"liquid_balance"`
	ValidatorBalance decimal.Decimal `db:"validator_balance"`
	TotalDistributed decimal.Decimal `db:"total_distributed"`
	PlatformFees     decimal.Decimal `db:"platform_fees_collected"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

func (r poolRow) domain() pool.LiquidityPool {
	return pool.LiquidityPool{
		TotalDeposited:   r.TotalDeposited,
		TotalStaked:      r.TotalStaked,
		LiquidBalance:    r.LiquidBalance,
		ValidatorBalance: r.ValidatorBalance,
		TotalDistributed: r.TotalDistributed,
		PlatformFees:     r.PlatformFees,
		UpdatedAt:        r.UpdatedAt,
	}
}

type depositRow struct {
	ID              string          `db:"id"`
	WalletAddress   string          `db:"wallet_address"`
	Amount          decimal.Decimal `db:"amount"`
	DepositTx       sql.NullString  `db:"deposit_tx"`
	CurrentValue    decimal.Decimal `db:"current_value"`
	TotalEarnedUSDC decimal.Decimal `db:"total_earned_usdc"`
	Status          string          `db:"status"`
	DepositedAt     time.Time       `db:"deposited_at"`
}

func (r depositRow) domain() stake.Deposit {
	return stake.Deposit{
		ID:              r.ID,
		WalletAddress:   r.WalletAddress,
		Amount:          r.Amount,
		DepositTx:       r.DepositTx.String,
		CurrentValue:    r.CurrentValue,
		TotalEarnedUSDC: r.TotalEarnedUSDC,
		Status:          stake.DepositStatus(r.Status),
		DepositedAt:     r.DepositedAt,
	}
}

type stakeRow struct {
	ID            string          `db:"id"`
	DepositID     string          `db:"deposit_id"`
	WalletAddress string          `db:"wallet_address"`
	Amount        decimal.Decimal `db:"amount"`
	Tier          string          `db:"tier"`
	APY           decimal.Decimal `db:"apy"`
	LockDays      int             `db:"lock_days"`
	UnlockDate    time.Time       `db:"unlock_date"`
	Status        string          `db:"status"`
	CreatedAt     time.Time       `db:"created_at"`
}

func (r stakeRow) domain() stake.Stake {
	return stake.Stake{
		ID:            r.ID,
		DepositID:     r.DepositID,
		WalletAddress: r.WalletAddress,
		Amount:        r.Amount,
		Tier:          stake.Tier(r.Tier),
		APY:           r.APY,
		LockDays:      r.LockDays,
		UnlockDate:    r.UnlockDate,
		Status:        stake.Status(r.Status),
		CreatedAt:     r.CreatedAt,
	}
}

type yieldRow struct {
	ID          string          `db:"id"`
	StakeID     string          `db:"stake_id"`
	Amount      decimal.Decimal `db:"amount"`
	AccrualDate time.Time       `db:"accrual_date"`
	CreatedAt   time.Time       `db:"created_at"`
}

func (r yieldRow) domain() stake.YieldRecord {
	return stake.YieldRecord{
		ID:          r.ID,
		StakeID:     r.StakeID,
		Amount:      r.Amount,
		AccrualDate: r.AccrualDate,
		CreatedAt:   r.CreatedAt,
	}
}

type withdrawalRow struct {
	ID            string          `db:"id"`
	StakeID       string          `db:"stake_id"`
	WalletAddress string          `db:"wallet_address"`
	Amount        decimal.Decimal `db:"amount"`
	Penalty       decimal.Decimal `db:"penalty"`
	NetAmount     decimal.Decimal `db:"net_amount"`
	Status        string          `db:"status"`
	WithdrawalTx  sql.NullString  `db:"withdrawal_tx"`
	RequestedAt   time.Time       `db:"requested_at"`
	ProcessedAt   *time.Time      `db:"processed_at"`
}

func (r withdrawalRow) domain() withdrawal.Request {
	return withdrawal.Request{
		ID:            r.ID,
		StakeID:       r.StakeID,
		WalletAddress: r.WalletAddress,
		Amount:        r.Amount,
		Penalty:       r.Penalty,
		NetAmount:     r.NetAmount,
		Status:        withdrawal.Status(r.Status),
		WithdrawalTx:  r.WithdrawalTx.String,
		RequestedAt:   r.RequestedAt,
		ProcessedAt:   r.ProcessedAt,
	}
}

type snapshotRow struct {
	ID               string          `db:"id"`
	SnapshotDate     time.Time       `db:"snapshot_date"`
	TotalStaked      decimal.Decimal `db:"total_staked"`
	LiquidBalance    decimal.Decimal `db:"liquid_balance"`
	ValidatorBalance decimal.Decimal `db:"validator_balance"`
	CreatedAt        time.Time       `db:"created_at"`
}

func (r snapshotRow) domain() treasury.Snapshot {
	return treasury.Snapshot{
		ID:               r.ID,
		SnapshotDate:     r.SnapshotDate,
		TotalStaked:      r.TotalStaked,
		LiquidBalance:    r.LiquidBalance,
		ValidatorBalance: r.ValidatorBalance,
		CreatedAt:        r.CreatedAt,
	}
}

type actionRow struct {
	ID          string          `db:"id"`
	ActionType  string          `db:"action_type"`
	Description string          `db:"description"`
	Amount      decimal.Decimal `db:"amount"`
	CreatedAt   time.Time       `db:"created_at"`
}

func (r actionRow) domain() audit.AdminAction {
	return audit.AdminAction{
		ID:          r.ID,
		ActionType:  r.ActionType,
		Description: r.Description,
		Amount:      r.Amount,
		CreatedAt:   r.CreatedAt,
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const poolColumns = `total_deposited, total_staked, liquid_balance, validator_balance, total_distributed, platform_fees_collected, updated_at`
const depositColumns = `id, wallet_address, amount, deposit_tx, current_value, total_earned_usdc, status, deposited_at`
const stakeColumns = `id, deposit_id, wallet_address, amount, tier, apy, lock_days, unlock_date, status, created_at`
const withdrawalColumns = `id, stake_id, wallet_address, amount, penalty, net_amount, status, withdrawal_tx, requested_at, processed_at`

// --- PoolStore --------------------------------------------------------------

func (s *Store) GetPool(ctx context.Context) (pool.LiquidityPool, error) {
	var row poolRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+poolColumns+` FROM liquidity_pool WHERE id = 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return pool.LiquidityPool{}, storage.ErrNotFound
	}
	if err != nil {
		return pool.LiquidityPool{}, err
	}
	return row.domain(), nil
}

func (s *Store) UpdateTreasuryBalances(ctx context.Context, liquid, validator decimal.Decimal) (pool.LiquidityPool, error) {
	var row poolRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE liquidity_pool
		SET liquid_balance = $1, validator_balance = $2, updated_at = NOW()
		WHERE id = 1
		RETURNING `+poolColumns+`
	`, liquid, validator)
	if errors.Is(err, sql.ErrNoRows) {
		return pool.LiquidityPool{}, storage.ErrNotFound
	}
	if err != nil {
		return pool.LiquidityPool{}, err
	}
	return row.domain(), nil
}

// --- DepositStore -----------------------------------------------------------

func (s *Store) CreateDepositAndStake(ctx context.Context, dep stake.Deposit, stk stake.Stake) (stake.Deposit, stake.Stake, error) {
	now := time.Now().UTC()
	if dep.ID == "" {
		dep.ID = uuid.NewString()
	}
	if dep.DepositedAt.IsZero() {
		dep.DepositedAt = now
	}
	if stk.ID == "" {
		stk.ID = uuid.NewString()
	}
	if stk.CreatedAt.IsZero() {
		stk.CreatedAt = now
	}
	stk.DepositID = dep.ID

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		// Lock the singleton row so concurrent deposits serialize their
		// aggregate updates.
		if _, err := tx.ExecContext(ctx, `SELECT id FROM liquidity_pool WHERE id = 1 FOR UPDATE`); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO deposits (`+depositColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, dep.ID, dep.WalletAddress, dep.Amount, nullString(dep.DepositTx),
			dep.CurrentValue, dep.TotalEarnedUSDC, string(dep.Status), dep.DepositedAt)
		if isUniqueViolation(err, "deposits_deposit_tx_key") {
			return storage.ErrDuplicateDepositTx
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO stakes (`+stakeColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, stk.ID, stk.DepositID, stk.WalletAddress, stk.Amount, string(stk.Tier),
			stk.APY, stk.LockDays, stk.UnlockDate, string(stk.Status), stk.CreatedAt); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE liquidity_pool
			SET total_deposited = total_deposited + $1,
			    total_staked = total_staked + $2,
			    updated_at = NOW()
			WHERE id = 1
		`, dep.Amount, stk.Amount)
		return err
	})
	if err != nil {
		return stake.Deposit{}, stake.Stake{}, err
	}
	return dep, stk, nil
}

func (s *Store) GetDeposit(ctx context.Context, id string) (stake.Deposit, error) {
	var row depositRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+depositColumns+` FROM deposits WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return stake.Deposit{}, storage.ErrNotFound
	}
	if err != nil {
		return stake.Deposit{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListDepositsForWallet(ctx context.Context, wallet string) ([]stake.Deposit, error) {
	var rows []depositRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+depositColumns+` FROM deposits
		WHERE LOWER(wallet_address) = LOWER($1)
		ORDER BY deposited_at
	`, wallet)
	if err != nil {
		return nil, err
	}
	result := make([]stake.Deposit, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) ListActiveDeposits(ctx context.Context) ([]stake.Deposit, error) {
	var rows []depositRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+depositColumns+` FROM deposits
		WHERE status = 'active'
		ORDER BY deposited_at
	`)
	if err != nil {
		return nil, err
	}
	result := make([]stake.Deposit, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

// --- StakeStore -------------------------------------------------------------

func (s *Store) GetStake(ctx context.Context, id string) (stake.Stake, error) {
	var row stakeRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+stakeColumns+` FROM stakes WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return stake.Stake{}, storage.ErrNotFound
	}
	if err != nil {
		return stake.Stake{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListStakesForWallet(ctx context.Context, wallet string) ([]stake.Stake, error) {
	var rows []stakeRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+stakeColumns+` FROM stakes
		WHERE LOWER(wallet_address) = LOWER($1)
		ORDER BY created_at
	`, wallet)
	if err != nil {
		return nil, err
	}
	result := make([]stake.Stake, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) ListActiveStakes(ctx context.Context) ([]stake.Stake, error) {
	var rows []stakeRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+stakeColumns+` FROM stakes
		WHERE status = 'active'
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	result := make([]stake.Stake, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

// --- YieldStore -------------------------------------------------------------

func (s *Store) CreditYield(ctx context.Context, rec stake.YieldRecord) (stake.YieldRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.AccrualDate = stake.AccrualDay(rec.AccrualDate)
	rec.CreatedAt = time.Now().UTC()

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO yield_records (id, stake_id, amount, accrual_date, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, rec.ID, rec.StakeID, rec.Amount, rec.AccrualDate, rec.CreatedAt)
		if isUniqueViolation(err, "yield_records_stake_id_accrual_date_key") {
			return storage.ErrDuplicateYieldRecord
		}
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE deposits
			SET total_earned_usdc = total_earned_usdc + $2,
			    current_value = current_value + $2
			WHERE id = (SELECT deposit_id FROM stakes WHERE id = $1)
		`, rec.StakeID, rec.Amount)
		return err
	})
	if err != nil {
		return stake.YieldRecord{}, err
	}
	return rec, nil
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

func (s *Store) HasAccrualForDate(ctx context.Context, day time.Time) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists, `
		SELECT EXISTS (SELECT 1 FROM yield_records WHERE accrual_date = $1)
	`, stake.AccrualDay(day))
	return exists, err
}

func (s *Store) ListYieldRecords(ctx context.Context, stakeID string) ([]stake.YieldRecord, error) {
	var rows []yieldRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, stake_id, amount, accrual_date, created_at
		FROM yield_records
		WHERE stake_id = $1
		ORDER BY accrual_date
	`, stakeID)
	if err != nil {
		return nil, err
	}
	result := make([]stake.YieldRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) SumYield(ctx context.Context, stakeID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount), 0) FROM yield_records WHERE stake_id = $1
	`, stakeID)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// --- WithdrawalStore --------------------------------------------------------

func (s *Store) CreateWithdrawalRequest(ctx context.Context, req withdrawal.Request) (withdrawal.Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	req.Status = withdrawal.StatusPending

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		// Compare-and-set on the stake status: exactly one concurrent
		// request can win this update.
		result, err := tx.ExecContext(ctx, `
			UPDATE stakes SET status = 'withdrawal_requested'
			WHERE id = $1 AND status = 'active'
		`, req.StakeID)
		if err != nil {
			return err
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			var exists bool
			if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM stakes WHERE id = $1)`, req.StakeID); err != nil {
				return err
			}
			if !exists {
				return storage.ErrNotFound
			}
			return storage.ErrStakeNotActive
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO withdrawal_requests (`+withdrawalColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, req.ID, req.StakeID, req.WalletAddress, req.Amount, req.Penalty,
			req.NetAmount, string(req.Status), nullString(req.WithdrawalTx), req.RequestedAt, req.ProcessedAt)
		if isUniqueViolation(err, "withdrawal_requests_stake_open_key") {
			return storage.ErrStakeNotActive
		}
		return err
	})
	if err != nil {
		return withdrawal.Request{}, err
	}
	return req, nil
}

func (s *Store) GetWithdrawalRequest(ctx context.Context, id string) (withdrawal.Request, error) {
	var row withdrawalRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return withdrawal.Request{}, storage.ErrNotFound
	}
	if err != nil {
		return withdrawal.Request{}, err
	}
	return row.domain(), nil
}

func (s *Store) ListWithdrawalsForWallet(ctx context.Context, wallet string) ([]withdrawal.Request, error) {
	var rows []withdrawalRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+withdrawalColumns+` FROM withdrawal_requests
		WHERE LOWER(wallet_address) = LOWER($1)
		ORDER BY requested_at
	`, wallet)
	if err != nil {
		return nil, err
	}
	result := make([]withdrawal.Request, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) ListWithdrawalsByStatus(ctx context.Context, status withdrawal.Status) ([]withdrawal.Request, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests`
	args := []interface{}{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY requested_at`

	var rows []withdrawalRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]withdrawal.Request, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}

func (s *Store) SumPaidWithdrawals(ctx context.Context, stakeID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.GetContext(ctx, &total, `
		SELECT COALESCE(SUM(amount), 0) FROM withdrawal_requests
		WHERE stake_id = $1 AND status = 'paid'
	`, stakeID)
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func (s *Store) ApproveWithdrawalRequest(ctx context.Context, id string) (withdrawal.Request, error) {
	var row withdrawalRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE withdrawal_requests SET status = 'approved'
		WHERE id = $1 AND status = 'pending'
		RETURNING `+withdrawalColumns+`
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return withdrawal.Request{}, s.transitionFailure(ctx, id)
	}
	if err != nil {
		return withdrawal.Request{}, err
	}
	return row.domain(), nil
}

func (s *Store) RejectWithdrawalRequest(ctx context.Context, id string) (withdrawal.Request, error) {
	var row withdrawalRow
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &row, `
			UPDATE withdrawal_requests SET status = 'rejected', processed_at = NOW()
			WHERE id = $1 AND status IN ('pending', 'approved')
			RETURNING `+withdrawalColumns+`
		`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return s.transitionFailure(ctx, id)
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE stakes SET status = 'active'
			WHERE id = $1 AND status = 'withdrawal_requested'
		`, row.StakeID)
		return err
	})
	if err != nil {
		return withdrawal.Request{}, err
	}
	return row.domain(), nil
}

func (s *Store) MarkWithdrawalPaid(ctx context.Context, id, txSignature string) (withdrawal.Request, error) {
	var row withdrawalRow
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT id FROM liquidity_pool WHERE id = 1 FOR UPDATE`); err != nil {
			return err
		}

		err := tx.GetContext(ctx, &row, `
			UPDATE withdrawal_requests
			SET status = 'paid', withdrawal_tx = $2, processed_at = NOW()
			WHERE id = $1 AND status IN ('pending', 'approved')
			RETURNING `+withdrawalColumns+`
		`, id, nullString(txSignature))
		if errors.Is(err, sql.ErrNoRows) {
			return s.transitionFailure(ctx, id)
		}
		if err != nil {
			return err
		}

		var stakeAmount decimal.Decimal
		if err := tx.GetContext(ctx, &stakeAmount, `
			UPDATE stakes SET status = 'withdrawn' WHERE id = $1 RETURNING amount
		`, row.StakeID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE deposits SET status = 'withdrawn'
			WHERE id = (SELECT deposit_id FROM stakes WHERE id = $1)
		`, row.StakeID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE liquidity_pool
			SET total_staked = total_staked - $1,
			    total_distributed = total_distributed + $2,
			    platform_fees_collected = platform_fees_collected + $3,
			    updated_at = NOW()
			WHERE id = 1
		`, stakeAmount, row.NetAmount, row.Penalty)
		return err
	})
	if err != nil {
		return withdrawal.Request{}, err
	}
	return row.domain(), nil
}

// transitionFailure distinguishes a missing request from one in a state that
// does not admit the attempted transition.
func (s *Store) transitionFailure(ctx context.Context, id string) error {
	var exists bool
	if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM withdrawal_requests WHERE id = $1)`, id); err != nil {
		return err
	}
	if !exists {
		return storage.ErrNotFound
	}
	return storage.ErrInvalidTransition
}

// --- TreasuryStore ----------------------------------------------------------

func (s *Store) CreateTreasurySnapshot(ctx context.Context, snap treasury.Snapshot) (treasury.Snapshot, error) {
	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.SnapshotDate.IsZero() {
		snap.SnapshotDate = time.Now().UTC()
	}
	snap.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO treasury_snapshots (id, snapshot_date, total_staked, liquid_balance, validator_balance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, snap.ID, snap.SnapshotDate, snap.TotalStaked, snap.LiquidBalance, snap.ValidatorBalance, snap.CreatedAt)
	if err != nil {
		return treasury.Snapshot{}, err
	}
	return snap, nil
}

func (s *Store) GetLatestTreasurySnapshot(ctx context.Context) (treasury.Snapshot, error) {
	var row snapshotRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, snapshot_date, total_staked, liquid_balance, validator_balance, created_at
		FROM treasury_snapshots
		ORDER BY created_at DESC
		LIMIT 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return treasury.Snapshot{}, storage.ErrNotFound
	}
	if err != nil {
		return treasury.Snapshot{}, err
	}
	return row.domain(), nil
}

// --- AdminActionStore -------------------------------------------------------

func (s *Store) RecordAdminAction(ctx context.Context, act audit.AdminAction) (audit.AdminAction, error) {
	if act.ID == "" {
		act.ID = uuid.NewString()
	}
	act.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_actions (id, action_type, description, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, act.ID, act.ActionType, act.Description, act.Amount, act.CreatedAt)
	if err != nil {
		return audit.AdminAction{}, err
	}
	return act, nil
}

func (s *Store) ListAdminActions(ctx context.Context, limit int) ([]audit.AdminAction, error) {
	query := `SELECT id, action_type, description, amount, created_at FROM admin_actions ORDER BY created_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	var rows []actionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	result := make([]audit.AdminAction, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.domain())
	}
	return result, nil
}
