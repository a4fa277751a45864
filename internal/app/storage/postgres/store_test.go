package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/refit-labs/staking-engine/internal/app/domain/stake"
	"github.com/refit-labs/staking-engine/internal/app/domain/withdrawal"
	"github.com/refit-labs/staking-engine/internal/app/storage"
)

func newStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestGetPool(t *testing.T) {
	store, mock := newStore(t)

	rows := sqlmock.NewRows([]string{
		"total_deposited", "total_staked", "liquid_balance", "validator_balance",
		"total_distributed", "platform_fees_collected", "updated_at",
	}).AddRow("5000", "5000", "1000", "4000", "0", "0", time.Now())
	mock.ExpectQuery("SELECT .+ FROM liquidity_pool WHERE id = 1").WillReturnRows(rows)

	poolRow, err := store.GetPool(context.Background())
	if err != nil {
		t.Fatalf("get pool: %v", err)
	}
	if !poolRow.TotalStaked.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("expected staked 5000, got %s", poolRow.TotalStaked)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateDepositAndStakeCommits(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT id FROM liquidity_pool WHERE id = 1 FOR UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO deposits").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO stakes").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE liquidity_pool").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	amt := decimal.NewFromInt(1000)
	dep, stk, err := store.CreateDepositAndStake(context.Background(), stake.Deposit{
		WalletAddress: "wallet-a",
		Amount:        amt,
		DepositTx:     "tx-1",
		CurrentValue:  amt,
		Status:        stake.DepositActive,
	}, stake.Stake{
		WalletAddress: "wallet-a",
		Amount:        amt,
		Tier:          stake.TierFlexible,
		Status:        stake.StatusActive,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if dep.ID == "" || stk.ID == "" {
		t.Fatal("expected generated ids")
	}
	if stk.DepositID != dep.ID {
		t.Fatalf("expected stake linked to deposit, got %q vs %q", stk.DepositID, dep.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateDepositDuplicateTxRollsBack(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT id FROM liquidity_pool WHERE id = 1 FOR UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO deposits").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "deposits_deposit_tx_key"})
	mock.ExpectRollback()

	amt := decimal.NewFromInt(1000)
	_, _, err := store.CreateDepositAndStake(context.Background(), stake.Deposit{
		WalletAddress: "wallet-a",
		Amount:        amt,
		DepositTx:     "tx-1",
		CurrentValue:  amt,
		Status:        stake.DepositActive,
	}, stake.Stake{
		WalletAddress: "wallet-a",
		Amount:        amt,
		Tier:          stake.TierFlexible,
		Status:        stake.StatusActive,
	})
	if !errors.Is(err, storage.ErrDuplicateDepositTx) {
		t.Fatalf("expected duplicate tx error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreditYieldDuplicateDay(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO yield_records").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "yield_records_stake_id_accrual_date_key"})
	mock.ExpectRollback()

	_, err := store.CreditYield(context.Background(), stake.YieldRecord{
		StakeID:     "stake-1",
		Amount:      decimal.RequireFromString("0.30"),
		AccrualDate: time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC),
	})
	if !errors.Is(err, storage.ErrDuplicateYieldRecord) {
		t.Fatalf("expected duplicate yield error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreateWithdrawalRequestRequiresActiveStake(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE stakes SET status = 'withdrawal_requested'").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := store.CreateWithdrawalRequest(context.Background(), withdrawal.Request{
		StakeID:       "stake-1",
		WalletAddress: "wallet-a",
		Amount:        decimal.NewFromInt(500),
		Penalty:       decimal.NewFromInt(50),
		NetAmount:     decimal.NewFromInt(450),
	})
	if !errors.Is(err, storage.ErrStakeNotActive) {
		t.Fatalf("expected stake-not-active error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMarkWithdrawalPaidCascades(t *testing.T) {
	store, mock := newStore(t)

	withdrawalCols := []string{
		"id", "stake_id", "wallet_address", "amount", "penalty", "net_amount",
		"status", "withdrawal_tx", "requested_at", "processed_at",
	}
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectExec("SELECT id FROM liquidity_pool WHERE id = 1 FOR UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE withdrawal_requests").
		WillReturnRows(sqlmock.NewRows(withdrawalCols).
			AddRow("req-1", "stake-1", "wallet-a", "500", "50", "450", "paid", "payout-tx", now, now))
	mock.ExpectQuery("UPDATE stakes SET status = 'withdrawn'").
		WillReturnRows(sqlmock.NewRows([]string{"amount"}).AddRow("500"))
	mock.ExpectExec("UPDATE deposits SET status = 'withdrawn'").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE liquidity_pool").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	paid, err := store.MarkWithdrawalPaid(context.Background(), "req-1", "payout-tx")
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if paid.Status != withdrawal.StatusPaid {
		t.Fatalf("expected paid, got %s", paid.Status)
	}
	if !paid.NetAmount.Equal(decimal.NewFromInt(450)) {
		t.Fatalf("expected net 450, got %s", paid.NetAmount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestApproveInvalidTransition(t *testing.T) {
	store, mock := newStore(t)

	mock.ExpectQuery("UPDATE withdrawal_requests SET status = 'approved'").
		WillReturnRows(sqlmock.NewRows(nil))
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := store.ApproveWithdrawalRequest(context.Background(), "req-1")
	if !errors.Is(err, storage.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
