package withdrawals

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/refit-labs/staking-engine/internal/app/domain/stake"
	"github.com/refit-labs/staking-engine/internal/app/domain/withdrawal"
	"github.com/refit-labs/staking-engine/internal/app/storage/memory"
	svcerrors "github.com/refit-labs/staking-engine/internal/errors"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := New(store, store, store, nil)
	svc.now = func() time.Time { return testNow }
	return svc, store
}

func seedStake(t *testing.T, store *memory.Store, wallet string, amount int64, unlock time.Time) stake.Stake {
	t.Helper()
	amt := decimal.NewFromInt(amount)
	_, stk, err := store.CreateDepositAndStake(context.Background(), stake.Deposit{
		WalletAddress:   wallet,
		Amount:          amt,
		DepositTx:       "tx-" + wallet + unlock.Format("20060102"),
		CurrentValue:    amt,
		TotalEarnedUSDC: decimal.Zero,
		Status:          stake.DepositActive,
	}, stake.Stake{
		WalletAddress: wallet,
		Amount:        amt,
		Tier:          stake.TierSmart,
		UnlockDate:    unlock,
		Status:        stake.StatusActive,
	})
	if err != nil {
		t.Fatalf("seed stake: %v", err)
	}
	return stk
}

func TestRequestWithdrawalLockedStake(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	stk := seedStake(t, store, "wallet-a", 500, testNow.AddDate(0, 0, 90))

	result, err := svc.RequestWithdrawal(ctx, stk.ID, "wallet-a", decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !result.Request.Penalty.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected penalty 50, got %s", result.Request.Penalty)
	}
	if !result.Request.NetAmount.Equal(decimal.NewFromInt(450)) {
		t.Fatalf("expected net 450, got %s", result.Request.NetAmount)
	}
	if result.Request.Status != withdrawal.StatusPending {
		t.Fatalf("expected pending, got %s", result.Request.Status)
	}
	if result.EstimatedProcessingTime != estimateLocked {
		t.Fatalf("expected locked estimate, got %q", result.EstimatedProcessingTime)
	}
}

func TestRequestWithdrawalUnlockedStake(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	stk := seedStake(t, store, "wallet-a", 500, testNow) // unlock date reached

	result, err := svc.RequestWithdrawal(ctx, stk.ID, "wallet-a", decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !result.Request.Penalty.IsZero() {
		t.Fatalf("expected zero penalty at unlock, got %s", result.Request.Penalty)
	}
	if !result.Request.NetAmount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected net 500, got %s", result.Request.NetAmount)
	}
	if result.EstimatedProcessingTime != estimateUnlocked {
		t.Fatalf("expected unlocked estimate, got %q", result.EstimatedProcessingTime)
	}
}

func TestRequestWithdrawalFlipsStakeState(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	stk := seedStake(t, store, "wallet-a", 500, testNow.AddDate(0, 0, 90))

	if _, err := svc.RequestWithdrawal(ctx, stk.ID, "wallet-a", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("request: %v", err)
	}

	got, _ := store.GetStake(ctx, stk.ID)
	if got.Status != stake.StatusWithdrawalRequested {
		t.Fatalf("expected withdrawal_requested, got %s", got.Status)
	}

	// a second request against the same stake must fail
	_, err := svc.RequestWithdrawal(ctx, stk.ID, "wallet-a", decimal.NewFromInt(100))
	if !svcerrors.HasCode(err, svcerrors.CodeInvalidState) {
		t.Fatalf("expected invalid state error, got %v", err)
	}
}

func TestRequestWithdrawalValidation(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	stk := seedStake(t, store, "wallet-a", 500, testNow.AddDate(0, 0, 90))

	if _, err := svc.RequestWithdrawal(ctx, stk.ID, "wallet-a", decimal.NewFromInt(-1)); !svcerrors.HasCode(err, svcerrors.CodeValidation) {
		t.Fatalf("expected validation error for negative amount, got %v", err)
	}
	if _, err := svc.RequestWithdrawal(ctx, stk.ID, "wallet-a", decimal.NewFromInt(501)); !svcerrors.HasCode(err, svcerrors.CodeValidation) {
		t.Fatalf("expected validation error above balance, got %v", err)
	}
	if _, err := svc.RequestWithdrawal(ctx, "missing", "wallet-a", decimal.NewFromInt(100)); !svcerrors.HasCode(err, svcerrors.CodeNotFound) {
		t.Fatalf("expected not found for unknown stake, got %v", err)
	}
	// the wallet must own the stake
	if _, err := svc.RequestWithdrawal(ctx, stk.ID, "wallet-b", decimal.NewFromInt(100)); !svcerrors.HasCode(err, svcerrors.CodeNotFound) {
		t.Fatalf("expected not found for foreign wallet, got %v", err)
	}
}

func TestSettleApproveRejectPaid(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	stk := seedStake(t, store, "wallet-a", 500, testNow.AddDate(0, 0, 90))

	result, err := svc.RequestWithdrawal(ctx, stk.ID, "wallet-a", decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	reqID := result.Request.ID

	approved, err := svc.Settle(ctx, reqID, ActionApprove, "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != withdrawal.StatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}

	// paying requires a transaction signature
	if _, err := svc.Settle(ctx, reqID, ActionPaid, ""); !svcerrors.HasCode(err, svcerrors.CodeValidation) {
		t.Fatalf("expected validation error without tx, got %v", err)
	}

	paid, err := svc.Settle(ctx, reqID, ActionPaid, "payout-tx")
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if paid.Status != withdrawal.StatusPaid {
		t.Fatalf("expected paid, got %s", paid.Status)
	}

	// terminal: further settlement is an invalid transition
	if _, err := svc.Settle(ctx, reqID, ActionReject, ""); !svcerrors.HasCode(err, svcerrors.CodeInvalidState) {
		t.Fatalf("expected invalid state on settled request, got %v", err)
	}
}

func TestSettleRejectRestoresStake(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	stk := seedStake(t, store, "wallet-a", 500, testNow.AddDate(0, 0, 90))

	result, err := svc.RequestWithdrawal(ctx, stk.ID, "wallet-a", decimal.NewFromInt(500))
	if err != nil {
		t.Fatalf("request: %v", err)
	}

	rejected, err := svc.Settle(ctx, result.Request.ID, ActionReject, "")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != withdrawal.StatusRejected {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}

	got, _ := store.GetStake(ctx, stk.ID)
	if got.Status != stake.StatusActive {
		t.Fatalf("expected stake returned to active, got %s", got.Status)
	}
}

func TestSettleUnknownAction(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	if _, err := svc.Settle(ctx, "some-id", "escalate", ""); !svcerrors.HasCode(err, svcerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown action, got %v", err)
	}
}

func TestListForWallet(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	stk := seedStake(t, store, "wallet-a", 500, testNow.AddDate(0, 0, 90))

	if _, err := svc.RequestWithdrawal(ctx, stk.ID, "wallet-a", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("request: %v", err)
	}

	reqs, err := svc.ListForWallet(ctx, "WALLET-A")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
}

func TestListByStatus(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	stkA := seedStake(t, store, "wallet-a", 500, testNow.AddDate(0, 0, 90))
	stkB := seedStake(t, store, "wallet-b", 500, testNow.AddDate(0, 0, 90))

	resA, err := svc.RequestWithdrawal(ctx, stkA.ID, "wallet-a", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("request a: %v", err)
	}
	if _, err := svc.RequestWithdrawal(ctx, stkB.ID, "wallet-b", decimal.NewFromInt(100)); err != nil {
		t.Fatalf("request b: %v", err)
	}
	if _, err := svc.Settle(ctx, resA.Request.ID, ActionApprove, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}

	pending, err := svc.ListByStatus(ctx, withdrawal.StatusPending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].WalletAddress != "wallet-b" {
		t.Fatalf("expected wallet-b's pending request, got %+v", pending)
	}

	all, err := svc.ListByStatus(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(all))
	}

	if _, err := svc.ListByStatus(ctx, "escalated"); !svcerrors.HasCode(err, svcerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown status, got %v", err)
	}
}
