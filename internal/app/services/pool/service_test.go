package pool

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/refit-labs/staking-engine/internal/app/domain/stake"
	"github.com/refit-labs/staking-engine/internal/app/storage/memory"
	svcerrors "github.com/refit-labs/staking-engine/internal/errors"
)

func newService() (*Service, *memory.Store) {
	store := memory.New()
	return New(store, store, store, store, Config{}, nil), store
}

func TestRecordDepositUpdatesPool(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	dep, stk, err := svc.RecordDeposit(ctx, "wallet-a", "tx-1", decimal.NewFromInt(1000), stake.TierFlexible)
	if err != nil {
		t.Fatalf("record deposit: %v", err)
	}
	if !dep.CurrentValue.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected current value 1000, got %s", dep.CurrentValue)
	}
	if stk.Status != stake.StatusActive {
		t.Fatalf("expected active stake, got %s", stk.Status)
	}
	if stk.LockDays != 0 {
		t.Fatalf("flexible tier should not lock, got %d days", stk.LockDays)
	}

	summary, err := svc.GetPoolSummary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if !summary.Pool.TotalDeposited.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected total deposited 1000, got %s", summary.Pool.TotalDeposited)
	}
	if !summary.Pool.TotalStaked.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected total staked 1000, got %s", summary.Pool.TotalStaked)
	}
	if !summary.WeeklyRequired.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected weekly required payout 20, got %s", summary.WeeklyRequired)
	}
	if summary.ActiveDepositors != 1 {
		t.Fatalf("expected 1 depositor, got %d", summary.ActiveDepositors)
	}
}

func TestRecordDepositBounds(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, _, err := svc.RecordDeposit(ctx, "wallet-a", "tx-low", decimal.NewFromInt(999), stake.TierFlexible)
	if !svcerrors.HasCode(err, svcerrors.CodeValidation) {
		t.Fatalf("expected validation error below minimum, got %v", err)
	}

	_, _, err = svc.RecordDeposit(ctx, "wallet-a", "tx-high", decimal.NewFromInt(10001), stake.TierFlexible)
	if !svcerrors.HasCode(err, svcerrors.CodeValidation) {
		t.Fatalf("expected validation error above maximum, got %v", err)
	}

	// bounds are inclusive
	if _, _, err := svc.RecordDeposit(ctx, "wallet-a", "tx-min", decimal.NewFromInt(1000), stake.TierFlexible); err != nil {
		t.Fatalf("minimum deposit should be accepted: %v", err)
	}
	if _, _, err := svc.RecordDeposit(ctx, "wallet-a", "tx-max", decimal.NewFromInt(10000), stake.TierFlexible); err != nil {
		t.Fatalf("maximum deposit should be accepted: %v", err)
	}
}

func TestRecordDepositDuplicateTx(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	if _, _, err := svc.RecordDeposit(ctx, "wallet-a", "tx-1", decimal.NewFromInt(1000), stake.TierFlexible); err != nil {
		t.Fatalf("first deposit: %v", err)
	}

	_, _, err := svc.RecordDeposit(ctx, "wallet-b", "tx-1", decimal.NewFromInt(2000), stake.TierSmart)
	se := svcerrors.GetServiceError(err)
	if se == nil || se.Message != "transaction already processed" {
		t.Fatalf("expected duplicate transaction error, got %v", err)
	}
}

func TestRecordDepositUnknownTier(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, _, err := svc.RecordDeposit(ctx, "wallet-a", "tx-1", decimal.NewFromInt(1000), stake.Tier("gold"))
	if !svcerrors.HasCode(err, svcerrors.CodeValidation) {
		t.Fatalf("expected validation error for unknown tier, got %v", err)
	}
}

func TestRecordDepositDefaultsToFlexible(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	_, stk, err := svc.RecordDeposit(ctx, "wallet-a", "tx-1", decimal.NewFromInt(1000), "")
	if err != nil {
		t.Fatalf("record deposit: %v", err)
	}
	if stk.Tier != stake.TierFlexible {
		t.Fatalf("expected flexible tier default, got %s", stk.Tier)
	}
}

func TestGetWalletDeposits(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	if _, _, err := svc.RecordDeposit(ctx, "wallet-a", "tx-1", decimal.NewFromInt(1000), stake.TierFlexible); err != nil {
		t.Fatalf("deposit 1: %v", err)
	}
	if _, _, err := svc.RecordDeposit(ctx, "wallet-a", "tx-2", decimal.NewFromInt(2000), stake.TierSmart); err != nil {
		t.Fatalf("deposit 2: %v", err)
	}
	if _, _, err := svc.RecordDeposit(ctx, "wallet-b", "tx-3", decimal.NewFromInt(3000), stake.TierDiamond); err != nil {
		t.Fatalf("deposit 3: %v", err)
	}

	view, err := svc.GetWalletDeposits(ctx, "WALLET-A")
	if err != nil {
		t.Fatalf("wallet deposits: %v", err)
	}
	if len(view.Deposits) != 2 {
		t.Fatalf("expected 2 deposits, got %d", len(view.Deposits))
	}
	if !view.TotalDeposited.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("expected 3000 deposited, got %s", view.TotalDeposited)
	}
	if !view.WeeklyEarnings.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected weekly earnings 60, got %s", view.WeeklyEarnings)
	}
}
