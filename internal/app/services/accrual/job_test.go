package accrual

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/refit-labs/staking-engine/internal/app/domain/stake"
	"github.com/refit-labs/staking-engine/internal/app/domain/withdrawal"
	"github.com/refit-labs/staking-engine/internal/app/storage/memory"
)

func withdrawalFor(stk stake.Stake) withdrawal.Request {
	return withdrawal.Request{
		StakeID:       stk.ID,
		WalletAddress: stk.WalletAddress,
		Amount:        stk.Amount,
		Penalty:       decimal.Zero,
		NetAmount:     stk.Amount,
	}
}

func seedStake(t *testing.T, store *memory.Store, wallet, tx string, amount int64) stake.Stake {
	t.Helper()
	amt := decimal.NewFromInt(amount)
	_, stk, err := store.CreateDepositAndStake(context.Background(), stake.Deposit{
		WalletAddress:   wallet,
		Amount:          amt,
		DepositTx:       tx,
		CurrentValue:    amt,
		TotalEarnedUSDC: decimal.Zero,
		Status:          stake.DepositActive,
	}, stake.Stake{
		WalletAddress: wallet,
		Amount:        amt,
		Tier:          stake.TierFlexible,
		Status:        stake.StatusActive,
	})
	if err != nil {
		t.Fatalf("seed stake: %v", err)
	}
	return stk
}

func TestRunForDateCreditsFixedRate(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	stk := seedStake(t, store, "wallet-a", "tx-1", 1000)

	job := NewJob(store, store, store, FixedRatePolicy{Rate: decimal.RequireFromString("0.0003")}, nil)
	day := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	credited, err := job.RunForDate(ctx, day)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if credited != 1 {
		t.Fatalf("expected 1 stake credited, got %d", credited)
	}

	records, _ := store.ListYieldRecords(ctx, stk.ID)
	if len(records) != 1 {
		t.Fatalf("expected 1 yield record, got %d", len(records))
	}
	if !records[0].Amount.Equal(decimal.RequireFromString("0.30")) {
		t.Fatalf("expected yield 0.30, got %s", records[0].Amount)
	}
}

func TestRunForDateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	stk := seedStake(t, store, "wallet-a", "tx-1", 1000)

	job := NewJob(store, store, store, FixedRatePolicy{Rate: decimal.RequireFromString("0.0003")}, nil)
	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	if _, err := job.RunForDate(ctx, day); err != nil {
		t.Fatalf("first run: %v", err)
	}

	credited, err := job.RunForDate(ctx, day.Add(6*time.Hour))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if credited != 0 {
		t.Fatalf("rerun credited %d stakes, expected 0", credited)
	}

	records, _ := store.ListYieldRecords(ctx, stk.ID)
	if len(records) != 1 {
		t.Fatalf("expected exactly 1 record after rerun, got %d", len(records))
	}
	sum, _ := store.SumYield(ctx, stk.ID)
	if !sum.Equal(decimal.RequireFromString("0.30")) {
		t.Fatalf("expected total yield 0.30, got %s", sum)
	}
}

func TestRunForConsecutiveDaysAccumulates(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	stk := seedStake(t, store, "wallet-a", "tx-1", 1000)

	job := NewJob(store, store, store, FixedRatePolicy{Rate: decimal.RequireFromString("0.0003")}, nil)
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if _, err := job.RunForDate(ctx, start.AddDate(0, 0, i)); err != nil {
			t.Fatalf("run day %d: %v", i, err)
		}
	}

	sum, _ := store.SumYield(ctx, stk.ID)
	if !sum.Equal(decimal.RequireFromString("0.90")) {
		t.Fatalf("expected 0.90 after three days, got %s", sum)
	}
}

func TestRunSkipsInactiveStakes(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seedStake(t, store, "wallet-a", "tx-1", 1000)
	locked := seedStake(t, store, "wallet-b", "tx-2", 2000)

	// flip the second stake out of active via a withdrawal request
	if _, err := store.CreateWithdrawalRequest(ctx, withdrawalFor(locked)); err != nil {
		t.Fatalf("request: %v", err)
	}

	job := NewJob(store, store, store, FixedRatePolicy{Rate: decimal.RequireFromString("0.0003")}, nil)
	credited, err := job.RunForDate(ctx, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if credited != 1 {
		t.Fatalf("expected only the active stake credited, got %d", credited)
	}
	if records, _ := store.ListYieldRecords(ctx, locked.ID); len(records) != 0 {
		t.Fatalf("inactive stake accrued %d records", len(records))
	}
}

func TestStakeAPYPolicyDailyRate(t *testing.T) {
	policy := StakeAPYPolicy{}
	stk := stake.Stake{APY: decimal.NewFromInt(150)}

	rate := policy.DailyRate(stk)
	expected := decimal.RequireFromString("1.5").Div(decimal.NewFromInt(365))
	if !rate.Equal(expected) {
		t.Fatalf("expected daily rate %s, got %s", expected, rate)
	}
}
