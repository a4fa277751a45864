// Package stakes implements the stake registry: per-wallet stake views and
// claimable-yield arithmetic.
package stakes

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/refit-labs/staking-engine/internal/app/domain/stake"
	"github.com/refit-labs/staking-engine/internal/app/storage"
	svcerrors "github.com/refit-labs/staking-engine/internal/errors"
	"github.com/refit-labs/staking-engine/pkg/logger"
)

// StakeView annotates a stake with its derived lock and earnings state.
type StakeView struct {
	Stake           stake.Stake     `json:"stake"`
	IsUnlocked      bool            `json:"is_unlocked"`
	DaysUntilUnlock int             `json:"days_until_unlock"`
	TotalEarned     decimal.Decimal `json:"total_earned"`
	ClaimableYield  decimal.Decimal `json:"claimable_yield"`
}

// WalletSummary aggregates a wallet's positions.
type WalletSummary struct {
	TotalStaked    decimal.Decimal `json:"total_staked"`
	TotalEarned    decimal.Decimal `json:"total_earned"`
	ClaimableYield decimal.Decimal `json:"claimable_yield"`
	ActiveStakes   int             `json:"active_stakes"`
	TotalStakes    int             `json:"total_stakes"`
}

// Service is the stake registry.
type Service struct {
	stakes      storage.StakeStore
	yields      storage.YieldStore
	withdrawals storage.WithdrawalStore
	log         *logger.Logger

	now func() time.Time
}

// New constructs a stake registry.
func New(stakes storage.StakeStore, yields storage.YieldStore, withdrawals storage.WithdrawalStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("stakes")
	}
	return &Service{
		stakes:      stakes,
		yields:      yields,
		withdrawals: withdrawals,
		log:         log,
		now:         time.Now,
	}
}

// ListStakesForWallet returns every stake owned by the wallet, each annotated
// with unlock and earnings state, plus the wallet summary.
func (s *Service) ListStakesForWallet(ctx context.Context, wallet string) ([]StakeView, WalletSummary, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, WalletSummary{}, svcerrors.Validation("wallet is required")
	}

	stakesList, err := s.stakes.ListStakesForWallet(ctx, wallet)
	if err != nil {
		return nil, WalletSummary{}, svcerrors.Internal("list stakes", err)
	}

	now := s.now().UTC()
	summary := WalletSummary{
		TotalStaked:    decimal.Zero,
		TotalEarned:    decimal.Zero,
		ClaimableYield: decimal.Zero,
		TotalStakes:    len(stakesList),
	}

	views := make([]StakeView, 0, len(stakesList))
	for _, stk := range stakesList {
		earned, err := s.yields.SumYield(ctx, stk.ID)
		if err != nil {
			return nil, WalletSummary{}, svcerrors.Internal("sum yield", err)
		}
		claimable, err := s.claimable(ctx, stk.ID, earned)
		if err != nil {
			return nil, WalletSummary{}, err
		}

		views = append(views, StakeView{
			Stake:           stk,
			IsUnlocked:      stk.IsUnlocked(now),
			DaysUntilUnlock: stk.DaysUntilUnlock(now),
			TotalEarned:     earned,
			ClaimableYield:  claimable,
		})

		if stk.Status == stake.StatusActive {
			summary.TotalStaked = summary.TotalStaked.Add(stk.Amount)
			summary.ActiveStakes++
		}
		summary.TotalEarned = summary.TotalEarned.Add(earned)
		summary.ClaimableYield = summary.ClaimableYield.Add(claimable)
	}

	return views, summary, nil
}

// GetClaimableYield returns the stake's accrued yield minus what has already
// been disbursed through paid withdrawal requests, floored at zero.
func (s *Service) GetClaimableYield(ctx context.Context, stakeID string) (decimal.Decimal, error) {
	stakeID = strings.TrimSpace(stakeID)
	if stakeID == "" {
		return decimal.Zero, svcerrors.Validation("stake_id is required")
	}
	if _, err := s.stakes.GetStake(ctx, stakeID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return decimal.Zero, svcerrors.NotFoundf("stake %s not found", stakeID)
		}
		return decimal.Zero, svcerrors.Internal("load stake", err)
	}

	earned, err := s.yields.SumYield(ctx, stakeID)
	if err != nil {
		return decimal.Zero, svcerrors.Internal("sum yield", err)
	}
	return s.claimable(ctx, stakeID, earned)
}

func (s *Service) claimable(ctx context.Context, stakeID string, earned decimal.Decimal) (decimal.Decimal, error) {
	disbursed, err := s.withdrawals.SumPaidWithdrawals(ctx, stakeID)
	if err != nil {
		return decimal.Zero, svcerrors.Internal("sum paid withdrawals", err)
	}
	claimable := earned.Sub(disbursed)
	if claimable.IsNegative() {
		s.log.WithField("stake_id", stakeID).
			WithField("earned", earned.String()).
			WithField("disbursed", disbursed.String()).
			Warn("paid withdrawals exceed accrued yield; clamping claimable to zero")
		claimable = decimal.Zero
	}
	return claimable, nil
}
