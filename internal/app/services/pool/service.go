// Package pool implements the pool accountant: it applies deposits to the
// singleton liquidity pool and derives its summary statistics.
package pool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/refit-labs/staking-engine/internal/app/domain/audit"
	domain "github.com/refit-labs/staking-engine/internal/app/domain/pool"
	"github.com/refit-labs/staking-engine/internal/app/domain/stake"
	"github.com/refit-labs/staking-engine/internal/app/domain/treasury"
	"github.com/refit-labs/staking-engine/internal/app/storage"
	svcerrors "github.com/refit-labs/staking-engine/internal/errors"
	"github.com/refit-labs/staking-engine/pkg/logger"
)

// Config bounds accepted deposit amounts.
type Config struct {
	MinimumDeposit decimal.Decimal
	MaximumDeposit decimal.Decimal
}

// DefaultConfig matches the production deposit bounds.
func DefaultConfig() Config {
	return Config{
		MinimumDeposit: decimal.NewFromInt(1000),
		MaximumDeposit: decimal.NewFromInt(10000),
	}
}

// Service is the pool accountant.
type Service struct {
	pools    storage.PoolStore
	deposits storage.DepositStore
	treasury storage.TreasuryStore
	actions  storage.AdminActionStore
	cfg      Config
	log      *logger.Logger

	now func() time.Time
}

// New constructs a pool accountant.
func New(pools storage.PoolStore, deposits storage.DepositStore, treasuryStore storage.TreasuryStore, actions storage.AdminActionStore, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("pool")
	}
	if cfg.MinimumDeposit.IsZero() && cfg.MaximumDeposit.IsZero() {
		cfg = DefaultConfig()
	}
	return &Service{
		pools:    pools,
		deposits: deposits,
		treasury: treasuryStore,
		actions:  actions,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// RecordDeposit atomically creates a deposit with its paired stake and grows
// the pool totals. The transaction signature deduplicates retried submissions.
func (s *Service) RecordDeposit(ctx context.Context, wallet, txSignature string, amount decimal.Decimal, tier stake.Tier) (stake.Deposit, stake.Stake, error) {
	wallet = strings.TrimSpace(wallet)
	txSignature = strings.TrimSpace(txSignature)

	if wallet == "" {
		return stake.Deposit{}, stake.Stake{}, svcerrors.Validation("wallet_address is required")
	}
	if txSignature == "" {
		return stake.Deposit{}, stake.Stake{}, svcerrors.Validation("deposit_tx is required")
	}
	if amount.LessThan(s.cfg.MinimumDeposit) {
		return stake.Deposit{}, stake.Stake{}, svcerrors.Validationf("minimum deposit is %s", s.cfg.MinimumDeposit.String())
	}
	if amount.GreaterThan(s.cfg.MaximumDeposit) {
		return stake.Deposit{}, stake.Stake{}, svcerrors.Validationf("maximum deposit is %s", s.cfg.MaximumDeposit.String())
	}
	if tier == "" {
		tier = stake.TierFlexible
	}
	terms, ok := stake.TermsFor(tier)
	if !ok {
		return stake.Deposit{}, stake.Stake{}, svcerrors.Validationf("unknown staking tier %q", tier)
	}

	now := s.now().UTC()
	dep := stake.Deposit{
		WalletAddress:   wallet,
		Amount:          amount,
		DepositTx:       txSignature,
		CurrentValue:    amount,
		TotalEarnedUSDC: decimal.Zero,
		Status:          stake.DepositActive,
		DepositedAt:     now,
	}
	stk := stake.Stake{
		WalletAddress: wallet,
		Amount:        amount,
		Tier:          tier,
		APY:           terms.APY,
		LockDays:      terms.LockDays,
		UnlockDate:    terms.UnlockDate(now),
		Status:        stake.StatusActive,
		CreatedAt:     now,
	}

	dep, stk, err := s.deposits.CreateDepositAndStake(ctx, dep, stk)
	if errors.Is(err, storage.ErrDuplicateDepositTx) {
		return stake.Deposit{}, stake.Stake{}, svcerrors.Validation("transaction already processed")
	}
	if err != nil {
		return stake.Deposit{}, stake.Stake{}, svcerrors.Internal("record deposit", err)
	}

	s.recordAction(ctx, audit.ActionDeposit, fmt.Sprintf("deposit by %s into %s tier", wallet, tier), amount)
	s.log.WithField("wallet", wallet).
		WithField("stake_id", stk.ID).
		WithField("tier", string(tier)).
		WithField("amount", amount.String()).
		Info("deposit recorded")
	return dep, stk, nil
}

// Summary is the pool accountant's aggregate view. It carries totals only;
// per-deposit rows stay on the admin surface.
type Summary struct {
	Pool             domain.LiquidityPool `json:"pool"`
	TotalDeposits    decimal.Decimal      `json:"total_deposits"`
	TotalEarned      decimal.Decimal      `json:"total_earned"`
	WeeklyRequired   decimal.Decimal      `json:"weekly_required"`
	ActiveDepositors int                  `json:"active_depositors"`
	LatestSnapshot   *treasury.Snapshot   `json:"latest_snapshot,omitempty"`
}

// GetPoolSummary aggregates active deposits, the pool row and the latest
// treasury snapshot into one consistent view.
func (s *Service) GetPoolSummary(ctx context.Context) (Summary, error) {
	poolRow, err := s.pools.GetPool(ctx)
	if err != nil {
		return Summary{}, svcerrors.Internal("load pool", err)
	}
	deposits, err := s.deposits.ListActiveDeposits(ctx)
	if err != nil {
		return Summary{}, svcerrors.Internal("list active deposits", err)
	}

	totalDeposits := decimal.Zero
	totalEarned := decimal.Zero
	depositors := make(map[string]struct{})
	for _, dep := range deposits {
		totalDeposits = totalDeposits.Add(dep.Amount)
		totalEarned = totalEarned.Add(dep.TotalEarnedUSDC)
		depositors[strings.ToLower(dep.WalletAddress)] = struct{}{}
	}

	summary := Summary{
		Pool:             poolRow,
		TotalDeposits:    totalDeposits,
		TotalEarned:      totalEarned,
		WeeklyRequired:   totalDeposits.Mul(domain.WeeklyPayoutRate),
		ActiveDepositors: len(depositors),
	}

	if s.treasury != nil {
		snap, err := s.treasury.GetLatestTreasurySnapshot(ctx)
		switch {
		case err == nil:
			summary.LatestSnapshot = &snap
		case errors.Is(err, storage.ErrNotFound):
			// no snapshot yet
		default:
			s.log.WithError(err).Warn("load latest treasury snapshot failed")
		}
	}

	return summary, nil
}

// WalletDeposits is the per-wallet deposit view.
type WalletDeposits struct {
	Deposits       []stake.Deposit `json:"deposits"`
	TotalDeposited decimal.Decimal `json:"total_deposited"`
	TotalEarned    decimal.Decimal `json:"total_earned"`
	WeeklyEarnings decimal.Decimal `json:"weekly_earnings"`
}

// GetWalletDeposits lists a wallet's deposits with earning totals.
func (s *Service) GetWalletDeposits(ctx context.Context, wallet string) (WalletDeposits, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return WalletDeposits{}, svcerrors.Validation("wallet_address is required")
	}

	deposits, err := s.deposits.ListDepositsForWallet(ctx, wallet)
	if err != nil {
		return WalletDeposits{}, svcerrors.Internal("list wallet deposits", err)
	}

	result := WalletDeposits{Deposits: deposits, TotalDeposited: decimal.Zero, TotalEarned: decimal.Zero}
	for _, dep := range deposits {
		if dep.Status == stake.DepositActive {
			result.TotalDeposited = result.TotalDeposited.Add(dep.Amount)
		}
		result.TotalEarned = result.TotalEarned.Add(dep.TotalEarnedUSDC)
	}
	result.WeeklyEarnings = result.TotalDeposited.Mul(domain.WeeklyPayoutRate)
	return result, nil
}

// ListActiveDeposits lists every active deposit across all wallets.
func (s *Service) ListActiveDeposits(ctx context.Context) ([]stake.Deposit, error) {
	deposits, err := s.deposits.ListActiveDeposits(ctx)
	if err != nil {
		return nil, svcerrors.Internal("list active deposits", err)
	}
	return deposits, nil
}

func (s *Service) recordAction(ctx context.Context, actionType, description string, amount decimal.Decimal) {
	if s.actions == nil {
		return
	}
	_, err := s.actions.RecordAdminAction(ctx, audit.AdminAction{
		ActionType:  actionType,
		Description: description,
		Amount:      amount,
	})
	if err != nil {
		s.log.WithError(err).Warn("record admin action failed")
	}
}
