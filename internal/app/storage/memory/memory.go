// Package memory provides an in-memory implementation of the storage
// interfaces. It is safe for concurrent use and is primarily intended for
// tests and local development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/refit-labs/staking-engine/internal/app/domain/audit"
	"github.com/refit-labs/staking-engine/internal/app/domain/pool"
	"github.com/refit-labs/staking-engine/internal/app/domain/stake"
	"github.com/refit-labs/staking-engine/internal/app/domain/treasury"
	"github.com/refit-labs/staking-engine/internal/app/domain/withdrawal"
	"github.com/refit-labs/staking-engine/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. Every
// multi-entity operation runs under the write lock, which stands in for the
// transactions the postgres store uses.
type Store struct {
	mu          sync.RWMutex
	pool        pool.LiquidityPool
	deposits    map[string]stake.Deposit
	depositByTx map[string]string
	stakes      map[string]stake.Stake
	yields      map[string][]stake.YieldRecord
	yieldKeys   map[string]struct{}
	withdrawals map[string]withdrawal.Request
	snapshots   []treasury.Snapshot
	actions     []audit.AdminAction
}

var _ storage.PoolStore = (*Store)(nil)
var _ storage.DepositStore = (*Store)(nil)
var _ storage.StakeStore = (*Store)(nil)
var _ storage.YieldStore = (*Store)(nil)
var _ storage.WithdrawalStore = (*Store)(nil)
var _ storage.TreasuryStore = (*Store)(nil)
var _ storage.AdminActionStore = (*Store)(nil)

// New creates an empty store with a zeroed pool aggregate.
func New() *Store {
	return &Store{
		pool: pool.LiquidityPool{
			TotalDeposited:   decimal.Zero,
			TotalStaked:      decimal.Zero,
			LiquidBalance:    decimal.Zero,
			ValidatorBalance: decimal.Zero,
			TotalDistributed: decimal.Zero,
			PlatformFees:     decimal.Zero,
			UpdatedAt:        time.Now().UTC(),
		},
		deposits:    make(map[string]stake.Deposit),
		depositByTx: make(map[string]string),
		stakes:      make(map[string]stake.Stake),
		yields:      make(map[string][]stake.YieldRecord),
		yieldKeys:   make(map[string]struct{}),
		withdrawals: make(map[string]withdrawal.Request),
	}
}

func yieldKey(stakeID string, day time.Time) string {
	return stakeID + "|" + stake.AccrualDay(day).Format("2006-01-02")
}

func cloneRequest(req withdrawal.Request) withdrawal.Request {
	if req.ProcessedAt != nil {
		at := *req.ProcessedAt
		req.ProcessedAt = &at
	}
	return req
}

// PoolStore implementation ----------------------------------------------------

func (s *Store) GetPool(_ context.Context) (pool.LiquidityPool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool, nil
}

func (s *Store) UpdateTreasuryBalances(_ context.Context, liquid, validator decimal.Decimal) (pool.LiquidityPool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pool.LiquidBalance = liquid
	s.pool.ValidatorBalance = validator
	s.pool.UpdatedAt = time.Now().UTC()
	return s.pool, nil
}

// DepositStore implementation -------------------------------------------------

func (s *Store) CreateDepositAndStake(_ context.Context, dep stake.Deposit, stk stake.Stake) (stake.Deposit, stake.Stake, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dep.DepositTx != "" {
		if _, exists := s.depositByTx[dep.DepositTx]; exists {
			return stake.Deposit{}, stake.Stake{}, storage.ErrDuplicateDepositTx
		}
	}

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

	s.deposits[dep.ID] = dep
	if dep.DepositTx != "" {
		s.depositByTx[dep.DepositTx] = dep.ID
	}
	s.stakes[stk.ID] = stk

	s.pool.TotalDeposited = s.pool.TotalDeposited.Add(dep.Amount)
	s.pool.TotalStaked = s.pool.TotalStaked.Add(stk.Amount)
	s.pool.UpdatedAt = now

	return dep, stk, nil
}

func (s *Store) GetDeposit(_ context.Context, id string) (stake.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dep, ok := s.deposits[id]
	if !ok {
		return stake.Deposit{}, storage.ErrNotFound
	}
	return dep, nil
}

func (s *Store) ListDepositsForWallet(_ context.Context, wallet string) ([]stake.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []stake.Deposit
	for _, dep := range s.deposits {
		if strings.EqualFold(dep.WalletAddress, wallet) {
			result = append(result, dep)
		}
	}
	sortDeposits(result)
	return result, nil
}

func (s *Store) ListActiveDeposits(_ context.Context) ([]stake.Deposit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []stake.Deposit
	for _, dep := range s.deposits {
		if dep.Status == stake.DepositActive {
			result = append(result, dep)
		}
	}
	sortDeposits(result)
	return result, nil
}

func sortDeposits(deps []stake.Deposit) {
	sort.Slice(deps, func(i, j int) bool {
		if deps[i].DepositedAt.Equal(deps[j].DepositedAt) {
			return deps[i].ID < deps[j].ID
		}
		return deps[i].DepositedAt.Before(deps[j].DepositedAt)
	})
}

// StakeStore implementation ---------------------------------------------------

func (s *Store) GetStake(_ context.Context, id string) (stake.Stake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stk, ok := s.stakes[id]
	if !ok {
		return stake.Stake{}, storage.ErrNotFound
	}
	return stk, nil
}

func (s *Store) ListStakesForWallet(_ context.Context, wallet string) ([]stake.Stake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []stake.Stake
	for _, stk := range s.stakes {
		if strings.EqualFold(stk.WalletAddress, wallet) {
			result = append(result, stk)
		}
	}
	sortStakes(result)
	return result, nil
}

func (s *Store) ListActiveStakes(_ context.Context) ([]stake.Stake, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []stake.Stake
	for _, stk := range s.stakes {
		if stk.Status == stake.StatusActive {
			result = append(result, stk)
		}
	}
	sortStakes(result)
	return result, nil
}

func sortStakes(stakes []stake.Stake) {
	sort.Slice(stakes, func(i, j int) bool {
		if stakes[i].CreatedAt.Equal(stakes[j].CreatedAt) {
			return stakes[i].ID < stakes[j].ID
		}
		return stakes[i].CreatedAt.Before(stakes[j].CreatedAt)
	})
}

// YieldStore implementation ---------------------------------------------------

func (s *Store) CreditYield(_ context.Context, rec stake.YieldRecord) (stake.YieldRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stk, ok := s.stakes[rec.StakeID]
	if !ok {
		return stake.YieldRecord{}, storage.ErrNotFound
	}

	key := yieldKey(rec.StakeID, rec.AccrualDate)
	if _, exists := s.yieldKeys[key]; exists {
		return stake.YieldRecord{}, storage.ErrDuplicateYieldRecord
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.AccrualDate = stake.AccrualDay(rec.AccrualDate)
	rec.CreatedAt = time.Now().UTC()

	s.yieldKeys[key] = struct{}{}
	s.yields[rec.StakeID] = append(s.yields[rec.StakeID], rec)

	if dep, ok := s.deposits[stk.DepositID]; ok {
		dep.TotalEarnedUSDC = dep.TotalEarnedUSDC.Add(rec.Amount)
		dep.CurrentValue = dep.CurrentValue.Add(rec.Amount)
		s.deposits[dep.ID] = dep
	}

	return rec, nil
}

func (s *Store) HasAccrualForDate(_ context.Context, day time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suffix := "|" + stake.AccrualDay(day).Format("2006-01-02")
	for key := range s.yieldKeys {
		if strings.HasSuffix(key, suffix) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListYieldRecords(_ context.Context, stakeID string) ([]stake.YieldRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.yields[stakeID]
	result := make([]stake.YieldRecord, len(records))
	copy(result, records)
	sort.Slice(result, func(i, j int) bool {
		return result[i].AccrualDate.Before(result[j].AccrualDate)
	})
	return result, nil
}

func (s *Store) SumYield(_ context.Context, stakeID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, rec := range s.yields[stakeID] {
		total = total.Add(rec.Amount)
	}
	return total, nil
}

// WithdrawalStore implementation ----------------------------------------------

func (s *Store) CreateWithdrawalRequest(_ context.Context, req withdrawal.Request) (withdrawal.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stk, ok := s.stakes[req.StakeID]
	if !ok {
		return withdrawal.Request{}, storage.ErrNotFound
	}
	if stk.Status != stake.StatusActive {
		return withdrawal.Request{}, storage.ErrStakeNotActive
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}
	req.Status = withdrawal.StatusPending

	stk.Status = stake.StatusWithdrawalRequested
	s.stakes[stk.ID] = stk
	s.withdrawals[req.ID] = req

	return cloneRequest(req), nil
}

func (s *Store) GetWithdrawalRequest(_ context.Context, id string) (withdrawal.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.withdrawals[id]
	if !ok {
		return withdrawal.Request{}, storage.ErrNotFound
	}
	return cloneRequest(req), nil
}

func (s *Store) ListWithdrawalsForWallet(_ context.Context, wallet string) ([]withdrawal.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []withdrawal.Request
	for _, req := range s.withdrawals {
		if strings.EqualFold(req.WalletAddress, wallet) {
			result = append(result, cloneRequest(req))
		}
	}
	sortRequests(result)
	return result, nil
}

func (s *Store) ListWithdrawalsByStatus(_ context.Context, status withdrawal.Status) ([]withdrawal.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []withdrawal.Request
	for _, req := range s.withdrawals {
		if status == "" || req.Status == status {
			result = append(result, cloneRequest(req))
		}
	}
	sortRequests(result)
	return result, nil
}

func sortRequests(reqs []withdrawal.Request) {
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].RequestedAt.Equal(reqs[j].RequestedAt) {
			return reqs[i].ID < reqs[j].ID
		}
		return reqs[i].RequestedAt.Before(reqs[j].RequestedAt)
	})
}

func (s *Store) SumPaidWithdrawals(_ context.Context, stakeID string) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, req := range s.withdrawals {
		if req.StakeID == stakeID && req.Status == withdrawal.StatusPaid {
			total = total.Add(req.Amount)
		}
	}
	return total, nil
}

func (s *Store) ApproveWithdrawalRequest(_ context.Context, id string) (withdrawal.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.withdrawals[id]
	if !ok {
		return withdrawal.Request{}, storage.ErrNotFound
	}
	if req.Status != withdrawal.StatusPending {
		return withdrawal.Request{}, storage.ErrInvalidTransition
	}

	req.Status = withdrawal.StatusApproved
	s.withdrawals[id] = req
	return cloneRequest(req), nil
}

func (s *Store) RejectWithdrawalRequest(_ context.Context, id string) (withdrawal.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.withdrawals[id]
	if !ok {
		return withdrawal.Request{}, storage.ErrNotFound
	}
	if req.Status != withdrawal.StatusPending && req.Status != withdrawal.StatusApproved {
		return withdrawal.Request{}, storage.ErrInvalidTransition
	}

	now := time.Now().UTC()
	req.Status = withdrawal.StatusRejected
	req.ProcessedAt = &now
	s.withdrawals[id] = req

	if stk, ok := s.stakes[req.StakeID]; ok && stk.Status == stake.StatusWithdrawalRequested {
		stk.Status = stake.StatusActive
		s.stakes[stk.ID] = stk
	}

	return cloneRequest(req), nil
}

func (s *Store) MarkWithdrawalPaid(_ context.Context, id, txSignature string) (withdrawal.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.withdrawals[id]
	if !ok {
		return withdrawal.Request{}, storage.ErrNotFound
	}
	if req.Status != withdrawal.StatusPending && req.Status != withdrawal.StatusApproved {
		return withdrawal.Request{}, storage.ErrInvalidTransition
	}

	now := time.Now().UTC()
	req.Status = withdrawal.StatusPaid
	req.WithdrawalTx = txSignature
	req.ProcessedAt = &now
	s.withdrawals[id] = req

	if stk, ok := s.stakes[req.StakeID]; ok {
		stk.Status = stake.StatusWithdrawn
		s.stakes[stk.ID] = stk

		if dep, ok := s.deposits[stk.DepositID]; ok {
			dep.Status = stake.DepositWithdrawn
			s.deposits[dep.ID] = dep
		}

		s.pool.TotalStaked = s.pool.TotalStaked.Sub(stk.Amount)
		s.pool.TotalDistributed = s.pool.TotalDistributed.Add(req.NetAmount)
		s.pool.PlatformFees = s.pool.PlatformFees.Add(req.Penalty)
		s.pool.UpdatedAt = now
	}

	return cloneRequest(req), nil
}

// TreasuryStore implementation ------------------------------------------------

func (s *Store) CreateTreasurySnapshot(_ context.Context, snap treasury.Snapshot) (treasury.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	if snap.SnapshotDate.IsZero() {
		snap.SnapshotDate = time.Now().UTC()
	}
	snap.CreatedAt = time.Now().UTC()

	s.snapshots = append(s.snapshots, snap)
	return snap, nil
}

func (s *Store) GetLatestTreasurySnapshot(_ context.Context) (treasury.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.snapshots) == 0 {
		return treasury.Snapshot{}, storage.ErrNotFound
	}
	return s.snapshots[len(s.snapshots)-1], nil
}

// AdminActionStore implementation ---------------------------------------------

func (s *Store) RecordAdminAction(_ context.Context, act audit.AdminAction) (audit.AdminAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if act.ID == "" {
		act.ID = uuid.NewString()
	}
	act.CreatedAt = time.Now().UTC()

	s.actions = append(s.actions, act)
	return act, nil
}

func (s *Store) ListAdminActions(_ context.Context, limit int) ([]audit.AdminAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]audit.AdminAction, len(s.actions))
	copy(result, s.actions)
	// newest first
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
