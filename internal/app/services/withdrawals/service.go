// Package withdrawals implements the withdrawal processor: request intake
// with early-exit penalties and the admin settlement transitions.
package withdrawals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/refit-labs/staking-engine/internal/app/domain/audit"
	"github.com/refit-labs/staking-engine/internal/app/domain/stake"
	"github.com/refit-labs/staking-engine/internal/app/domain/withdrawal"
	"github.com/refit-labs/staking-engine/internal/app/storage"
	svcerrors "github.com/refit-labs/staking-engine/internal/errors"
	"github.com/refit-labs/staking-engine/pkg/logger"
)

// Settlement actions accepted by Settle.
const (
	ActionApprove = "approve"
	ActionReject  = "reject"
	ActionPaid    = "paid"
)

// Estimated processing windows surfaced to the caller. Informational only.
const (
	estimateUnlocked = "1-2 business days"
	estimateLocked   = "3-5 business days"
)

// Result pairs a created request with its processing estimate.
type Result struct {
	Request                 withdrawal.Request `json:"request"`
	EstimatedProcessingTime string             `json:"estimated_processing_time"`
}

// Service is the withdrawal processor.
type Service struct {
	stakes      storage.StakeStore
	withdrawals storage.WithdrawalStore
	actions     storage.AdminActionStore
	log         *logger.Logger

	now func() time.Time
}

// New constructs a withdrawal processor.
func New(stakes storage.StakeStore, withdrawals storage.WithdrawalStore, actions storage.AdminActionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("withdrawals")
	}
	return &Service{
		stakes:      stakes,
		withdrawals: withdrawals,
		actions:     actions,
		log:         log,
		now:         time.Now,
	}
}

// RequestWithdrawal validates the request against the stake's state and lock
// date, computes the penalty and atomically records the pending request while
// flipping the stake to withdrawal_requested. Exactly one concurrent request
// per stake can succeed.
func (s *Service) RequestWithdrawal(ctx context.Context, stakeID, wallet string, amount decimal.Decimal) (Result, error) {
	stakeID = strings.TrimSpace(stakeID)
	wallet = strings.TrimSpace(wallet)

	if stakeID == "" || wallet == "" {
		return Result{}, svcerrors.Validation("stake_id and wallet_address are required")
	}
	if !amount.IsPositive() {
		return Result{}, svcerrors.Validation("amount must be positive")
	}

	stk, err := s.stakes.GetStake(ctx, stakeID)
	if errors.Is(err, storage.ErrNotFound) {
		return Result{}, svcerrors.NotFoundf("stake %s not found", stakeID)
	}
	if err != nil {
		return Result{}, svcerrors.Internal("load stake", err)
	}
	if !strings.EqualFold(stk.WalletAddress, wallet) {
		return Result{}, svcerrors.NotFoundf("stake %s not found", stakeID)
	}
	if stk.Status != stake.StatusActive {
		return Result{}, svcerrors.InvalidState(fmt.Sprintf("stake is %s, not active", stk.Status))
	}
	if amount.GreaterThan(stk.Amount) {
		return Result{}, svcerrors.Validation("amount exceeds staked balance")
	}

	now := s.now().UTC()
	penalty := withdrawal.PenaltyFor(amount, stk.UnlockDate, now)
	req := withdrawal.Request{
		StakeID:       stk.ID,
		WalletAddress: stk.WalletAddress,
		Amount:        amount,
		Penalty:       penalty,
		NetAmount:     amount.Sub(penalty),
		RequestedAt:   now,
	}

	req, err = s.withdrawals.CreateWithdrawalRequest(ctx, req)
	if errors.Is(err, storage.ErrStakeNotActive) {
		return Result{}, svcerrors.InvalidState("stake already has a withdrawal in progress")
	}
	if errors.Is(err, storage.ErrNotFound) {
		return Result{}, svcerrors.NotFoundf("stake %s not found", stakeID)
	}
	if err != nil {
		return Result{}, svcerrors.Internal("create withdrawal request", err)
	}

	estimate := estimateLocked
	if stk.IsUnlocked(now) {
		estimate = estimateUnlocked
	}

	s.recordAction(ctx, audit.ActionWithdrawalRequest, fmt.Sprintf("withdrawal requested by %s (penalty %s)", wallet, penalty.String()), amount)
	s.log.WithField("stake_id", stk.ID).
		WithField("wallet", wallet).
		WithField("amount", amount.String()).
		WithField("penalty", penalty.String()).
		Info("withdrawal requested")

	return Result{Request: req, EstimatedProcessingTime: estimate}, nil
}

// ListForWallet returns a wallet's withdrawal requests.
func (s *Service) ListForWallet(ctx context.Context, wallet string) ([]withdrawal.Request, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, svcerrors.Validation("wallet is required")
	}
	reqs, err := s.withdrawals.ListWithdrawalsForWallet(ctx, wallet)
	if err != nil {
		return nil, svcerrors.Internal("list withdrawals", err)
	}
	return reqs, nil
}

// ListByStatus returns requests filtered by status; an empty status lists all.
func (s *Service) ListByStatus(ctx context.Context, status withdrawal.Status) ([]withdrawal.Request, error) {
	switch status {
	case "", withdrawal.StatusPending, withdrawal.StatusApproved, withdrawal.StatusRejected, withdrawal.StatusPaid:
	default:
		return nil, svcerrors.Validationf("unknown withdrawal status %q", status)
	}
	reqs, err := s.withdrawals.ListWithdrawalsByStatus(ctx, status)
	if err != nil {
		return nil, svcerrors.Internal("list withdrawals", err)
	}
	return reqs, nil
}

// Settle applies an admin settlement action. Paying out cascades: the stake
// and its deposit become withdrawn and the pool's staked total shrinks by the
// stake amount, mirroring the deposit that created them. Rejection returns
// the stake to active.
func (s *Service) Settle(ctx context.Context, requestID, action, txSignature string) (withdrawal.Request, error) {
	requestID = strings.TrimSpace(requestID)
	txSignature = strings.TrimSpace(txSignature)
	if requestID == "" {
		return withdrawal.Request{}, svcerrors.Validation("request id is required")
	}

	var (
		req withdrawal.Request
		err error
	)
	switch action {
	case ActionApprove:
		req, err = s.withdrawals.ApproveWithdrawalRequest(ctx, requestID)
	case ActionReject:
		req, err = s.withdrawals.RejectWithdrawalRequest(ctx, requestID)
	case ActionPaid:
		if txSignature == "" {
			return withdrawal.Request{}, svcerrors.Validation("withdrawal_tx is required to mark a request paid")
		}
		req, err = s.withdrawals.MarkWithdrawalPaid(ctx, requestID, txSignature)
	default:
		return withdrawal.Request{}, svcerrors.Validationf("unknown settlement action %q", action)
	}

	if errors.Is(err, storage.ErrNotFound) {
		return withdrawal.Request{}, svcerrors.NotFoundf("withdrawal request %s not found", requestID)
	}
	if errors.Is(err, storage.ErrInvalidTransition) {
		return withdrawal.Request{}, svcerrors.InvalidState(fmt.Sprintf("request cannot be settled as %s in its current state", action))
	}
	if err != nil {
		return withdrawal.Request{}, svcerrors.Internal("settle withdrawal", err)
	}

	s.recordAction(ctx, audit.ActionSettlement, fmt.Sprintf("withdrawal %s %s", req.ID, req.Status), req.Amount)
	s.log.WithField("request_id", req.ID).
		WithField("status", string(req.Status)).
		Info("withdrawal settled")
	return req, nil
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
