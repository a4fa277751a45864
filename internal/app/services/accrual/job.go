// Package accrual implements the daily yield accrual job and its schedule.
package accrual

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/refit-labs/staking-engine/internal/app/domain/audit"
	"github.com/refit-labs/staking-engine/internal/app/domain/stake"
	"github.com/refit-labs/staking-engine/internal/app/storage"
	svcerrors "github.com/refit-labs/staking-engine/internal/errors"
	"github.com/refit-labs/staking-engine/pkg/logger"
)

// yieldScale is the decimal precision yield amounts are rounded to.
const yieldScale = 6

// Job computes and records one yield entry per active stake per calendar day.
// Runs are idempotent: a day that already has records is a no-op, and a
// per-stake unique constraint collapses concurrent inserts.
type Job struct {
	stakes  storage.StakeStore
	yields  storage.YieldStore
	actions storage.AdminActionStore
	policy  RatePolicy
	log     *logger.Logger

	now func() time.Time
}

// NewJob constructs the accrual job. A nil policy defaults to the tier-APY
// pro-rata policy.
func NewJob(stakes storage.StakeStore, yields storage.YieldStore, actions storage.AdminActionStore, policy RatePolicy, log *logger.Logger) *Job {
	if log == nil {
		log = logger.NewDefault("accrual")
	}
	if policy == nil {
		policy = StakeAPYPolicy{}
	}
	return &Job{
		stakes:  stakes,
		yields:  yields,
		actions: actions,
		policy:  policy,
		log:     log,
		now:     time.Now,
	}
}

// Run accrues yield for the current UTC day. It returns the number of stakes
// credited; zero with a nil error means the day was already accrued.
func (j *Job) Run(ctx context.Context) (int, error) {
	return j.RunForDate(ctx, j.now())
}

// RunForDate accrues yield for the given calendar day. Each stake is an
// independent unit of work: a failure on one stake is logged and skipped,
// never rolling back credits already committed for others.
func (j *Job) RunForDate(ctx context.Context, date time.Time) (int, error) {
	day := stake.AccrualDay(date)

	done, err := j.yields.HasAccrualForDate(ctx, day)
	if err != nil {
		return 0, svcerrors.Internal("check accrual marker", err)
	}
	if done {
		j.log.WithField("accrual_date", day.Format("2006-01-02")).Info("accrual already complete for date")
		return 0, nil
	}

	active, err := j.stakes.ListActiveStakes(ctx)
	if err != nil {
		return 0, svcerrors.Internal("list active stakes", err)
	}

	credited := 0
	failed := 0
	total := decimal.Zero
	for _, stk := range active {
		amount := stk.Amount.Mul(j.policy.DailyRate(stk)).Round(yieldScale)
		_, err := j.yields.CreditYield(ctx, stake.YieldRecord{
			StakeID:     stk.ID,
			Amount:      amount,
			AccrualDate: day,
		})
		switch {
		case err == nil:
			credited++
			total = total.Add(amount)
		case errors.Is(err, storage.ErrDuplicateYieldRecord):
			// a concurrent run already credited this stake today
		default:
			failed++
			j.log.WithError(err).WithField("stake_id", stk.ID).Warn("credit yield failed")
		}
	}

	if credited > 0 && j.actions != nil {
		_, err := j.actions.RecordAdminAction(ctx, audit.AdminAction{
			ActionType:  audit.ActionYieldAccrual,
			Description: fmt.Sprintf("accrued yield for %d stakes on %s", credited, day.Format("2006-01-02")),
			Amount:      total,
		})
		if err != nil {
			j.log.WithError(err).Warn("record accrual action failed")
		}
	}

	j.log.WithField("accrual_date", day.Format("2006-01-02")).
		WithField("credited", credited).
		WithField("failed", failed).
		Info("accrual run complete")

	if failed > 0 {
		return credited, fmt.Errorf("accrual completed with %d of %d stakes failed", failed, len(active))
	}
	return credited, nil
}
