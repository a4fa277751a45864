package accrual

import (
	"github.com/shopspring/decimal"

	"github.com/refit-labs/staking-engine/internal/app/domain/stake"
)

var (
	hundred     = decimal.NewFromInt(100)
	daysPerYear = decimal.NewFromInt(365)
)

// RatePolicy supplies the daily yield rate for a stake. The rate source is
// deliberately pluggable: the default derives it from the stake's tier APY,
// operators can substitute a fixed or treasury-performance-based rate.
type RatePolicy interface {
	DailyRate(stk stake.Stake) decimal.Decimal
}

// StakeAPYPolicy applies the stake's annual percentage yield pro-rata per day.
type StakeAPYPolicy struct{}

func (StakeAPYPolicy) DailyRate(stk stake.Stake) decimal.Decimal {
	return stk.APY.Div(hundred).Div(daysPerYear)
}

// FixedRatePolicy applies the same daily rate to every stake.
type FixedRatePolicy struct {
	Rate decimal.Decimal
}

func (p FixedRatePolicy) DailyRate(stake.Stake) decimal.Decimal {
	return p.Rate
}
