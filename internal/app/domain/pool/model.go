// Package pool defines the shared liquidity pool aggregate.
package pool

import (
	"time"

	"github.com/shopspring/decimal"
)

// WeeklyPayoutRate is the fraction of the staked total the pool must be able
// to pay out each week.
var WeeklyPayoutRate = decimal.NewFromFloat(0.02)

// LiquidityPool is the singleton aggregate of all staked and deposited funds.
// It is mutated only through atomic store operations; readers must never
// observe a partially-applied deposit or settlement.
type LiquidityPool struct {
	TotalDeposited   decimal.Decimal `json:"total_deposited"`
	TotalStaked      decimal.Decimal `json:"total_staked"`
	LiquidBalance    decimal.Decimal `json:"liquid_balance"`
	ValidatorBalance decimal.Decimal `json:"validator_balance"`
	TotalDistributed decimal.Decimal `json:"total_distributed"`
	PlatformFees     decimal.Decimal `json:"platform_fees"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// WeeklyRequiredPayout derives the weekly payout obligation from the staked
// total. It is never stored.
func (p *LiquidityPool) WeeklyRequiredPayout() decimal.Decimal {
	return p.TotalStaked.Mul(WeeklyPayoutRate)
}
