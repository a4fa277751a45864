package stake

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier selects a stake's lock period and yield rate.
type Tier string

const (
	TierFlexible Tier = "flexible"
	TierSmart    Tier = "smart"
	TierDiamond  Tier = "diamond"
)

// TierTerms holds the lock period and annual percentage yield of a tier.
type TierTerms struct {
	LockDays int
	APY      decimal.Decimal
}

var tierTerms = map[Tier]TierTerms{
	TierFlexible: {LockDays: 0, APY: decimal.NewFromInt(50)},
	TierSmart:    {LockDays: 180, APY: decimal.NewFromInt(150)},
	TierDiamond:  {LockDays: 365, APY: decimal.NewFromInt(250)},
}

// TermsFor returns the terms for a tier and whether the tier is known.
func TermsFor(tier Tier) (TierTerms, bool) {
	terms, ok := tierTerms[tier]
	return terms, ok
}

// UnlockDate computes when a stake created at the given time unlocks under
// these terms.
func (t TierTerms) UnlockDate(createdAt time.Time) time.Time {
	return createdAt.AddDate(0, 0, t.LockDays)
}
