// Package treasury defines the append-only snapshot trail of external
// treasury balances.
package treasury

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is a point-in-time record of the treasury's balance composition.
// Snapshots feed reporting only; the staked total is always derived from
// stake rows, never from here.
type Snapshot struct {
	ID               string          `json:"id"`
	SnapshotDate     time.Time       `json:"snapshot_date"`
	TotalStaked      decimal.Decimal `json:"total_staked"`
	LiquidBalance    decimal.Decimal `json:"liquid_balance"`
	ValidatorBalance decimal.Decimal `json:"validator_balance"`
	CreatedAt        time.Time       `json:"created_at"`
}
