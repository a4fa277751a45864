// Package audit defines the append-only trail of administrative and
// money-moving actions.
package audit

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action types recorded in the trail.
const (
	ActionDeposit           = "deposit"
	ActionWithdrawalRequest = "withdrawal_request"
	ActionSettlement        = "settlement"
	ActionYieldAccrual      = "yield_accrual"
	ActionTreasurySnapshot  = "treasury_snapshot"
)

// AdminAction is one entry in the audit trail.
type AdminAction struct {
	ID          string          `json:"id"`
	ActionType  string          `json:"action_type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	CreatedAt   time.Time       `json:"created_at"`
}
