// Package migrations creates the ledger schema. Statements are idempotent so
// Apply can run on every startup. The unique constraints here back the
// ledger's idempotence guarantees: one yield record per stake per day, one
// processed deposit transaction, one open withdrawal request per stake.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

var statements = []string{
	`CREATE TABLE IF NOT EXISTS liquidity_pool (
		id INTEGER PRIMARY KEY,
		total_deposited NUMERIC(20,6) NOT NULL DEFAULT 0,
		total_staked NUMERIC(20,6) NOT NULL DEFAULT 0,
		liquid_balance NUMERIC(20,6) NOT NULL DEFAULT 0,
		validator_balance NUMERIC(20,6) NOT NULL DEFAULT 0,
		total_distributed NUMERIC(20,6) NOT NULL DEFAULT 0,
		platform_fees_collected NUMERIC(20,6) NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`INSERT INTO liquidity_pool (id) VALUES (1) ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS deposits (
		id UUID PRIMARY KEY,
		wallet_address TEXT NOT NULL,
		amount NUMERIC(20,6) NOT NULL,
		deposit_tx TEXT,
		current_value NUMERIC(20,6) NOT NULL DEFAULT 0,
		total_earned_usdc NUMERIC(20,6) NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		deposited_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT deposits_deposit_tx_key UNIQUE (deposit_tx)
	)`,
	`CREATE INDEX IF NOT EXISTS deposits_wallet_idx ON deposits (LOWER(wallet_address))`,
	`CREATE TABLE IF NOT EXISTS stakes (
		id UUID PRIMARY KEY,
		deposit_id UUID NOT NULL REFERENCES deposits (id),
		wallet_address TEXT NOT NULL,
		amount NUMERIC(20,6) NOT NULL,
		tier TEXT NOT NULL,
		apy NUMERIC(10,4) NOT NULL,
		lock_days INTEGER NOT NULL,
		unlock_date TIMESTAMPTZ NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS stakes_wallet_idx ON stakes (LOWER(wallet_address))`,
	`CREATE TABLE IF NOT EXISTS yield_records (
		id UUID PRIMARY KEY,
		stake_id UUID NOT NULL REFERENCES stakes (id),
		amount NUMERIC(20,6) NOT NULL,
		accrual_date DATE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT yield_records_stake_id_accrual_date_key UNIQUE (stake_id, accrual_date)
	)`,
	`CREATE TABLE IF NOT EXISTS withdrawal_requests (
		id UUID PRIMARY KEY,
		stake_id UUID NOT NULL REFERENCES stakes (id),
		wallet_address TEXT NOT NULL,
		amount NUMERIC(20,6) NOT NULL,
		penalty NUMERIC(20,6) NOT NULL DEFAULT 0,
		net_amount NUMERIC(20,6) NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		withdrawal_tx TEXT,
		requested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS withdrawal_requests_stake_open_key
		ON withdrawal_requests (stake_id)
		WHERE status IN ('pending', 'approved')`,
	`CREATE TABLE IF NOT EXISTS treasury_snapshots (
		id UUID PRIMARY KEY,
		snapshot_date TIMESTAMPTZ NOT NULL,
		total_staked NUMERIC(20,6) NOT NULL,
		liquid_balance NUMERIC(20,6) NOT NULL,
		validator_balance NUMERIC(20,6) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS admin_actions (
		id UUID PRIMARY KEY,
		action_type TEXT NOT NULL,
		description TEXT NOT NULL,
		amount NUMERIC(20,6) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Apply executes every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Count returns the number of schema statements. It exists for tests.
func Count() int { return len(statements) }
