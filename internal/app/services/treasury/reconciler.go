// Package treasury implements the treasury reconciler: a periodic snapshot
// of external balance composition feeding the pool's reporting views.
package treasury

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/refit-labs/staking-engine/internal/app/domain/audit"
	domain "github.com/refit-labs/staking-engine/internal/app/domain/treasury"
	"github.com/refit-labs/staking-engine/internal/app/storage"
	"github.com/refit-labs/staking-engine/internal/app/system"
	svcerrors "github.com/refit-labs/staking-engine/internal/errors"
	"github.com/refit-labs/staking-engine/pkg/logger"
)

// Reconciler periodically captures treasury snapshots. A failed fetch leaves
// the previous snapshot as the latest-known value and never blocks ledger
// operations.
type Reconciler struct {
	pools    storage.PoolStore
	store    storage.TreasuryStore
	actions  storage.AdminActionStore
	source   Source
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

var _ system.Service = (*Reconciler)(nil)

// NewReconciler constructs a reconciler polling at the given interval,
// defaulting to daily.
func NewReconciler(pools storage.PoolStore, store storage.TreasuryStore, actions storage.AdminActionStore, source Source, interval time.Duration, log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.NewDefault("treasury-reconciler")
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &Reconciler{
		pools:    pools,
		store:    store,
		actions:  actions,
		source:   source,
		interval: interval,
		log:      log,
	}
}

func (r *Reconciler) Name() string { return "treasury-reconciler" }

func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if _, err := r.Snapshot(runCtx); err != nil {
					r.log.WithError(err).Warn("scheduled treasury snapshot failed")
				}
			}
		}
	}()

	r.log.Info("treasury reconciler started")
	return nil
}

func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

// Snapshot captures one treasury snapshot now. The staked total is read from
// the pool aggregate; the balance split comes from the external source. When
// no source is configured the pool's last-known balances are reused.
func (r *Reconciler) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	poolRow, err := r.pools.GetPool(ctx)
	if err != nil {
		return domain.Snapshot{}, svcerrors.Internal("load pool", err)
	}

	liquid, validator := poolRow.LiquidBalance, poolRow.ValidatorBalance
	if r.source != nil {
		fetchCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		liquid, validator, err = r.source.FetchBalances(fetchCtx)
		cancel()
		if err != nil {
			return domain.Snapshot{}, svcerrors.Internal("fetch treasury balances", err)
		}
		if _, err := r.pools.UpdateTreasuryBalances(ctx, liquid, validator); err != nil {
			r.log.WithError(err).Warn("mirror treasury balances onto pool failed")
		}
	}

	snap, err := r.store.CreateTreasurySnapshot(ctx, domain.Snapshot{
		SnapshotDate:     time.Now().UTC(),
		TotalStaked:      poolRow.TotalStaked,
		LiquidBalance:    liquid,
		ValidatorBalance: validator,
	})
	if err != nil {
		return domain.Snapshot{}, svcerrors.Internal("create treasury snapshot", err)
	}

	if r.actions != nil {
		_, err := r.actions.RecordAdminAction(ctx, audit.AdminAction{
			ActionType:  audit.ActionTreasurySnapshot,
			Description: "treasury snapshot captured",
			Amount:      snap.TotalStaked,
		})
		if err != nil {
			r.log.WithError(err).Warn("record snapshot action failed")
		}
	}

	r.log.WithField("total_staked", snap.TotalStaked.String()).
		WithField("liquid", snap.LiquidBalance.String()).
		WithField("validator", snap.ValidatorBalance.String()).
		Info("treasury snapshot captured")
	return snap, nil
}

// GetLatestSnapshot returns the most recent snapshot, or NotFound when no
// reconciliation has run yet.
func (r *Reconciler) GetLatestSnapshot(ctx context.Context) (domain.Snapshot, error) {
	snap, err := r.store.GetLatestTreasurySnapshot(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Snapshot{}, svcerrors.NotFound("no treasury snapshot recorded")
	}
	if err != nil {
		return domain.Snapshot{}, svcerrors.Internal("load latest snapshot", err)
	}
	return snap, nil
}
