package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/refit-labs/staking-engine/internal/app/services/accrual"
	poolsvc "github.com/refit-labs/staking-engine/internal/app/services/pool"
	stakesvc "github.com/refit-labs/staking-engine/internal/app/services/stakes"
	treasurysvc "github.com/refit-labs/staking-engine/internal/app/services/treasury"
	withdrawalsvc "github.com/refit-labs/staking-engine/internal/app/services/withdrawals"
	"github.com/refit-labs/staking-engine/internal/app/storage"
	"github.com/refit-labs/staking-engine/internal/app/storage/memory"
	"github.com/refit-labs/staking-engine/internal/app/system"
	"github.com/refit-labs/staking-engine/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Pool        storage.PoolStore
	Deposits    storage.DepositStore
	Stakes      storage.StakeStore
	Yields      storage.YieldStore
	Withdrawals storage.WithdrawalStore
	Treasury    storage.TreasuryStore
	Actions     storage.AdminActionStore
}

// Options tunes the application. The zero value selects production defaults.
type Options struct {
	MinimumDeposit    decimal.Decimal
	MaximumDeposit    decimal.Decimal
	AccrualSchedule   string
	TreasurySourceURL string
	TreasurySourceKey string
	SnapshotInterval  time.Duration
	AccrualRatePolicy accrual.RatePolicy
}

// Application ties the ledger services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Pool        *poolsvc.Service
	Stakes      *stakesvc.Service
	Withdrawals *withdrawalsvc.Service
	Accrual     *accrual.Job
	Treasury    *treasurysvc.Reconciler
	Actions     storage.AdminActionStore
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	mem := memory.New()
	if stores.Pool == nil {
		stores.Pool = mem
	}
	if stores.Deposits == nil {
		stores.Deposits = mem
	}
	if stores.Stakes == nil {
		stores.Stakes = mem
	}
	if stores.Yields == nil {
		stores.Yields = mem
	}
	if stores.Withdrawals == nil {
		stores.Withdrawals = mem
	}
	if stores.Treasury == nil {
		stores.Treasury = mem
	}
	if stores.Actions == nil {
		stores.Actions = mem
	}

	manager := system.NewManager()

	poolCfg := poolsvc.Config{
		MinimumDeposit: opts.MinimumDeposit,
		MaximumDeposit: opts.MaximumDeposit,
	}
	poolService := poolsvc.New(stores.Pool, stores.Deposits, stores.Treasury, stores.Actions, poolCfg, log)
	stakeService := stakesvc.New(stores.Stakes, stores.Yields, stores.Withdrawals, log)
	withdrawalService := withdrawalsvc.New(stores.Stakes, stores.Withdrawals, stores.Actions, log)
	accrualJob := accrual.NewJob(stores.Stakes, stores.Yields, stores.Actions, opts.AccrualRatePolicy, log)

	schedule := opts.AccrualSchedule
	if schedule == "" {
		schedule = accrual.DefaultSchedule
	}
	accrualRunner := accrual.NewScheduler(accrualJob, schedule, log)

	var source treasurysvc.Source
	if opts.TreasurySourceURL != "" {
		httpClient := &http.Client{Timeout: 10 * time.Second}
		httpSource, err := treasurysvc.NewHTTPSource(httpClient, opts.TreasurySourceURL, opts.TreasurySourceKey, log)
		if err != nil {
			log.WithError(err).Warn("configure treasury source")
		} else {
			source = httpSource
		}
	} else {
		log.Warn("treasury source URL not set; snapshots mirror pool balances")
	}
	reconciler := treasurysvc.NewReconciler(stores.Pool, stores.Treasury, stores.Actions, source, opts.SnapshotInterval, log)

	for _, svc := range []system.Service{accrualRunner, reconciler} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	return &Application{
		manager:     manager,
		log:         log,
		Pool:        poolService,
		Stakes:      stakeService,
		Withdrawals: withdrawalService,
		Accrual:     accrualJob,
		Treasury:    reconciler,
		Actions:     stores.Actions,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
