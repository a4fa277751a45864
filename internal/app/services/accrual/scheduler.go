package accrual

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/refit-labs/staking-engine/internal/app/system"
	"github.com/refit-labs/staking-engine/pkg/logger"
)

// DefaultSchedule runs the accrual once per UTC day.
const DefaultSchedule = "@daily"

// Scheduler drives the accrual job on a cron schedule. The HTTP cron trigger
// calls the same Run, so overlapping invocations are safe.
type Scheduler struct {
	job      *Job
	schedule string
	log      *logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

var _ system.Service = (*Scheduler)(nil)

// NewScheduler wraps the job in a cron schedule. An empty schedule defaults
// to daily.
func NewScheduler(job *Job, schedule string, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefault("accrual-scheduler")
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Scheduler{job: job, schedule: schedule, log: log}
}

func (s *Scheduler) Name() string { return "accrual-scheduler" }

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(s.schedule, func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := s.job.Run(runCtx); err != nil {
			s.log.WithError(err).Warn("scheduled accrual run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("register accrual schedule %q: %w", s.schedule, err)
	}

	c.Start()
	s.cron = c
	s.running = true
	s.log.WithField("schedule", s.schedule).Info("accrual scheduler started")
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.running = false
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
