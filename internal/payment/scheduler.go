package payment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Reconciler interface {
	Reconcile(ctx context.Context) (*ReconcileReport, error)
}

// Scheduler runs reconciliation passes on a cron schedule. A pass still running when the next
// one is due makes the next one skip.
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	schedule   string
	timeout    time.Duration
	logger     *slog.Logger
}

func NewScheduler(reconciler Reconciler, schedule string, timeout time.Duration, logger *slog.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(
		cron.Recover(cronLogger),
		cron.SkipIfStillRunning(cronLogger),
	))
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}

	return &Scheduler{
		cron:       c,
		reconciler: reconciler,
		schedule:   schedule,
		timeout:    timeout,
		logger:     logger,
	}
}

// Start registers the reconciliation job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runScheduled); err != nil {
		return fmt.Errorf("schedule reconcile job %q: %w", s.schedule, err)
	}
	s.logger.Info("scheduled reconcile job", "schedule", s.schedule)
	s.cron.Start()
	return nil
}

// Stop stops scheduling and returns a context done once the running pass finishes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunOnce performs a single pass bounded by the scheduler timeout.
func (s *Scheduler) RunOnce(ctx context.Context) (*ReconcileReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.reconciler.Reconcile(ctx)
}

func (s *Scheduler) runScheduled() {
	if _, err := s.RunOnce(context.Background()); err != nil {
		s.logger.Error("reconcile pass failed", "error", err)
	}
}
