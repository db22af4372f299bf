package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/pagesmith/internal/idempotency"
	"git.home.luguber.info/inful/pagesmith/internal/logfields"
)

const pruneJobName = "idempotency-prune"

// Scheduler wraps gocron scheduler for managing periodic maintenance.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	now       func() time.Time
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(logger *slog.Logger) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{scheduler: s, logger: logger, now: time.Now}, nil
}

// Start begins the scheduler.
func (s *Scheduler) Start() {
	s.logger.Info("Starting scheduler")
	s.scheduler.Start()
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")
	return s.scheduler.Shutdown()
}

// SchedulePrune runs pruner every interval. Resolved records older than
// retention are dropped; PENDING records survive at least pendingTTL and
// retention, whichever is longer.
func (s *Scheduler) SchedulePrune(interval, retention, pendingTTL time.Duration, pruner idempotency.Pruner) (string, error) {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.prune, pruner, retention, pendingTTL),
		gocron.WithName(pruneJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create prune job: %w", err)
	}
	return job.ID().String(), nil
}

func (s *Scheduler) prune(pruner idempotency.Pruner, retention, pendingTTL time.Duration) {
	now := s.now()
	pendingAge := max(retention, pendingTTL)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := pruner.Prune(ctx, now.Add(-retention), now.Add(-pendingAge))
	if err != nil {
		s.logger.Warn("Idempotency prune failed", logfields.ScheduleJob(pruneJobName), logfields.Error(err))
		return
	}
	s.logger.Info("Idempotency prune complete", logfields.ScheduleJob(pruneJobName), slog.Int("removed", n))
}
