// Package scheduler fires polling runs on a cron tick.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"rainout-go/internal/domain"
	"rainout-go/internal/polling"
)

// Trigger starts a polling run for the given instant.
type Trigger interface {
	Trigger(ctx context.Context, at time.Time, force bool) (*domain.RunResult, error)
}

// Scheduler ticks on a cron schedule and hands each scheduled minute to the
// polling service. Off-boundary minutes are skipped by the executor.
type Scheduler struct {
	spec    string
	parser  cron.Parser
	trigger Trigger
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.Mutex
	c      *cron.Cron
	cancel context.CancelFunc
}

// New creates a scheduler for a five-field cron spec.
func New(spec string, trigger Trigger, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		spec:    spec,
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		trigger: trigger,
		logger:  logger,
		now:     time.Now,
	}
}

// Start registers the tick job and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	schedule, err := s.parser.Parse(s.spec)
	if err != nil {
		return fmt.Errorf("failed to parse tick schedule %q: %w", s.spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return errors.New("scheduler already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.c = cron.New(cron.WithParser(s.parser), cron.WithLocation(time.UTC))
	s.c.Schedule(schedule, cron.FuncJob(func() { s.Tick(ctx) }))
	s.c.Start()

	s.logger.Info("scheduler started", "schedule", s.spec)
	return nil
}

// Stop halts the cron loop and waits for a running tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c, cancel := s.c, s.cancel
	s.c, s.cancel = nil, nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	cancel()
	s.logger.Info("scheduler stopped")
}

// Tick triggers one run for the current minute.
func (s *Scheduler) Tick(ctx context.Context) {
	at := s.now().UTC().Truncate(time.Minute)

	result, err := s.trigger.Trigger(ctx, at, false)
	switch {
	case errors.Is(err, polling.ErrRunInProgress):
		s.logger.Warn("tick skipped, previous run still in progress", "tick", at)
	case err != nil:
		s.logger.Error("scheduled run failed", "tick", at, "error", err)
	case result.Skipped():
		s.logger.Debug("scheduled run skipped", "tick", at, "reason", *result.SkippedReason)
	default:
		s.logger.Info("scheduled run completed",
			"run_id", result.RunID,
			"processed_targets", result.ProcessedTargets,
			"changed_events", result.ChangedEvents,
			"failed_targets", result.FailedTargets,
		)
	}
}
