package polling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"rainout-go/internal/domain"
	"rainout-go/internal/metrics"
)

// ErrRunInProgress is returned by Trigger while another run is executing.
var ErrRunInProgress = errors.New("polling run already in progress")

// SubscriptionLister loads the subscriptions a run polls for.
type SubscriptionLister interface {
	List(ctx context.Context, filter domain.SubscriptionFilter) ([]domain.Subscription, error)
}

// ServiceConfig holds the settings applied to every triggered run.
type ServiceConfig struct {
	Run        RunConfig
	RunTimeout time.Duration
}

// Service triggers runs for the scheduler and the API. At most one run
// executes at a time.
type Service struct {
	executor      *Executor
	subscriptions SubscriptionLister
	config        ServiceConfig
	logger        *slog.Logger

	running atomic.Bool
	mu      sync.RWMutex
	last    *domain.RunResult
}

// NewService creates a new polling service.
func NewService(executor *Executor, subscriptions SubscriptionLister, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		executor:      executor,
		subscriptions: subscriptions,
		config:        cfg,
		logger:        logger,
	}
}

// Trigger runs the executor with the clock at. force bypasses the boundary
// check for this run only.
func (s *Service) Trigger(ctx context.Context, at time.Time, force bool) (*domain.RunResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.running.Store(false)

	if s.config.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RunTimeout)
		defer cancel()
	}

	subs, err := s.subscriptions.List(ctx, domain.SubscriptionFilter{EnabledOnly: true})
	if err != nil {
		s.logger.Error("failed to load subscriptions", "error", err)
		return nil, fmt.Errorf("failed to load subscriptions: %w", err)
	}

	cfg := s.config.Run
	cfg.ForceRun = cfg.ForceRun || force

	start := time.Now()
	result := s.executor.Execute(ctx, Request{
		NowMs:         at.UnixMilli(),
		Config:        cfg,
		Subscriptions: subs,
	})

	if result.Skipped() {
		metrics.RunsTotal.WithLabelValues(string(*result.SkippedReason)).Inc()
		return result, nil
	}

	metrics.RunsTotal.WithLabelValues("executed").Inc()
	metrics.RunDuration.Observe(time.Since(start).Seconds())
	metrics.LastRunTimestamp.SetToCurrentTime()

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	return result, nil
}

// LastResult returns the result of the most recent executed run, or nil.
func (s *Service) LastResult() *domain.RunResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// Running reports whether a run is executing.
func (s *Service) Running() bool {
	return s.running.Load()
}
