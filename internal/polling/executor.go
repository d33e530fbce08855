// Package polling runs rainout polling: it gates runs on the schedule
// boundary, plans unique (tenant, zip) targets, applies the per-tenant
// guardrail and processes each target in isolation, delivering every detected
// status change exactly once.
package polling

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"rainout-go/internal/domain"
	"rainout-go/internal/metrics"
	"rainout-go/internal/planner"
)

// DefaultMaxZipsPerTenant caps targets per tenant when unset.
const DefaultMaxZipsPerTenant = 50

// RunConfig tunes a single run.
type RunConfig struct {
	// Enabled is the kill switch. Nil means enabled.
	Enabled *bool

	// ForceRun executes even when now is not on an interval boundary.
	ForceRun bool

	// IntervalMinutes defaults to 30 when zero and is floored to 1.
	IntervalMinutes int

	// MaxZipsPerTenant defaults to 50 when not positive.
	MaxZipsPerTenant int

	// Parallelism above 1 processes that many targets concurrently.
	Parallelism int

	// IdempotencyTTL is passed to the idempotency store. Zero keeps keys forever.
	IdempotencyTTL time.Duration
}

func (c RunConfig) withDefaults() RunConfig {
	if c.IntervalMinutes == 0 {
		c.IntervalMinutes = planner.DefaultIntervalMinutes
	}
	if c.IntervalMinutes < 1 {
		c.IntervalMinutes = 1
	}
	if c.MaxZipsPerTenant <= 0 {
		c.MaxZipsPerTenant = DefaultMaxZipsPerTenant
	}
	return c
}

func (c RunConfig) enabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Request is the input of one run.
type Request struct {
	// NowMs is the run clock in epoch millis. Zero means the current time.
	NowMs int64

	// RunID defaults to "rainout-<NowMs>".
	RunID string

	Config        RunConfig
	Subscriptions []domain.Subscription
}

// Executor runs polling runs against a set of ports. It holds no state
// between runs and is safe for concurrent use.
type Executor struct {
	ports  Ports
	logger *slog.Logger
}

// NewExecutor creates an executor. Missing ports are replaced by no-ops.
func NewExecutor(ports Ports, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		ports:  ports.withDefaults(),
		logger: logger,
	}
}

// targetStats are the counters of one target.
type targetStats struct {
	eventsSeen    int
	changed       int
	skipped       int
	notifications int
}

// Execute performs one run. It never fails: every target error is
// classified, audited and counted in the result.
func (e *Executor) Execute(ctx context.Context, req Request) *domain.RunResult {
	nowMs := req.NowMs
	if nowMs == 0 {
		nowMs = time.Now().UnixMilli()
	}
	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		runID = fmt.Sprintf("rainout-%d", nowMs)
	}
	cfg := req.Config.withDefaults()

	result := &domain.RunResult{
		RunID:           runID,
		IntervalMinutes: cfg.IntervalMinutes,
		NextPollAtMs:    planner.NextPollTimeMs(nowMs, cfg.IntervalMinutes),
		ErrorClasses:    []string{},
	}

	if !cfg.enabled() {
		return e.skip(result, domain.SkipFeatureDisabled)
	}
	onBoundary := planner.IsOnBoundary(nowMs, cfg.IntervalMinutes)
	if !onBoundary && !cfg.ForceRun {
		return e.skip(result, domain.SkipNotOnBoundary)
	}

	subs := enabledSubscriptions(req.Subscriptions)
	targets, guardrailSkipped := applyGuardrail(planner.BuildUniqueZipPollPlan(subs), cfg.MaxZipsPerTenant)
	result.GuardrailSkippedTargets = guardrailSkipped
	metrics.TargetsTotal.WithLabelValues("guardrail_skipped").Add(float64(guardrailSkipped))

	e.logger.Info("starting rainout polling run",
		"run_id", runID,
		"targets", len(targets),
		"guardrail_skipped", guardrailSkipped,
		"forced", cfg.ForceRun && !onBoundary,
	)

	var (
		mu           sync.Mutex
		errorClasses = make(map[string]struct{})
	)
	record := func(stats targetStats, errorClass string) {
		mu.Lock()
		defer mu.Unlock()
		result.ChangedEvents += stats.changed
		result.SkippedUnchangedEvents += stats.skipped
		result.NotificationsSent += stats.notifications
		if errorClass != "" {
			result.FailedTargets++
			errorClasses[errorClass] = struct{}{}
			return
		}
		result.ProcessedTargets++
	}

	run := func(target domain.PollTarget) {
		stats, errorClass := e.runTarget(ctx, target, subs, runID, nowMs, cfg)
		record(stats, errorClass)
	}

	if cfg.Parallelism > 1 {
		var g errgroup.Group
		g.SetLimit(cfg.Parallelism)
		for _, target := range targets {
			g.Go(func() error {
				run(target)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, target := range targets {
			run(target)
		}
	}

	for class := range errorClasses {
		result.ErrorClasses = append(result.ErrorClasses, class)
	}
	sort.Strings(result.ErrorClasses)

	e.logger.Info("rainout polling run completed",
		"run_id", runID,
		"processed_targets", result.ProcessedTargets,
		"failed_targets", result.FailedTargets,
		"changed_events", result.ChangedEvents,
		"skipped_unchanged_events", result.SkippedUnchangedEvents,
		"notifications_sent", result.NotificationsSent,
		"error_classes", result.ErrorClasses,
	)

	return result
}

func (e *Executor) skip(result *domain.RunResult, reason domain.SkipReason) *domain.RunResult {
	result.SkippedReason = &reason
	e.logger.Debug("rainout polling run skipped",
		"run_id", result.RunID,
		"reason", reason,
		"next_poll_at_ms", result.NextPollAtMs,
	)
	return result
}

// runTarget processes one target and writes its audit record. It returns the
// counters committed so far and the error class when the target failed.
func (e *Executor) runTarget(ctx context.Context, target domain.PollTarget, subs []domain.Subscription, runID string, nowMs int64, cfg RunConfig) (targetStats, string) {
	start := time.Now()
	rc := domain.RunContext{
		RunID:         runID,
		CorrelationID: planner.CorrelationID(runID, target),
		NowMs:         nowMs,
	}
	ctx = WithRunContext(ctx, rc)

	stats, err := e.processTarget(ctx, target, subs, rc, cfg)
	if err == nil {
		err = e.ports.Audit.Write(ctx, newAuditRecord(target, rc, domain.AuditStatusOK, "", stats, time.Since(start)))
		if err != nil {
			err = fmt.Errorf("failed to write audit log: %w", err)
		}
	}

	metrics.TargetLatency.Observe(time.Since(start).Seconds())
	metrics.EventsTotal.WithLabelValues("changed").Add(float64(stats.changed))
	metrics.EventsTotal.WithLabelValues("skipped_unchanged").Add(float64(stats.skipped))

	if err == nil {
		metrics.TargetsTotal.WithLabelValues("ok").Inc()
		e.logger.Debug("target processed",
			"correlation_id", rc.CorrelationID,
			"tenant_id", target.TenantID,
			"zip", target.Zip,
			"events_seen", stats.eventsSeen,
			"changed_events", stats.changed,
		)
		return stats, ""
	}

	errorClass := ClassifyError(err)
	metrics.TargetsTotal.WithLabelValues("error").Inc()
	metrics.TargetErrorsTotal.WithLabelValues(errorClass).Inc()
	e.logger.Warn("target failed",
		"correlation_id", rc.CorrelationID,
		"tenant_id", target.TenantID,
		"zip", target.Zip,
		"error_class", errorClass,
		"error", err,
	)

	failure := newAuditRecord(target, rc, domain.AuditStatusError, errorClass, targetStats{}, time.Since(start))
	if auditErr := e.ports.Audit.Write(ctx, failure); auditErr != nil {
		e.logger.Error("failed to write error audit log",
			"correlation_id", rc.CorrelationID,
			"error", auditErr,
		)
	}
	return stats, errorClass
}

// processTarget fetches the target's events and runs each through change
// detection. The first error aborts the target.
func (e *Executor) processTarget(ctx context.Context, target domain.PollTarget, subs []domain.Subscription, rc domain.RunContext, cfg RunConfig) (targetStats, error) {
	var stats targetStats

	events, err := e.ports.Fetcher.FetchSourceEvents(ctx, target, rc)
	if err != nil {
		return stats, fmt.Errorf("failed to fetch source events: %w", err)
	}
	stats.eventsSeen = len(events)

	for _, raw := range events {
		changed, err := e.processEvent(ctx, raw, subs, rc, cfg)
		if err != nil {
			return stats, err
		}
		if changed {
			stats.changed++
			stats.notifications++
		} else {
			stats.skipped++
		}
	}

	if stats.changed == 0 {
		heartbeat := &domain.NoChangeUpdate{
			RunID:           rc.RunID,
			CorrelationID:   rc.CorrelationID,
			TenantID:        target.TenantID,
			Zip:             target.Zip,
			SubscriberCount: target.SubscriberCount,
			EventsSeen:      stats.eventsSeen,
			PolledAt:        time.UnixMilli(rc.NowMs).UTC(),
		}
		if err := e.ports.Notifier.PostNoChangeUpdate(ctx, heartbeat); err != nil {
			return stats, fmt.Errorf("failed to post no-change update: %w", err)
		}
	}

	return stats, nil
}

// processEvent reports whether raw was a new change and, if so, delivers it.
// Delivery order is fixed: event record, chat, in-app status, state,
// idempotency mark. State and idempotency are never written before both
// notifications succeed.
func (e *Executor) processEvent(ctx context.Context, raw domain.SourceEvent, subs []domain.Subscription, rc domain.RunContext, cfg RunConfig) (bool, error) {
	matched := planner.MatchEventToSubscribers(raw, subs)
	if len(matched) == 0 {
		return false, nil
	}

	ev := planner.NormalizeEvent(raw)
	stateKey := planner.StateKey(ev)

	prev, err := e.ports.State.GetState(ctx, stateKey)
	if err != nil {
		return false, fmt.Errorf("failed to read rainout state %s: %w", stateKey, err)
	}
	if !planner.HasRainoutStatusChanged(prev, ev) {
		return false, nil
	}

	idempotencyKey := planner.IdempotencyKey(ev)
	processed, err := e.ports.Idempotency.IsProcessed(ctx, idempotencyKey)
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	if processed {
		return false, nil
	}

	subscriptionIDs, userIDs := planner.UniqueSubscribers(matched)
	record := domain.NewRainoutEvent(ev, prev, rc, stateKey, idempotencyKey, subscriptionIDs, userIDs)

	if err := e.ports.Events.Create(ctx, record); err != nil {
		return false, fmt.Errorf("failed to write rainout event: %w", err)
	}
	if err := e.ports.Notifier.PostChatUpdate(ctx, domain.NewChatUpdate(record)); err != nil {
		return false, fmt.Errorf("failed to post chat update: %w", err)
	}
	if err := e.ports.Notifier.UpsertInAppStatus(ctx, domain.NewInAppStatus(record)); err != nil {
		return false, fmt.Errorf("failed to upsert in-app status: %w", err)
	}
	if err := e.ports.State.SetState(ctx, stateKey, record.State()); err != nil {
		return false, fmt.Errorf("failed to write rainout state %s: %w", stateKey, err)
	}
	if err := e.ports.Idempotency.MarkProcessed(ctx, idempotencyKey, cfg.IdempotencyTTL); err != nil {
		return false, fmt.Errorf("failed to mark idempotency key: %w", err)
	}

	e.logger.Info("rainout status change delivered",
		"correlation_id", rc.CorrelationID,
		"state_key", stateKey,
		"status", record.Status,
		"previous_status", record.PreviousStatus,
		"subscribers", len(subscriptionIDs),
	)
	return true, nil
}

func enabledSubscriptions(subs []domain.Subscription) []domain.Subscription {
	out := make([]domain.Subscription, 0, len(subs))
	for _, sub := range subs {
		if sub.IsEnabled() {
			out = append(out, sub)
		}
	}
	return out
}

// applyGuardrail keeps at most limit targets per tenant in plan order.
func applyGuardrail(plan []domain.PollTarget, limit int) ([]domain.PollTarget, int) {
	kept := make([]domain.PollTarget, 0, len(plan))
	perTenant := make(map[string]int)
	skipped := 0
	for _, target := range plan {
		if perTenant[target.TenantID] >= limit {
			skipped++
			continue
		}
		perTenant[target.TenantID]++
		kept = append(kept, target)
	}
	return kept, skipped
}

func newAuditRecord(target domain.PollTarget, rc domain.RunContext, status domain.AuditStatus, errorClass string, stats targetStats, elapsed time.Duration) *domain.AuditRecord {
	return &domain.AuditRecord{
		ID:                     uuid.New().String(),
		RunID:                  rc.RunID,
		CorrelationID:          rc.CorrelationID,
		TenantID:               target.TenantID,
		Zip:                    target.Zip,
		Status:                 status,
		ErrorClass:             errorClass,
		EventsSeen:             stats.eventsSeen,
		ChangedEvents:          stats.changed,
		SkippedUnchangedEvents: stats.skipped,
		NotificationsSent:      stats.notifications,
		DurationMs:             elapsed.Milliseconds(),
		CreatedAt:              time.Now().UTC(),
	}
}
