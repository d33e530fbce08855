package polling

import (
	"context"
	"time"

	"rainout-go/internal/domain"
	"rainout-go/internal/metrics"
	"rainout-go/internal/notification"
)

// Fetcher returns the current source events for a poll target.
type Fetcher interface {
	FetchSourceEvents(ctx context.Context, target domain.PollTarget, rc domain.RunContext) ([]domain.SourceEvent, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, target domain.PollTarget, rc domain.RunContext) ([]domain.SourceEvent, error)

// FetchSourceEvents calls f.
func (f FetcherFunc) FetchSourceEvents(ctx context.Context, target domain.PollTarget, rc domain.RunContext) ([]domain.SourceEvent, error) {
	return f(ctx, target, rc)
}

// StateStore reads and writes rainout snapshots by state key.
type StateStore interface {
	GetState(ctx context.Context, stateKey string) (*domain.RainoutState, error)
	SetState(ctx context.Context, stateKey string, state *domain.RainoutState) error
}

// IdempotencyStore tracks delivered changes.
type IdempotencyStore interface {
	IsProcessed(ctx context.Context, key string) (bool, error)
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) error
}

// EventWriter persists change records.
type EventWriter interface {
	Create(ctx context.Context, event *domain.RainoutEvent) error
}

// AuditWriter persists per-target audit records.
type AuditWriter interface {
	Write(ctx context.Context, record *domain.AuditRecord) error
}

// Ports is the collaborator set of a run. Nil members act as no-ops, which
// makes a zero Ports a dry run.
type Ports struct {
	Fetcher     Fetcher
	State       StateStore
	Idempotency IdempotencyStore
	Events      EventWriter
	Notifier    notification.Notifier
	Audit       AuditWriter
}

func (p Ports) withDefaults() Ports {
	if p.Fetcher == nil {
		p.Fetcher = FetcherFunc(func(context.Context, domain.PollTarget, domain.RunContext) ([]domain.SourceEvent, error) {
			return nil, nil
		})
	}
	if p.State == nil {
		p.State = noopState{}
	}
	if p.Idempotency == nil {
		p.Idempotency = noopIdempotency{}
	}
	if p.Events == nil {
		p.Events = noopEvents{}
	}
	if p.Notifier == nil {
		p.Notifier = noopNotifier{}
	}
	if p.Audit == nil {
		p.Audit = noopAudit{}
	}
	return p
}

type noopState struct{}

func (noopState) GetState(context.Context, string) (*domain.RainoutState, error) { return nil, nil }
func (noopState) SetState(context.Context, string, *domain.RainoutState) error   { return nil }

type noopIdempotency struct{}

func (noopIdempotency) IsProcessed(context.Context, string) (bool, error)          { return false, nil }
func (noopIdempotency) MarkProcessed(context.Context, string, time.Duration) error { return nil }

type noopEvents struct{}

func (noopEvents) Create(context.Context, *domain.RainoutEvent) error { return nil }

type noopAudit struct{}

func (noopAudit) Write(context.Context, *domain.AuditRecord) error { return nil }

type noopNotifier struct{}

func (noopNotifier) PostChatUpdate(context.Context, *domain.ChatUpdate) error         { return nil }
func (noopNotifier) UpsertInAppStatus(context.Context, *domain.InAppStatus) error     { return nil }
func (noopNotifier) PostNoChangeUpdate(context.Context, *domain.NoChangeUpdate) error { return nil }

// Instrument wraps the storage ports so every call is recorded in the
// storage metrics. Nil ports stay nil.
func Instrument(p Ports) Ports {
	if p.State != nil {
		p.State = meteredState{next: p.State}
	}
	if p.Idempotency != nil {
		p.Idempotency = meteredIdempotency{next: p.Idempotency}
	}
	if p.Events != nil {
		p.Events = meteredEvents{next: p.Events}
	}
	if p.Audit != nil {
		p.Audit = meteredAudit{next: p.Audit}
	}
	return p
}

type meteredState struct{ next StateStore }

func (m meteredState) GetState(ctx context.Context, key string) (*domain.RainoutState, error) {
	start := time.Now()
	state, err := m.next.GetState(ctx, key)
	metrics.ObserveStorage("state", "read", start, err)
	return state, err
}

func (m meteredState) SetState(ctx context.Context, key string, state *domain.RainoutState) error {
	start := time.Now()
	err := m.next.SetState(ctx, key, state)
	metrics.ObserveStorage("state", "write", start, err)
	return err
}

type meteredIdempotency struct{ next IdempotencyStore }

func (m meteredIdempotency) IsProcessed(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	ok, err := m.next.IsProcessed(ctx, key)
	metrics.ObserveStorage("idempotency", "read", start, err)
	return ok, err
}

func (m meteredIdempotency) MarkProcessed(ctx context.Context, key string, ttl time.Duration) error {
	start := time.Now()
	err := m.next.MarkProcessed(ctx, key, ttl)
	metrics.ObserveStorage("idempotency", "write", start, err)
	return err
}

type meteredEvents struct{ next EventWriter }

func (m meteredEvents) Create(ctx context.Context, event *domain.RainoutEvent) error {
	start := time.Now()
	err := m.next.Create(ctx, event)
	metrics.ObserveStorage("rainout_events", "write", start, err)
	return err
}

type meteredAudit struct{ next AuditWriter }

func (m meteredAudit) Write(ctx context.Context, record *domain.AuditRecord) error {
	start := time.Now()
	err := m.next.Write(ctx, record)
	metrics.ObserveStorage("audit_log", "write", start, err)
	return err
}
