package source

import (
	"context"
	"strings"
	"sync"

	"rainout-go/internal/config"
	"rainout-go/internal/domain"
	"rainout-go/internal/planner"
)

// StaticFetcher serves fixed events per (tenant, zip). It backs development
// setups and tests.
type StaticFetcher struct {
	mu     sync.RWMutex
	events map[string][]domain.SourceEvent
}

// NewStaticFetcher groups events by tenant and normalized zip.
func NewStaticFetcher(events []domain.SourceEvent) *StaticFetcher {
	f := &StaticFetcher{events: make(map[string][]domain.SourceEvent)}
	for _, ev := range events {
		key := staticKey(ev.TenantID, ev.Zip)
		f.events[key] = append(f.events[key], ev)
	}
	return f
}

// NewStaticFetcherFromConfig builds a fetcher from configured static events.
func NewStaticFetcherFromConfig(cfg *config.SourceConfig) *StaticFetcher {
	events := make([]domain.SourceEvent, 0, len(cfg.StaticEvents))
	for _, se := range cfg.StaticEvents {
		events = append(events, domain.SourceEvent{
			TenantID:      se.TenantID,
			Zip:           se.Zip,
			FacilityID:    se.FacilityID,
			SourceEventID: se.SourceEventID,
			Status:        se.Status,
			UpdatedAt:     se.UpdatedAt,
		})
	}
	return NewStaticFetcher(events)
}

// Set replaces the events served for a tenant and zip.
func (f *StaticFetcher) Set(tenantID, zip string, events []domain.SourceEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[staticKey(tenantID, zip)] = append([]domain.SourceEvent(nil), events...)
}

// FetchSourceEvents returns a copy of the configured events for target.
func (f *StaticFetcher) FetchSourceEvents(ctx context.Context, target domain.PollTarget, rc domain.RunContext) ([]domain.SourceEvent, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]domain.SourceEvent(nil), f.events[staticKey(target.TenantID, target.Zip)]...), nil
}

func staticKey(tenantID, zip string) string {
	return domain.PollTarget{TenantID: strings.TrimSpace(tenantID), Zip: planner.NormalizeZip(zip)}.Key()
}
