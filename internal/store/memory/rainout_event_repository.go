package memory

import (
	"context"
	"sync"

	"rainout-go/internal/domain"
)

// RainoutEventRepository is an in-memory implementation of store.RainoutEventRepository.
type RainoutEventRepository struct {
	mu     sync.RWMutex
	events []*domain.RainoutEvent
}

// NewRainoutEventRepository creates a new in-memory change log.
func NewRainoutEventRepository() *RainoutEventRepository {
	return &RainoutEventRepository{}
}

// Create appends a change record.
func (r *RainoutEventRepository) Create(ctx context.Context, event *domain.RainoutEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	eventCopy := *event
	r.events = append(r.events, &eventCopy)
	return nil
}

// List retrieves change records matching the filter, newest first.
func (r *RainoutEventRepository) List(ctx context.Context, filter domain.RainoutEventFilter) ([]*domain.RainoutEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := []*domain.RainoutEvent{}
	for i := len(r.events) - 1; i >= 0; i-- {
		event := r.events[i]
		if filter.TenantID != "" && event.TenantID != filter.TenantID {
			continue
		}
		if filter.Zip != "" && event.Zip != filter.Zip {
			continue
		}
		eventCopy := *event
		results = append(results, &eventCopy)
		if filter.Limit > 0 && len(results) == filter.Limit {
			break
		}
	}
	return results, nil
}

// Len returns the number of stored change records.
func (r *RainoutEventRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.events)
}
