package memory

import (
	"context"
	"sort"
	"sync"

	"rainout-go/internal/domain"
)

// SubscriptionRepository is an in-memory implementation of store.SubscriptionRepository.
type SubscriptionRepository struct {
	mu   sync.RWMutex
	subs map[string]*domain.Subscription
	seq  map[string]int // insertion order, keeps List stable
	next int
}

// NewSubscriptionRepository creates a new in-memory subscription repository.
func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{
		subs: make(map[string]*domain.Subscription),
		seq:  make(map[string]int),
	}
}

// Create stores a new subscription, replacing one with the same ID.
func (r *SubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	subCopy := *sub
	if _, exists := r.seq[sub.ID]; !exists {
		r.seq[sub.ID] = r.next
		r.next++
	}
	r.subs[sub.ID] = &subCopy
	return nil
}

// Delete removes a subscription by ID.
func (r *SubscriptionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.subs[id]; !exists {
		return domain.ErrSubscriptionNotFound
	}
	delete(r.subs, id)
	delete(r.seq, id)
	return nil
}

// GetByID retrieves a subscription by its ID.
func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (*domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, exists := r.subs[id]
	if !exists {
		return nil, domain.ErrSubscriptionNotFound
	}
	result := *sub
	return &result, nil
}

// List retrieves subscriptions matching the filter in insertion order.
func (r *SubscriptionRepository) List(ctx context.Context, filter domain.SubscriptionFilter) ([]domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]domain.Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		if filter.Matches(sub) {
			results = append(results, *sub)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return r.seq[results[i].ID] < r.seq[results[j].ID]
	})
	return results, nil
}
