// Package memory provides in-memory implementations of store interfaces.
// These are useful for testing and development without external dependencies.
package memory

import (
	"context"
	"sync"
	"time"

	"rainout-go/internal/domain"
)

// StateStore is an in-memory implementation of the store.StateStore interface.
// It uses a map with mutex protection for thread-safe access.
type StateStore struct {
	mu     sync.RWMutex
	states map[string]*domain.RainoutState
}

// NewStateStore creates a new in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[string]*domain.RainoutState),
	}
}

// GetState retrieves the snapshot for a state key.
func (s *StateStore) GetState(ctx context.Context, stateKey string) (*domain.RainoutState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.states[stateKey]
	if !exists {
		return nil, nil
	}

	// Return a copy to prevent external modification
	result := *state
	return &result, nil
}

// SetState stores or replaces the snapshot for a state key.
func (s *StateStore) SetState(ctx context.Context, stateKey string, state *domain.RainoutState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stateCopy := *state
	s.states[stateKey] = &stateCopy
	return nil
}

// Len returns the number of stored snapshots.
func (s *StateStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Close releases any resources (no-op for in-memory store).
func (s *StateStore) Close() error {
	return nil
}

// Clear removes all data from the store. Useful for test cleanup.
func (s *StateStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = make(map[string]*domain.RainoutState)
}

// IdempotencyStore is an in-memory implementation of store.IdempotencyStore.
// TTL expiration is checked on access (lazy expiration).
type IdempotencyStore struct {
	mu   sync.RWMutex
	keys map[string]time.Time // zero time means no expiry
	now  func() time.Time
}

// NewIdempotencyStore creates a new in-memory idempotency store.
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		keys: make(map[string]time.Time),
		now:  time.Now,
	}
}

// IsProcessed reports whether the key was marked and has not expired.
func (s *IdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiresAt, exists := s.keys[key]
	if !exists {
		return false, nil
	}
	if !expiresAt.IsZero() && s.now().After(expiresAt) {
		return false, nil
	}
	return true, nil
}

// MarkProcessed records the key. A zero ttl keeps it forever.
func (s *IdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = s.now().Add(ttl)
	}
	s.keys[key] = expiresAt
	return nil
}

// Keys returns every marked key, expired or not.
func (s *IdempotencyStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		keys = append(keys, k)
	}
	return keys
}

// Close releases any resources (no-op for in-memory store).
func (s *IdempotencyStore) Close() error {
	return nil
}
