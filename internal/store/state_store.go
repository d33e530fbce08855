// Package store defines interfaces for data persistence and state management.
// These abstractions allow swapping implementations (Redis, PostgreSQL, in-memory)
// without changing business logic.
package store

import (
	"context"
	"time"

	"rainout-go/internal/domain"
)

// StateStore holds the last processed rainout snapshot per state key.
// All methods must be safe for concurrent use.
type StateStore interface {
	// GetState retrieves the snapshot for a state key.
	// Returns nil, nil if nothing has been committed for the key.
	GetState(ctx context.Context, stateKey string) (*domain.RainoutState, error)

	// SetState stores or replaces the snapshot for a state key.
	SetState(ctx context.Context, stateKey string, state *domain.RainoutState) error

	// Close releases any resources held by the store.
	Close() error
}

// IdempotencyStore remembers which observed changes were fully delivered.
// All methods must be safe for concurrent use.
type IdempotencyStore interface {
	// IsProcessed reports whether the key was marked.
	IsProcessed(ctx context.Context, key string) (bool, error)

	// MarkProcessed records the key. A zero ttl keeps it forever.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) error

	// Close releases any resources held by the store.
	Close() error
}
