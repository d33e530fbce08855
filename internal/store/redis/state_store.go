// Package redis provides Redis-based implementations of the store interfaces.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rainout-go/internal/config"
	"rainout-go/internal/domain"
)

// Key prefixes for different data types in Redis.
const (
	prefixState       = "rainout:state:"
	prefixIdempotency = "rainout:idem:"
)

// StateStore implements store.StateStore and store.IdempotencyStore using Redis.
type StateStore struct {
	client *redis.Client
}

// NewStateStore creates a new Redis-backed state store.
func NewStateStore(cfg *config.RedisConfig) (*StateStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewStateStoreWithClient(client), nil
}

// NewStateStoreWithClient wraps an existing client.
func NewStateStoreWithClient(client *redis.Client) *StateStore {
	return &StateStore{client: client}
}

// --- Rainout State Operations ---

func stateKey(key string) string {
	return prefixState + key
}

// GetState retrieves the snapshot for a state key.
func (s *StateStore) GetState(ctx context.Context, key string) (*domain.RainoutState, error) {
	data, err := s.client.Get(ctx, stateKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get rainout state: %w", err)
	}

	var state domain.RainoutState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rainout state: %w", err)
	}

	return &state, nil
}

// SetState stores or replaces the snapshot for a state key.
func (s *StateStore) SetState(ctx context.Context, key string, state *domain.RainoutState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal rainout state: %w", err)
	}

	// No TTL for state - it is the baseline for every future run
	if err := s.client.Set(ctx, stateKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set rainout state: %w", err)
	}

	return nil
}

// --- Idempotency Operations ---

func idempotencyKey(key string) string {
	return prefixIdempotency + key
}

// IsProcessed reports whether the idempotency key has been marked.
func (s *StateStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, idempotencyKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check idempotency key: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed records the idempotency key. A zero ttl keeps it forever.
func (s *StateStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) error {
	marked := time.Now().UTC().Format(time.RFC3339)
	if err := s.client.Set(ctx, idempotencyKey(key), marked, ttl).Err(); err != nil {
		return fmt.Errorf("failed to mark idempotency key: %w", err)
	}
	return nil
}

// --- Lifecycle ---

// Ping checks connectivity.
func (s *StateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (s *StateStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
