package store

import (
	"context"

	"rainout-go/internal/domain"
)

// SubscriptionRepository defines the interface for subscription persistence.
type SubscriptionRepository interface {
	// Create stores a new subscription.
	Create(ctx context.Context, sub *domain.Subscription) error

	// Delete removes a subscription by ID.
	Delete(ctx context.Context, id string) error

	// GetByID retrieves a subscription by its ID.
	GetByID(ctx context.Context, id string) (*domain.Subscription, error)

	// List retrieves subscriptions matching the filter, oldest first.
	List(ctx context.Context, filter domain.SubscriptionFilter) ([]domain.Subscription, error)
}

// RainoutEventRepository defines the interface for the immutable change log.
type RainoutEventRepository interface {
	// Create appends a change record.
	Create(ctx context.Context, event *domain.RainoutEvent) error

	// List retrieves change records matching the filter, newest first.
	List(ctx context.Context, filter domain.RainoutEventFilter) ([]*domain.RainoutEvent, error)
}

// AuditLogRepository defines the interface for per-target audit records.
type AuditLogRepository interface {
	// Write appends an audit record.
	Write(ctx context.Context, record *domain.AuditRecord) error

	// List retrieves audit records matching the filter, newest first.
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditRecord, error)
}
