// Package domain contains the core business entities and value objects for the
// rainout notification service.
package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Subscription errors.
var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrEmptyTenantID        = errors.New("tenant_id is required")
	ErrInvalidZip           = errors.New("zip must contain at least 5 digits")
)

// Subscription is a user's interest in rainout alerts for a zip code,
// optionally narrowed to a single facility.
type Subscription struct {
	// ID is the unique identifier for this subscription.
	ID string `json:"id"`

	// TenantID identifies the organization (league, club) the user belongs to.
	TenantID string `json:"tenant_id" validate:"required"`

	// UserID is the subscribing user.
	UserID string `json:"user_id"`

	// Zip is the raw postal code as entered. It is normalized on use.
	Zip string `json:"zip" validate:"required"`

	// FacilityID narrows the subscription to one facility. When empty the
	// subscriber matches every facility in the zip.
	FacilityID string `json:"facility_id,omitempty"`

	// Enabled is nil for subscriptions created before the flag existed;
	// those count as enabled.
	Enabled *bool `json:"enabled,omitempty"`

	// CreatedAt is when the subscription was registered.
	CreatedAt time.Time `json:"created_at"`
}

// IsEnabled reports whether the subscription takes part in polling.
func (s *Subscription) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// CreateSubscriptionRequest is the input for registering a subscription.
type CreateSubscriptionRequest struct {
	TenantID   string `json:"tenant_id" validate:"required,max=128"`
	UserID     string `json:"user_id" validate:"required,max=128"`
	Zip        string `json:"zip" validate:"required,max=16"`
	FacilityID string `json:"facility_id" validate:"max=128"`
	Enabled    *bool  `json:"enabled"`
}

// ToSubscription converts the request into a new Subscription with a fresh ID.
func (r *CreateSubscriptionRequest) ToSubscription() *Subscription {
	return &Subscription{
		ID:         uuid.New().String(),
		TenantID:   strings.TrimSpace(r.TenantID),
		UserID:     strings.TrimSpace(r.UserID),
		Zip:        strings.TrimSpace(r.Zip),
		FacilityID: strings.TrimSpace(r.FacilityID),
		Enabled:    r.Enabled,
		CreatedAt:  time.Now().UTC(),
	}
}

// SubscriptionFilter provides filtering options for listing subscriptions.
type SubscriptionFilter struct {
	TenantID    string
	EnabledOnly bool
}

// Matches reports whether the subscription passes the filter.
func (f SubscriptionFilter) Matches(s *Subscription) bool {
	if f.TenantID != "" && strings.TrimSpace(s.TenantID) != f.TenantID {
		return false
	}
	if f.EnabledOnly && !s.IsEnabled() {
		return false
	}
	return true
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}
