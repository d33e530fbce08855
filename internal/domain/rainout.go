package domain

import (
	"time"

	"github.com/google/uuid"
)

// RainoutState is the last processed snapshot for a state key. It is the
// comparison baseline for change detection on the next run.
type RainoutState struct {
	TenantID      string `json:"tenant_id"`
	Zip           string `json:"zip"`
	FacilityID    string `json:"facility_id,omitempty"`
	SourceEventID string `json:"source_event_id,omitempty"`
	Status        string `json:"status"`
	UpdatedAt     int64  `json:"updated_at"`

	// LastPollRunID is the run that committed this snapshot.
	LastPollRunID string `json:"last_poll_run_id"`

	// LastChangedAt is the run's clock (epoch millis) when the change was detected.
	LastChangedAt int64 `json:"last_changed_at"`
}

// RainoutEvent is the immutable record of one detected status change, carrying
// the matched subscribers for downstream fan-out.
type RainoutEvent struct {
	ID             string `json:"id"`
	RunID          string `json:"run_id"`
	CorrelationID  string `json:"correlation_id"`
	StateKey       string `json:"state_key"`
	IdempotencyKey string `json:"idempotency_key"`

	TenantID       string `json:"tenant_id"`
	Zip            string `json:"zip"`
	FacilityID     string `json:"facility_id,omitempty"`
	SourceEventID  string `json:"source_event_id,omitempty"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
	UpdatedAt      int64  `json:"updated_at"`

	SubscriptionIDs []string `json:"subscription_ids"`
	UserIDs         []string `json:"user_ids"`

	DetectedAt time.Time `json:"detected_at"`
}

// NewRainoutEvent builds a change record for a normalized source event.
func NewRainoutEvent(ev SourceEvent, prev *RainoutState, rc RunContext, stateKey, idempotencyKey string, subscriptionIDs, userIDs []string) *RainoutEvent {
	record := &RainoutEvent{
		ID:              uuid.New().String(),
		RunID:           rc.RunID,
		CorrelationID:   rc.CorrelationID,
		StateKey:        stateKey,
		IdempotencyKey:  idempotencyKey,
		TenantID:        ev.TenantID,
		Zip:             ev.Zip,
		FacilityID:      ev.FacilityID,
		SourceEventID:   ev.SourceEventID,
		Status:          ev.Status,
		UpdatedAt:       ev.UpdatedAt,
		SubscriptionIDs: subscriptionIDs,
		UserIDs:         userIDs,
		DetectedAt:      time.UnixMilli(rc.NowMs).UTC(),
	}
	if prev != nil {
		record.PreviousStatus = prev.Status
	}
	return record
}

// State returns the snapshot to persist once the event has been delivered.
func (e *RainoutEvent) State() *RainoutState {
	return &RainoutState{
		TenantID:      e.TenantID,
		Zip:           e.Zip,
		FacilityID:    e.FacilityID,
		SourceEventID: e.SourceEventID,
		Status:        e.Status,
		UpdatedAt:     e.UpdatedAt,
		LastPollRunID: e.RunID,
		LastChangedAt: e.DetectedAt.UnixMilli(),
	}
}

// RainoutEventFilter provides filtering options for listing change records.
type RainoutEventFilter struct {
	TenantID string
	Zip      string
	Limit    int
}
