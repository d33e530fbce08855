package domain

import "time"

// ChatUpdate is posted to the tenant's team chat when a facility status changes.
type ChatUpdate struct {
	RunID          string    `json:"run_id"`
	CorrelationID  string    `json:"correlation_id"`
	EventID        string    `json:"event_id"`
	TenantID       string    `json:"tenant_id"`
	Zip            string    `json:"zip"`
	FacilityID     string    `json:"facility_id,omitempty"`
	SourceEventID  string    `json:"source_event_id,omitempty"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previous_status,omitempty"`
	UpdatedAt      int64     `json:"updated_at"`
	UserIDs        []string  `json:"user_ids"`
	Message        string    `json:"message"`
	SentAt         time.Time `json:"sent_at"`
}

// InAppStatus is the upserted per-facility banner shown to subscribers in the app.
type InAppStatus struct {
	StateKey      string   `json:"state_key"`
	TenantID      string   `json:"tenant_id"`
	Zip           string   `json:"zip"`
	FacilityID    string   `json:"facility_id,omitempty"`
	SourceEventID string   `json:"source_event_id,omitempty"`
	Status        string   `json:"status"`
	UpdatedAt     int64    `json:"updated_at"`
	UserIDs       []string `json:"user_ids"`
	RunID         string   `json:"run_id"`
}

// NoChangeUpdate is the heartbeat emitted for a target that was polled
// without any detected change.
type NoChangeUpdate struct {
	RunID           string    `json:"run_id"`
	CorrelationID   string    `json:"correlation_id"`
	TenantID        string    `json:"tenant_id"`
	Zip             string    `json:"zip"`
	SubscriberCount int       `json:"subscriber_count"`
	EventsSeen      int       `json:"events_seen"`
	PolledAt        time.Time `json:"polled_at"`
}

// NewChatUpdate renders the chat payload for a change record.
func NewChatUpdate(e *RainoutEvent) *ChatUpdate {
	return &ChatUpdate{
		RunID:          e.RunID,
		CorrelationID:  e.CorrelationID,
		EventID:        e.ID,
		TenantID:       e.TenantID,
		Zip:            e.Zip,
		FacilityID:     e.FacilityID,
		SourceEventID:  e.SourceEventID,
		Status:         e.Status,
		PreviousStatus: e.PreviousStatus,
		UpdatedAt:      e.UpdatedAt,
		UserIDs:        e.UserIDs,
		Message:        chatMessage(e),
		SentAt:         e.DetectedAt,
	}
}

// NewInAppStatus renders the in-app status payload for a change record.
func NewInAppStatus(e *RainoutEvent) *InAppStatus {
	return &InAppStatus{
		StateKey:      e.StateKey,
		TenantID:      e.TenantID,
		Zip:           e.Zip,
		FacilityID:    e.FacilityID,
		SourceEventID: e.SourceEventID,
		Status:        e.Status,
		UpdatedAt:     e.UpdatedAt,
		UserIDs:       e.UserIDs,
		RunID:         e.RunID,
	}
}

func chatMessage(e *RainoutEvent) string {
	where := "Fields in " + e.Zip
	if e.FacilityID != "" {
		where = "Facility " + e.FacilityID + " (" + e.Zip + ")"
	}
	if e.PreviousStatus != "" && e.PreviousStatus != e.Status {
		return "Rainout update: " + where + " changed from " + e.PreviousStatus + " to " + e.Status + "."
	}
	return "Rainout update: " + where + " is " + e.Status + "."
}
