package domain

// PollTarget is a unique (tenant, zip) pair fetched once per run. It aggregates
// every subscription that shares the pair.
type PollTarget struct {
	TenantID        string   `json:"tenant_id"`
	Zip             string   `json:"zip"`
	SubscriberCount int      `json:"subscriber_count"`
	SubscriptionIDs []string `json:"subscription_ids"`
}

// Key returns the "tenant::zip" identifier of the target.
func (t PollTarget) Key() string {
	return t.TenantID + "::" + t.Zip
}

// SourceEvent is a facility status observation returned by an upstream
// source for a poll target. It is produced fresh on every run.
type SourceEvent struct {
	// ID is the upstream record id, used when SourceEventID is absent.
	ID string `json:"id,omitempty"`

	TenantID      string `json:"tenant_id"`
	Zip           string `json:"zip"`
	FacilityID    string `json:"facility_id,omitempty"`
	SourceEventID string `json:"source_event_id,omitempty"`

	// Status is compared case-insensitively ("open", "closed", "delayed").
	Status string `json:"status"`

	// UpdatedAt is the upstream's monotonic update counter (epoch millis in
	// practice). A strictly greater value marks a new observation.
	UpdatedAt int64 `json:"updated_at"`
}

// RunContext identifies the run and target a collaborator call belongs to.
type RunContext struct {
	RunID         string `json:"run_id"`
	CorrelationID string `json:"correlation_id"`
	NowMs         int64  `json:"now_ms"`
}
