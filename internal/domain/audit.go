package domain

import "time"

// AuditStatus is the outcome of one target within a run.
type AuditStatus string

const (
	AuditStatusOK    AuditStatus = "ok"
	AuditStatusError AuditStatus = "error"
)

// AuditRecord is written once per processed target.
type AuditRecord struct {
	ID            string      `json:"id"`
	RunID         string      `json:"run_id"`
	CorrelationID string      `json:"correlation_id"`
	TenantID      string      `json:"tenant_id"`
	Zip           string      `json:"zip"`
	Status        AuditStatus `json:"status"`
	ErrorClass    string      `json:"error_class,omitempty"`

	EventsSeen             int `json:"events_seen"`
	ChangedEvents          int `json:"changed_events"`
	SkippedUnchangedEvents int `json:"skipped_unchanged_events"`
	NotificationsSent      int `json:"notifications_sent"`

	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditFilter provides filtering options for listing audit records.
type AuditFilter struct {
	TenantID string
	RunID    string
	Limit    int
}
