package domain

// SkipReason explains why a run did no work.
type SkipReason string

const (
	SkipFeatureDisabled SkipReason = "feature_disabled"
	SkipNotOnBoundary   SkipReason = "not_on_boundary"
)

// RunResult is the aggregate outcome of one polling run.
type RunResult struct {
	RunID           string `json:"run_id"`
	IntervalMinutes int    `json:"interval_minutes"`
	NextPollAtMs    int64  `json:"next_poll_at_ms"`

	ProcessedTargets        int `json:"processed_targets"`
	GuardrailSkippedTargets int `json:"guardrail_skipped_targets"`
	FailedTargets           int `json:"failed_targets"`
	ChangedEvents           int `json:"changed_events"`
	SkippedUnchangedEvents  int `json:"skipped_unchanged_events"`
	NotificationsSent       int `json:"notifications_sent"`

	// ErrorClasses is sorted and free of duplicates.
	ErrorClasses []string `json:"error_classes"`

	// SkippedReason is nil when the run executed.
	SkippedReason *SkipReason `json:"skipped_reason"`
}

// Skipped reports whether the run short-circuited.
func (r *RunResult) Skipped() bool {
	return r.SkippedReason != nil
}
