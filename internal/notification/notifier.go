// Package notification delivers rainout updates: chat posts, in-app status
// upserts and no-change heartbeats.
package notification

import (
	"context"
	"log/slog"
	"time"

	"rainout-go/internal/domain"
	"rainout-go/internal/metrics"
)

// Notification kinds, also used as the queue message type header.
const (
	KindChatUpdate  = "chat_update"
	KindInAppStatus = "in_app_status"
	KindNoChange    = "no_change"
)

// Notifier sends rainout updates. An error means the update was not accepted
// and the caller must not treat the change as delivered.
type Notifier interface {
	PostChatUpdate(ctx context.Context, update *domain.ChatUpdate) error
	UpsertInAppStatus(ctx context.Context, status *domain.InAppStatus) error
	PostNoChangeUpdate(ctx context.Context, update *domain.NoChangeUpdate) error
}

// LogNotifier logs every update instead of delivering it.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a new logging notifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{
		logger: logger,
	}
}

// PostChatUpdate logs a chat update.
func (n *LogNotifier) PostChatUpdate(ctx context.Context, update *domain.ChatUpdate) error {
	n.logger.Info("chat update",
		"correlation_id", update.CorrelationID,
		"tenant_id", update.TenantID,
		"zip", update.Zip,
		"facility_id", update.FacilityID,
		"status", update.Status,
		"recipients", len(update.UserIDs),
		"message", update.Message,
	)
	metrics.NotificationsSentTotal.WithLabelValues(KindChatUpdate, "success").Inc()
	if !update.SentAt.IsZero() {
		metrics.DetectionToDeliveryLatency.Observe(time.Since(update.SentAt).Seconds())
	}
	return nil
}

// UpsertInAppStatus logs an in-app status upsert.
func (n *LogNotifier) UpsertInAppStatus(ctx context.Context, status *domain.InAppStatus) error {
	n.logger.Info("in-app status",
		"state_key", status.StateKey,
		"tenant_id", status.TenantID,
		"zip", status.Zip,
		"status", status.Status,
	)
	metrics.NotificationsSentTotal.WithLabelValues(KindInAppStatus, "success").Inc()
	return nil
}

// PostNoChangeUpdate logs a heartbeat at debug level.
func (n *LogNotifier) PostNoChangeUpdate(ctx context.Context, update *domain.NoChangeUpdate) error {
	n.logger.Debug("no rainout change",
		"correlation_id", update.CorrelationID,
		"tenant_id", update.TenantID,
		"zip", update.Zip,
		"events_seen", update.EventsSeen,
	)
	metrics.NotificationsSentTotal.WithLabelValues(KindNoChange, "success").Inc()
	return nil
}
