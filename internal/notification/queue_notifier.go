package notification

import (
	"context"
	"fmt"

	"rainout-go/internal/domain"
	"rainout-go/internal/metrics"
	"rainout-go/internal/queue"
)

// QueueNotifier publishes updates to a queue for asynchronous delivery.
// Messages are keyed by tenant:zip so one target's updates stay ordered.
type QueueNotifier struct {
	producer queue.Producer
}

// NewQueueNotifier creates a notifier publishing through producer.
func NewQueueNotifier(producer queue.Producer) *QueueNotifier {
	return &QueueNotifier{producer: producer}
}

// PostChatUpdate publishes a chat update.
func (n *QueueNotifier) PostChatUpdate(ctx context.Context, update *domain.ChatUpdate) error {
	return n.publish(ctx, update.TenantID, update.Zip, KindChatUpdate, update)
}

// UpsertInAppStatus publishes an in-app status upsert.
func (n *QueueNotifier) UpsertInAppStatus(ctx context.Context, status *domain.InAppStatus) error {
	return n.publish(ctx, status.TenantID, status.Zip, KindInAppStatus, status)
}

// PostNoChangeUpdate publishes a heartbeat.
func (n *QueueNotifier) PostNoChangeUpdate(ctx context.Context, update *domain.NoChangeUpdate) error {
	return n.publish(ctx, update.TenantID, update.Zip, KindNoChange, update)
}

func (n *QueueNotifier) publish(ctx context.Context, tenantID, zip, kind string, payload any) error {
	msg, err := queue.NewJSONMessage(tenantID+":"+zip, kind, payload)
	if err != nil {
		return err
	}

	err = n.producer.Publish(ctx, msg)
	metrics.NotificationsSentTotal.WithLabelValues(kind, metrics.Status(err)).Inc()
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", kind, err)
	}
	return nil
}
