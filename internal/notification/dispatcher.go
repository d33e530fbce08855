package notification

import (
	"context"
	"fmt"

	"rainout-go/internal/domain"
	"rainout-go/internal/metrics"
	"rainout-go/internal/queue"
)

// Dispatcher consumes queued updates and hands them to a delivery notifier.
// In-app statuses are also projected onto the status board.
type Dispatcher struct {
	consumer queue.Consumer
	delivery Notifier
	board    *StatusBoard
}

// NewDispatcher creates a dispatcher. board may be nil.
func NewDispatcher(consumer queue.Consumer, delivery Notifier, board *StatusBoard) *Dispatcher {
	return &Dispatcher{
		consumer: consumer,
		delivery: delivery,
		board:    board,
	}
}

// Start blocks consuming until ctx is canceled or the queue closes.
func (d *Dispatcher) Start(ctx context.Context) error {
	return d.consumer.Start(ctx, d.Handle)
}

// Handle delivers a single queued update.
func (d *Dispatcher) Handle(ctx context.Context, msg *queue.Message) error {
	kind := msg.Type()
	err := d.handle(ctx, kind, msg)
	metrics.NotificationsDeliveredTotal.WithLabelValues(kind, metrics.Status(err)).Inc()
	return err
}

func (d *Dispatcher) handle(ctx context.Context, kind string, msg *queue.Message) error {
	switch kind {
	case KindChatUpdate:
		var update domain.ChatUpdate
		if err := msg.Decode(&update); err != nil {
			return err
		}
		return d.delivery.PostChatUpdate(ctx, &update)

	case KindInAppStatus:
		var status domain.InAppStatus
		if err := msg.Decode(&status); err != nil {
			return err
		}
		if d.board != nil {
			d.board.Upsert(&status)
		}
		return d.delivery.UpsertInAppStatus(ctx, &status)

	case KindNoChange:
		var update domain.NoChangeUpdate
		if err := msg.Decode(&update); err != nil {
			return err
		}
		return d.delivery.PostNoChangeUpdate(ctx, &update)

	default:
		return fmt.Errorf("unknown notification type %q", kind)
	}
}
