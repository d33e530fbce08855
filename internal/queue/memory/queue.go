// Package memory provides an in-memory implementation of the queue interfaces
// for development and tests.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"rainout-go/internal/queue"
)

// ErrQueueClosed is returned when publishing to a closed queue.
var ErrQueueClosed = errors.New("queue is closed")

// Queue implements both queue.Producer and queue.Consumer on a buffered
// channel. It is safe for concurrent use.
type Queue struct {
	messages  chan *queue.Message
	closed    bool
	mu        sync.RWMutex
	wg        sync.WaitGroup
	logger    *slog.Logger
	published atomic.Int64
	failed    atomic.Int64
}

// NewQueue creates a new in-memory queue. Publish blocks once bufferSize
// messages are waiting.
func NewQueue(bufferSize int, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		messages: make(chan *queue.Message, bufferSize),
		logger:   logger,
	}
}

// Publish sends a message to the in-memory queue.
func (q *Queue) Publish(ctx context.Context, msg *queue.Message) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.messages <- msg:
		q.published.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start consumes messages until the context is canceled or the queue is closed.
// Handler failures are logged and the message is dropped.
func (q *Queue) Start(ctx context.Context, handler queue.MessageHandler) error {
	q.wg.Add(1)
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-q.messages:
			if !ok {
				return nil
			}
			if err := handler(ctx, msg); err != nil {
				q.failed.Add(1)
				q.logger.Error("failed to process message",
					"type", msg.Type(),
					"key", string(msg.Key),
					"error", err,
				)
			}
		}
	}
}

// Close shuts down the queue. Consumers drain what is buffered and return.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.messages)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

// Len returns the current number of buffered messages.
func (q *Queue) Len() int {
	return len(q.messages)
}

// Published returns how many messages were accepted.
func (q *Queue) Published() int64 {
	return q.published.Load()
}

// Failed returns how many messages the handler rejected.
func (q *Queue) Failed() int64 {
	return q.failed.Load()
}
