package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"rainout-go/internal/queue"
)

func TestQueue_PublishAndConsume(t *testing.T) {
	q := NewQueue(10, nil)
	ctx := context.Background()

	for _, kind := range []string{"chat_update", "in_app_status", "no_change"} {
		msg, err := queue.NewJSONMessage("t1:20176", kind, map[string]string{"zip": "20176"})
		if err != nil {
			t.Fatalf("NewJSONMessage() error = %v", err)
		}
		if err := q.Publish(ctx, msg); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if q.Len() != 3 || q.Published() != 3 {
		t.Fatalf("Len() = %d, Published() = %d, want 3", q.Len(), q.Published())
	}

	var (
		mu    sync.Mutex
		kinds []string
	)
	done := make(chan error, 1)
	go func() {
		done <- q.Start(ctx, func(ctx context.Context, msg *queue.Message) error {
			mu.Lock()
			defer mu.Unlock()
			kinds = append(kinds, msg.Type())
			if msg.Type() == "no_change" {
				return errors.New("rejected")
			}
			return nil
		})
	}()

	deadline := time.After(2 * time.Second)
	for q.Len() > 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for consumer")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(kinds) != 3 || kinds[0] != "chat_update" || kinds[2] != "no_change" {
		t.Errorf("consumed kinds = %v", kinds)
	}
	if q.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", q.Failed())
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(1, nil)
	_ = q.Close()

	msg := &queue.Message{Key: []byte("k")}
	if err := q.Publish(context.Background(), msg); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Publish() after Close error = %v, want ErrQueueClosed", err)
	}
}

func TestQueue_PublishRespectsContext(t *testing.T) {
	q := NewQueue(1, nil)
	ctx, cancel := context.WithCancel(context.Background())

	_ = q.Publish(ctx, &queue.Message{Key: []byte("a")})
	cancel()

	if err := q.Publish(ctx, &queue.Message{Key: []byte("b")}); !errors.Is(err, context.Canceled) {
		t.Errorf("Publish() on full queue error = %v, want context.Canceled", err)
	}
}
