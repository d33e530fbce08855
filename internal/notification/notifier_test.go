package notification

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"rainout-go/internal/domain"
	"rainout-go/internal/queue"
	memqueue "rainout-go/internal/queue/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingNotifier captures deliveries.
type recordingNotifier struct {
	mu       sync.Mutex
	chats    []*domain.ChatUpdate
	statuses []*domain.InAppStatus
	noChange []*domain.NoChangeUpdate
}

func (r *recordingNotifier) PostChatUpdate(ctx context.Context, u *domain.ChatUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats = append(r.chats, u)
	return nil
}

func (r *recordingNotifier) UpsertInAppStatus(ctx context.Context, s *domain.InAppStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, s)
	return nil
}

func (r *recordingNotifier) PostNoChangeUpdate(ctx context.Context, u *domain.NoChangeUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.noChange = append(r.noChange, u)
	return nil
}

type failingProducer struct{}

func (failingProducer) Publish(ctx context.Context, msg *queue.Message) error {
	return errors.New("broker unavailable")
}

func (failingProducer) Close() error { return nil }

func sampleEvent() *domain.RainoutEvent {
	return &domain.RainoutEvent{
		ID:             "evt-1",
		RunID:          "run-1",
		CorrelationID:  "run-1:t1:20176",
		StateKey:       "t1::src-1",
		TenantID:       "t1",
		Zip:            "20176",
		FacilityID:     "field-7",
		SourceEventID:  "src-1",
		Status:         "closed",
		PreviousStatus: "open",
		UpdatedAt:      2000,
		UserIDs:        []string{"u1"},
		DetectedAt:     time.UnixMilli(1_700_000_000_000).UTC(),
	}
}

func TestQueueNotifier_PublishesKeyedMessages(t *testing.T) {
	q := memqueue.NewQueue(10, testLogger())
	n := NewQueueNotifier(q)
	ctx := context.Background()
	ev := sampleEvent()

	if err := n.PostChatUpdate(ctx, domain.NewChatUpdate(ev)); err != nil {
		t.Fatalf("PostChatUpdate() error = %v", err)
	}
	if err := n.UpsertInAppStatus(ctx, domain.NewInAppStatus(ev)); err != nil {
		t.Fatalf("UpsertInAppStatus() error = %v", err)
	}
	if err := n.PostNoChangeUpdate(ctx, &domain.NoChangeUpdate{TenantID: "t1", Zip: "20176"}); err != nil {
		t.Fatalf("PostNoChangeUpdate() error = %v", err)
	}
	if q.Published() != 3 {
		t.Fatalf("Published() = %d, want 3", q.Published())
	}

	rec := &recordingNotifier{}
	board := NewStatusBoard()
	d := NewDispatcher(q, rec, board)

	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()
	for q.Len() > 0 {
		time.Sleep(5 * time.Millisecond)
	}
	_ = q.Close()
	if err := <-done; err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.chats) != 1 || rec.chats[0].Message != "Rainout update: Facility field-7 (20176) changed from open to closed." {
		t.Errorf("chats = %+v", rec.chats)
	}
	if len(rec.statuses) != 1 || len(rec.noChange) != 1 {
		t.Errorf("statuses = %d, noChange = %d", len(rec.statuses), len(rec.noChange))
	}
	if got := board.List("t1"); len(got) != 1 || got[0].Status != "closed" {
		t.Errorf("board.List() = %+v", got)
	}
}

func TestQueueNotifier_PublishFailure(t *testing.T) {
	n := NewQueueNotifier(failingProducer{})
	err := n.PostChatUpdate(context.Background(), domain.NewChatUpdate(sampleEvent()))
	if err == nil {
		t.Fatal("expected publish error")
	}
}

func TestDispatcher_UnknownType(t *testing.T) {
	d := NewDispatcher(nil, &recordingNotifier{}, nil)
	msg := &queue.Message{Value: []byte(`{}`), Headers: map[string]string{queue.HeaderType: "fax"}}
	if err := d.Handle(context.Background(), msg); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestDispatcher_BadPayload(t *testing.T) {
	d := NewDispatcher(nil, &recordingNotifier{}, nil)
	msg := &queue.Message{Value: []byte(`not json`), Headers: map[string]string{queue.HeaderType: KindChatUpdate}}
	if err := d.Handle(context.Background(), msg); err == nil {
		t.Error("expected decode error")
	}
}

func TestStatusBoard_IgnoresOlderUpdates(t *testing.T) {
	b := NewStatusBoard()

	if !b.Upsert(&domain.InAppStatus{StateKey: "t1::a", TenantID: "t1", Zip: "20176", Status: "closed", UpdatedAt: 2000}) {
		t.Fatal("first upsert rejected")
	}
	if b.Upsert(&domain.InAppStatus{StateKey: "t1::a", TenantID: "t1", Zip: "20176", Status: "open", UpdatedAt: 1000}) {
		t.Error("older upsert accepted")
	}
	b.Upsert(&domain.InAppStatus{StateKey: "t2::b", TenantID: "t2", Zip: "10001", Status: "open", UpdatedAt: 1})

	if got := b.List("t1"); len(got) != 1 || got[0].Status != "closed" {
		t.Errorf("List(t1) = %+v", got)
	}
	if got := b.List(""); len(got) != 2 || got[0].Zip != "10001" {
		t.Errorf("List() = %+v", got)
	}
}

func TestLogNotifier_AcceptsEverything(t *testing.T) {
	n := NewLogNotifier(testLogger())
	ctx := context.Background()
	ev := sampleEvent()

	if err := n.PostChatUpdate(ctx, domain.NewChatUpdate(ev)); err != nil {
		t.Error(err)
	}
	if err := n.UpsertInAppStatus(ctx, domain.NewInAppStatus(ev)); err != nil {
		t.Error(err)
	}
	if err := n.PostNoChangeUpdate(ctx, &domain.NoChangeUpdate{}); err != nil {
		t.Error(err)
	}
}
