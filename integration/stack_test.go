package integration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"rainout-go/internal/api"
	"rainout-go/internal/config"
	"rainout-go/internal/domain"
	"rainout-go/internal/notification"
	"rainout-go/internal/polling"
	memoryqueue "rainout-go/internal/queue/memory"
	"rainout-go/internal/source"
	memorystor "rainout-go/internal/store/memory"
)

// boundary is 2026-04-01T18:30:00Z, aligned to a 30 minute interval.
var boundary = time.Date(2026, 4, 1, 18, 30, 0, 0, time.UTC)

// stack is a fully wired in-process poller.
type stack struct {
	logger *slog.Logger

	static   *source.StaticFetcher
	failing  map[string]error
	state    *memorystor.StateStore
	idem     *memorystor.IdempotencyStore
	subs     *memorystor.SubscriptionRepository
	events   *memorystor.RainoutEventRepository
	audit    *memorystor.AuditLogRepository
	queue    *memoryqueue.Queue
	board    *notification.StatusBoard
	notifier *recordingNotifier

	executor *polling.Executor
	service  *polling.Service
	server   *api.Server

	cancel context.CancelFunc
	done   chan struct{}
}

func newStack() *stack {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := &stack{
		logger:  logger,
		static:  source.NewStaticFetcher(nil),
		failing: map[string]error{},
		state:   memorystor.NewStateStore(),
		idem:    memorystor.NewIdempotencyStore(),
		subs:    memorystor.NewSubscriptionRepository(),
		events:  memorystor.NewRainoutEventRepository(),
		audit:   memorystor.NewAuditLogRepository(),
		queue:   memoryqueue.NewQueue(1000, logger),
		board:   notification.NewStatusBoard(),
	}
	s.notifier = &recordingNotifier{next: notification.NewQueueNotifier(s.queue)}

	fetcher := polling.FetcherFunc(func(ctx context.Context, target domain.PollTarget, rc domain.RunContext) ([]domain.SourceEvent, error) {
		if err, ok := s.failing[target.Key()]; ok {
			return nil, err
		}
		return s.static.FetchSourceEvents(ctx, target, rc)
	})

	s.executor = polling.NewExecutor(polling.Instrument(polling.Ports{
		Fetcher:     fetcher,
		State:       s.state,
		Idempotency: s.idem,
		Events:      s.events,
		Notifier:    s.notifier,
		Audit:       s.audit,
	}), logger)
	s.service = polling.NewService(s.executor, s.subs, polling.ServiceConfig{
		Run:        polling.RunConfig{MaxZipsPerTenant: 50},
		RunTimeout: 10 * time.Second,
	}, logger)
	s.server = api.NewServer(api.ServerDeps{
		Config:              &config.ServerConfig{Host: "127.0.0.1", Port: 8080},
		Logger:              logger,
		RunHandler:          api.NewRunHandler(s.service, logger),
		SubscriptionHandler: api.NewSubscriptionHandler(s.subs, logger),
		HistoryHandler:      api.NewHistoryHandler(s.events, s.audit, s.board, logger),
	})

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	dispatcher := notification.NewDispatcher(s.queue, notification.NewLogNotifier(logger), s.board)
	go func() {
		defer close(s.done)
		_ = dispatcher.Start(ctx)
	}()

	return s
}

func (s *stack) stop() {
	s.cancel()
	<-s.done
	_ = s.queue.Close()
}

// subscribe registers an enabled subscription directly in the repository.
func (s *stack) subscribe(id, tenantID, userID, zip string) {
	_ = s.subs.Create(context.Background(), &domain.Subscription{
		ID:        id,
		TenantID:  tenantID,
		UserID:    userID,
		Zip:       zip,
		CreatedAt: time.Now().UTC(),
	})
}

func (s *stack) subscriptions() []domain.Subscription {
	subs, _ := s.subs.List(context.Background(), domain.SubscriptionFilter{})
	return subs
}

// run executes one run at now against the current subscriptions.
func (s *stack) run(now time.Time, cfg polling.RunConfig) *domain.RunResult {
	return s.executor.Execute(context.Background(), polling.Request{
		NowMs:         now.UnixMilli(),
		Config:        cfg,
		Subscriptions: s.subscriptions(),
	})
}

// recordingNotifier counts notifier calls and can fail chat posts before
// forwarding to the next notifier.
type recordingNotifier struct {
	next notification.Notifier

	mu        sync.Mutex
	chatErr   error
	chats     []domain.ChatUpdate
	statuses  []domain.InAppStatus
	noChanges []domain.NoChangeUpdate
}

var errChatDown = errors.New("chat-down")

func (n *recordingNotifier) failChat(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.chatErr = err
}

func (n *recordingNotifier) PostChatUpdate(ctx context.Context, update *domain.ChatUpdate) error {
	n.mu.Lock()
	if n.chatErr != nil {
		err := n.chatErr
		n.mu.Unlock()
		return err
	}
	n.chats = append(n.chats, *update)
	n.mu.Unlock()
	return n.next.PostChatUpdate(ctx, update)
}

func (n *recordingNotifier) UpsertInAppStatus(ctx context.Context, status *domain.InAppStatus) error {
	n.mu.Lock()
	n.statuses = append(n.statuses, *status)
	n.mu.Unlock()
	return n.next.UpsertInAppStatus(ctx, status)
}

func (n *recordingNotifier) PostNoChangeUpdate(ctx context.Context, update *domain.NoChangeUpdate) error {
	n.mu.Lock()
	n.noChanges = append(n.noChanges, *update)
	n.mu.Unlock()
	return n.next.PostNoChangeUpdate(ctx, update)
}

func (n *recordingNotifier) chatCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.chats)
}

func (n *recordingNotifier) chatsFor(tenantID, zip string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, c := range n.chats {
		if c.TenantID == tenantID && c.Zip == zip {
			count++
		}
	}
	return count
}
