// Package main is the entry point for the rainout polling service.
// It wires storage, the status source, notification delivery, the polling
// scheduler and the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"rainout-go/internal/api"
	"rainout-go/internal/banner"
	"rainout-go/internal/config"
	"rainout-go/internal/notification"
	"rainout-go/internal/polling"
	"rainout-go/internal/queue"
	kafkaqueue "rainout-go/internal/queue/kafka"
	memoryqueue "rainout-go/internal/queue/memory"
	"rainout-go/internal/scheduler"
	"rainout-go/internal/source"
	"rainout-go/internal/store"
	memorystor "rainout-go/internal/store/memory"
	postgresstor "rainout-go/internal/store/postgres"
	redisstor "rainout-go/internal/store/redis"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err, "path", *configPath)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	banner.Print(os.Stdout, string(cfg.Storage.Mode), cfg.Source.Mode)
	logger.Info("configuration loaded",
		"path", *configPath,
		"storage_mode", cfg.Storage.Mode,
		"source_mode", cfg.Source.Mode,
		"notification_mode", cfg.Notification.Mode,
		"polling_enabled", cfg.Polling.IsEnabled(),
	)

	deps, cleanup, err := initDependencies(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if deps.dispatcher != nil {
		go func() {
			if err := deps.dispatcher.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("dispatcher error", "error", err)
				cancel()
			}
		}()
	}

	if err := deps.scheduler.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	go func() {
		if err := deps.server.Start(); err != nil {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	logger.Info("rainout poller started",
		"address", cfg.Server.Address(),
		"tick_schedule", cfg.Polling.TickSchedule,
		"interval_minutes", cfg.Polling.IntervalMinutes,
	)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	deps.scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer shutdownCancel()

	if err := deps.server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("rainout poller stopped")
}

// dependencies holds all initialized service dependencies.
type dependencies struct {
	server     *api.Server
	scheduler  *scheduler.Scheduler
	dispatcher *notification.Dispatcher
}

// initDependencies creates and wires all service dependencies based on config.
// Returns the dependencies and a cleanup function.
func initDependencies(cfg *config.Config, logger *slog.Logger) (*dependencies, func(), error) {
	var (
		stateStore       store.StateStore
		idempotencyStore store.IdempotencyStore
		subscriptionRepo store.SubscriptionRepository
		eventRepo        store.RainoutEventRepository
		auditRepo        store.AuditLogRepository
		producer         queue.Producer
		consumer         queue.Consumer
		cleanupFuncs     []func()
	)

	cleanup := func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			cleanupFuncs[i]()
		}
	}

	if cfg.Storage.UseMemory() {
		logger.Info("initializing in-memory storage")

		memStateStore := memorystor.NewStateStore()
		stateStore = memStateStore
		cleanupFuncs = append(cleanupFuncs, func() { _ = memStateStore.Close() })

		memIdempotency := memorystor.NewIdempotencyStore()
		idempotencyStore = memIdempotency
		cleanupFuncs = append(cleanupFuncs, func() { _ = memIdempotency.Close() })

		subscriptionRepo = memorystor.NewSubscriptionRepository()
		eventRepo = memorystor.NewRainoutEventRepository()
		auditRepo = memorystor.NewAuditLogRepository()

		memQueue := memoryqueue.NewQueue(10000, logger)
		producer = memQueue
		consumer = memQueue
		cleanupFuncs = append(cleanupFuncs, func() { _ = memQueue.Close() })
	} else {
		logger.Info("initializing production storage (Kafka, Redis, PostgreSQL)")

		ctx := context.Background()
		db, err := postgresstor.NewDB(ctx, &cfg.Postgres)
		if err != nil {
			return nil, func() {}, err
		}
		cleanupFuncs = append(cleanupFuncs, db.Close)

		if err := db.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, func() {}, err
		}
		logger.Info("database migrations completed")

		subscriptionRepo = postgresstor.NewSubscriptionRepository(db)
		eventRepo = postgresstor.NewRainoutEventRepository(db)
		auditRepo = postgresstor.NewAuditLogRepository(db)

		redisStore, err := redisstor.NewStateStore(&cfg.Redis)
		if err != nil {
			cleanup()
			return nil, func() {}, err
		}
		stateStore = redisStore
		idempotencyStore = redisStore
		cleanupFuncs = append(cleanupFuncs, func() { _ = redisStore.Close() })

		kafkaProducer := kafkaqueue.NewProducer(&cfg.Kafka)
		producer = kafkaProducer
		cleanupFuncs = append(cleanupFuncs, func() { _ = kafkaProducer.Close() })

		kafkaConsumer := kafkaqueue.NewConsumer(&cfg.Kafka, logger)
		consumer = kafkaConsumer
		cleanupFuncs = append(cleanupFuncs, func() { _ = kafkaConsumer.Close() })
	}

	fetcher, err := newFetcher(&cfg.Source, logger)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}

	// Chat and in-app updates either go through the queue to the dispatcher,
	// or straight to the log notifier.
	delivery := notification.NewLogNotifier(logger)
	board := notification.NewStatusBoard()
	var (
		notifier   notification.Notifier = delivery
		dispatcher *notification.Dispatcher
	)
	if cfg.Notification.Mode == config.NotificationModeQueue {
		notifier = notification.NewQueueNotifier(producer)
		dispatcher = notification.NewDispatcher(consumer, delivery, board)
	}

	ports := polling.Instrument(polling.Ports{
		Fetcher:     fetcher,
		State:       stateStore,
		Idempotency: idempotencyStore,
		Events:      eventRepo,
		Notifier:    notifier,
		Audit:       auditRepo,
	})
	executor := polling.NewExecutor(ports, logger)

	service := polling.NewService(executor, subscriptionRepo, polling.ServiceConfig{
		Run: polling.RunConfig{
			Enabled:          cfg.Polling.Enabled,
			ForceRun:         cfg.Polling.ForceRun,
			IntervalMinutes:  cfg.Polling.IntervalMinutes,
			MaxZipsPerTenant: cfg.Polling.MaxZipsPerTenant,
			Parallelism:      cfg.Polling.Parallelism,
			IdempotencyTTL:   cfg.Polling.IdempotencyTTL,
		},
		RunTimeout: cfg.Polling.RunTimeout,
	}, logger)

	sched := scheduler.New(cfg.Polling.TickSchedule, service, logger)

	server := api.NewServer(api.ServerDeps{
		Config:              &cfg.Server,
		Logger:              logger,
		RunHandler:          api.NewRunHandler(service, logger),
		SubscriptionHandler: api.NewSubscriptionHandler(subscriptionRepo, logger),
		HistoryHandler:      api.NewHistoryHandler(eventRepo, auditRepo, board, logger),
	})

	return &dependencies{
		server:     server,
		scheduler:  sched,
		dispatcher: dispatcher,
	}, cleanup, nil
}

// newFetcher builds the facility status source selected by cfg.
func newFetcher(cfg *config.SourceConfig, logger *slog.Logger) (polling.Fetcher, error) {
	switch cfg.Mode {
	case config.SourceModeStatic:
		logger.Info("using static status source", "events", len(cfg.StaticEvents))
		return source.NewStaticFetcherFromConfig(cfg), nil
	case config.SourceModeHTTP:
		logger.Info("using http status source", "base_url", cfg.BaseURL)
		return source.NewHTTPFetcher(cfg, &http.Client{}, logger), nil
	default:
		return nil, fmt.Errorf("unknown source mode %q", cfg.Mode)
	}
}
