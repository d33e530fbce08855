package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rainout-go/internal/config"
)

// Server represents the HTTP server with all configured routes and middleware.
type Server struct {
	app    *fiber.App
	config *config.ServerConfig
	logger *slog.Logger

	runHandler          *RunHandler
	subscriptionHandler *SubscriptionHandler
	historyHandler      *HistoryHandler
}

// ServerDeps contains all dependencies required to create a new Server.
type ServerDeps struct {
	Config              *config.ServerConfig
	Logger              *slog.Logger
	RunHandler          *RunHandler
	SubscriptionHandler *SubscriptionHandler
	HistoryHandler      *HistoryHandler
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(deps ServerDeps) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           deps.Config.ReadTimeout,
		WriteTimeout:          deps.Config.WriteTimeout,
		IdleTimeout:           deps.Config.IdleTimeout,
		ErrorHandler:          customErrorHandler,
	})

	s := &Server{
		app:                 app,
		config:              deps.Config,
		logger:              deps.Logger,
		runHandler:          deps.RunHandler,
		subscriptionHandler: deps.SubscriptionHandler,
		historyHandler:      deps.HistoryHandler,
	}

	s.registerMiddleware()
	s.registerRoutes()

	return s
}

// App exposes the underlying Fiber app, mainly for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}

// registerMiddleware sets up all middleware for the server.
func (s *Server) registerMiddleware() {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// Request ID middleware for tracing
	s.app.Use(requestid.New())

	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} | ${path} | ${error}\n",
		TimeFormat: "2006-01-02 15:04:05",
	}))
}

// registerRoutes sets up all API routes.
func (s *Server) registerRoutes() {
	// Health check endpoint (outside versioned API)
	s.app.Get("/healthz", s.healthCheck)

	// Prometheus metrics endpoint
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := s.app.Group("/v1")

	// Polling runs
	v1.Post("/runs", s.runHandler.Trigger)
	v1.Get("/runs/latest", s.runHandler.Latest)

	// Subscriptions
	v1.Post("/subscriptions", s.subscriptionHandler.Create)
	v1.Get("/subscriptions", s.subscriptionHandler.List)
	v1.Get("/subscriptions/:id", s.subscriptionHandler.GetByID)
	v1.Delete("/subscriptions/:id", s.subscriptionHandler.Delete)

	// Read-only history
	v1.Get("/rainout-events", s.historyHandler.RainoutEvents)
	v1.Get("/audit-logs", s.historyHandler.AuditLogs)
	v1.Get("/in-app-status", s.historyHandler.InAppStatus)
}

// healthCheck returns the health status of the service.
func (s *Server) healthCheck(c *fiber.Ctx) error {
	return Success(c, map[string]string{
		"status": "healthy",
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.logger.Info("starting HTTP server", "address", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// customErrorHandler handles errors returned from handlers.
func customErrorHandler(c *fiber.Ctx, err error) error {
	if e, ok := err.(*fiber.Error); ok {
		switch e.Code {
		case fiber.StatusBadRequest:
			return BadRequest(c, e.Message)
		case fiber.StatusNotFound:
			return NotFound(c, e.Message)
		}
		return Error(c, e.Code, ErrCodeInternalError, e.Message)
	}

	return InternalError(c, fmt.Sprintf("unexpected error: %v", err))
}
