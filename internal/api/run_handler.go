package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"rainout-go/internal/domain"
	"rainout-go/internal/polling"
)

// RunTrigger starts polling runs and reports the last one.
type RunTrigger interface {
	Trigger(ctx context.Context, at time.Time, force bool) (*domain.RunResult, error)
	LastResult() *domain.RunResult
}

// TriggerRunRequest is the body of POST /v1/runs.
type TriggerRunRequest struct {
	// Force bypasses the interval boundary check for this run.
	Force bool `json:"force"`
}

// RunHandler handles HTTP requests for polling runs.
type RunHandler struct {
	runs   RunTrigger
	logger *slog.Logger
	now    func() time.Time
}

// NewRunHandler creates a new run handler.
func NewRunHandler(runs RunTrigger, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		runs:   runs,
		logger: logger,
		now:    time.Now,
	}
}

// Trigger handles POST /v1/runs
// Executes a run synchronously and returns its result.
func (h *RunHandler) Trigger(c *fiber.Ctx) error {
	var req TriggerRunRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			h.logger.Debug("failed to parse request body", "error", err)
			return BadRequest(c, "invalid request body")
		}
	}

	result, err := h.runs.Trigger(c.UserContext(), h.now(), req.Force)
	if err != nil {
		if errors.Is(err, polling.ErrRunInProgress) {
			return Conflict(c, "a polling run is already in progress")
		}
		h.logger.Error("failed to trigger run", "error", err)
		return InternalError(c, "failed to trigger run")
	}

	h.logger.Info("run triggered via api", "run_id", result.RunID, "force", req.Force)
	return Success(c, result)
}

// Latest handles GET /v1/runs/latest
// Returns the result of the most recent executed run.
func (h *RunHandler) Latest(c *fiber.Ctx) error {
	result := h.runs.LastResult()
	if result == nil {
		return NotFound(c, "no run has executed yet")
	}
	return Success(c, result)
}
