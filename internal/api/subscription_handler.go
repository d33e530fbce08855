package api

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"rainout-go/internal/domain"
	"rainout-go/internal/planner"
	"rainout-go/internal/store"
)

// SubscriptionHandler handles HTTP requests for subscription operations.
type SubscriptionHandler struct {
	repo     store.SubscriptionRepository
	validate *validator.Validate
	logger   *slog.Logger
}

// NewSubscriptionHandler creates a new subscription handler.
func NewSubscriptionHandler(repo store.SubscriptionRepository, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		repo:     repo,
		validate: validator.New(),
		logger:   logger,
	}
}

// Create handles POST /v1/subscriptions
// Registers a new subscription.
func (h *SubscriptionHandler) Create(c *fiber.Ctx) error {
	var req domain.CreateSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Debug("failed to parse request body", "error", err)
		return BadRequest(c, "invalid request body")
	}

	if err := h.validate.Struct(&req); err != nil {
		h.logger.Debug("validation failed", "error", err)
		return ValidationError(c, err.Error())
	}
	if strings.TrimSpace(req.TenantID) == "" {
		return ValidationError(c, domain.ErrEmptyTenantID.Error())
	}
	if planner.NormalizeZip(req.Zip) == "" {
		return ValidationError(c, domain.ErrInvalidZip.Error())
	}

	sub := req.ToSubscription()
	if err := h.repo.Create(c.UserContext(), sub); err != nil {
		h.logger.Error("failed to create subscription", "error", err)
		return InternalError(c, "failed to create subscription")
	}

	h.logger.Info("created subscription", "id", sub.ID, "tenant_id", sub.TenantID, "zip", sub.Zip)
	return Created(c, sub)
}

// List handles GET /v1/subscriptions
// Returns subscriptions, optionally narrowed by tenant_id and enabled_only.
func (h *SubscriptionHandler) List(c *fiber.Ctx) error {
	filter := domain.SubscriptionFilter{
		TenantID:    strings.TrimSpace(c.Query("tenant_id")),
		EnabledOnly: c.QueryBool("enabled_only", false),
	}

	subs, err := h.repo.List(c.UserContext(), filter)
	if err != nil {
		h.logger.Error("failed to list subscriptions", "error", err)
		return InternalError(c, "failed to list subscriptions")
	}

	return SuccessList(c, subs, len(subs), 0)
}

// GetByID handles GET /v1/subscriptions/:id
func (h *SubscriptionHandler) GetByID(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	sub, err := h.repo.GetByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			return NotFound(c, "subscription not found")
		}
		h.logger.Error("failed to get subscription", "id", id, "error", err)
		return InternalError(c, "failed to get subscription")
	}

	return Success(c, sub)
}

// Delete handles DELETE /v1/subscriptions/:id
func (h *SubscriptionHandler) Delete(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return BadRequest(c, "id is required")
	}

	if err := h.repo.Delete(c.UserContext(), id); err != nil {
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			return NotFound(c, "subscription not found")
		}
		h.logger.Error("failed to delete subscription", "id", id, "error", err)
		return InternalError(c, "failed to delete subscription")
	}

	h.logger.Info("deleted subscription", "id", id)
	return NoContent(c)
}
