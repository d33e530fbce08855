package api

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"rainout-go/internal/domain"
	"rainout-go/internal/planner"
	"rainout-go/internal/store"
)

// StatusLister returns the current in-app statuses of a tenant.
type StatusLister interface {
	List(tenantID string) []domain.InAppStatus
}

// HistoryHandler serves the read-only views of what runs produced: the
// rainout change log, the audit log and the in-app status board.
type HistoryHandler struct {
	events store.RainoutEventRepository
	audit  store.AuditLogRepository
	board  StatusLister
	logger *slog.Logger
}

// NewHistoryHandler creates a new history handler. board may be nil when the
// status projection is not running.
func NewHistoryHandler(events store.RainoutEventRepository, audit store.AuditLogRepository, board StatusLister, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		events: events,
		audit:  audit,
		board:  board,
		logger: logger,
	}
}

// RainoutEvents handles GET /v1/rainout-events
func (h *HistoryHandler) RainoutEvents(c *fiber.Ctx) error {
	limit, err := listLimit(c)
	if err != nil {
		return err
	}

	filter := domain.RainoutEventFilter{
		TenantID: strings.TrimSpace(c.Query("tenant_id")),
		Limit:    limit,
	}
	if zip := c.Query("zip"); zip != "" {
		filter.Zip = planner.NormalizeZip(zip)
	}

	events, err := h.events.List(c.UserContext(), filter)
	if err != nil {
		h.logger.Error("failed to list rainout events", "error", err)
		return InternalError(c, "failed to list rainout events")
	}
	return SuccessList(c, events, len(events), limit)
}

// AuditLogs handles GET /v1/audit-logs
func (h *HistoryHandler) AuditLogs(c *fiber.Ctx) error {
	limit, err := listLimit(c)
	if err != nil {
		return err
	}

	records, err := h.audit.List(c.UserContext(), domain.AuditFilter{
		TenantID: strings.TrimSpace(c.Query("tenant_id")),
		RunID:    c.Query("run_id"),
		Limit:    limit,
	})
	if err != nil {
		h.logger.Error("failed to list audit logs", "error", err)
		return InternalError(c, "failed to list audit logs")
	}
	return SuccessList(c, records, len(records), limit)
}

// InAppStatus handles GET /v1/in-app-status
func (h *HistoryHandler) InAppStatus(c *fiber.Ctx) error {
	tenantID := strings.TrimSpace(c.Query("tenant_id"))
	if h.board == nil {
		return SuccessList(c, []domain.InAppStatus{}, 0, 0)
	}
	statuses := h.board.List(tenantID)
	return SuccessList(c, statuses, len(statuses), 0)
}
