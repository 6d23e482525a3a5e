package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/tunebridge/console/internal/models"
	"github.com/tunebridge/console/internal/services"
	"github.com/tunebridge/console/internal/workflow"
	"github.com/tunebridge/console/pkg/utils"
)

const (
	minRetentionDays = 7
	maxStatsDays     = 90
)

type ActionLogHandler struct {
	service services.ActionLogService
}

func NewActionLogHandler(service services.ActionLogService) *ActionLogHandler {
	return &ActionLogHandler{service: service}
}

func parseDay(c *fiber.Ctx, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
	if err != nil {
		return nil, &workflow.ValidationError{Field: key, Message: "expected YYYY-MM-DD"}
	}
	return &t, nil
}

func parseActionLogFilter(c *fiber.Ctx) (*models.ActionLogFilter, error) {
	filter := &models.ActionLogFilter{
		Page:       c.QueryInt("page", 1),
		Limit:      c.QueryInt("limit", 20),
		OperatorID: c.Query("operator_id"),
		EntityID:   c.Query("entity_id"),
		Action:     models.ParseActionID(c.Query("action")),
		Status:     c.Query("status"),
		Search:     c.Query("search"),
	}

	if raw := c.Query("entity"); raw != "" {
		entity, err := models.ParseEntityType(raw)
		if err != nil {
			return nil, &workflow.ValidationError{Field: "entity", Message: err.Error()}
		}
		filter.Entity = entity
	}
	if raw := c.Query("bulk_run_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, &workflow.ValidationError{Field: "bulk_run_id", Message: "invalid run id"}
		}
		filter.BulkRunID = &id
	}

	var err error
	if filter.StartDate, err = parseDay(c, "start_date"); err != nil {
		return nil, err
	}
	if filter.EndDate, err = parseDay(c, "end_date"); err != nil {
		return nil, err
	}
	if filter.EndDate != nil {
		end := filter.EndDate.AddDate(0, 0, 1).Add(-time.Nanosecond)
		filter.EndDate = &end
	}
	return filter, nil
}

// ListActionLogs handles GET /action-logs
func (h *ActionLogHandler) ListActionLogs(c *fiber.Ctx) error {
	filter, err := parseActionLogFilter(c)
	if err != nil {
		return respondError(c, err)
	}

	logs, total, err := h.service.ListActionLogs(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return utils.PaginatedSuccessResponse(c, logs, filter.Page, filter.Limit, total, utils.TotalPages(total, filter.Limit))
}

// GetActionLog handles GET /action-logs/:id
func (h *ActionLogHandler) GetActionLog(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid action log ID")
	}

	entry, err := h.service.GetActionLog(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Action log retrieved", entry)
}

// GetStats handles GET /action-logs/stats?days=N
func (h *ActionLogHandler) GetStats(c *fiber.Ctx) error {
	days := c.QueryInt("days", 1)
	if days < 1 || days > maxStatsDays {
		return utils.FieldErrorResponse(c, "days", "must be between 1 and 90")
	}

	stats, err := h.service.GetStats(c.UserContext(), days)
	if err != nil {
		return respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Stats retrieved", stats)
}

func (h *ActionLogHandler) GetFilterOptions(c *fiber.Ctx) error {
	options, err := h.service.GetFilterOptions(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Filter options retrieved", options)
}

// GetEntityHistory handles GET /action-logs/entity/:entity/:id
func (h *ActionLogHandler) GetEntityHistory(c *fiber.Ctx) error {
	entity, err := models.ParseEntityType(c.Params("entity"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, err.Error())
	}

	logs, err := h.service.GetEntityHistory(c.UserContext(), entity, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "History retrieved", logs)
}

// CleanupOldLogs handles DELETE /action-logs/cleanup. The retention monitor
// does this on a schedule; this endpoint is for one-off pruning.
func (h *ActionLogHandler) CleanupOldLogs(c *fiber.Ctx) error {
	retentionDays := c.QueryInt("retention_days", 90)
	if retentionDays < minRetentionDays {
		return utils.FieldErrorResponse(c, "retention_days", "must be at least 7")
	}

	deleted, err := h.service.CleanupOldLogs(c.UserContext(), retentionDays)
	if err != nil {
		return respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Old logs cleaned up", fiber.Map{
		"deleted_count":  deleted,
		"retention_days": retentionDays,
	})
}
