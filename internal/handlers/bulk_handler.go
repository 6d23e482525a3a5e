package handlers

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/tunebridge/console/internal/middleware"
	"github.com/tunebridge/console/internal/models"
	"github.com/tunebridge/console/internal/services"
	"github.com/tunebridge/console/pkg/utils"
)

type BulkHandler struct {
	service   services.BulkService
	validator *validator.Validate
}

func NewBulkHandler(service services.BulkService, validator *validator.Validate) *BulkHandler {
	return &BulkHandler{service: service, validator: validator}
}

type bulkRunStatus struct {
	Progress *models.BulkProgress    `json:"progress"`
	Result   *models.BulkRunResponse `json:"result,omitempty"`
}

// Start handles POST /bulk-runs. The run continues in the background; the
// caller polls GET /bulk-runs/:id.
func (h *BulkHandler) Start(c *fiber.Ctx) error {
	var req models.BulkRunRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	entity, err := models.ParseEntityType(req.EntityType)
	if err != nil {
		return utils.FieldErrorResponse(c, "entity_type", err.Error())
	}
	if ok, err := authorize(c, models.ActPermission(entity)); !ok {
		return err
	}

	run, err := h.service.Start(c.UserContext(), actorFrom(c), &req)
	if err != nil {
		return respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusAccepted, "Bulk run started", run)
}

// Get handles GET /bulk-runs/:id. Operators without bulk:run only see
// their own runs; other runs answer 404.
func (h *BulkHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid ID")
	}

	run, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	op := middleware.Operator(c)
	if op == nil || (run.OperatorID != op.ID && !op.HasPermission("bulk:run")) {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Bulk run not found")
	}

	progress, err := h.service.Progress(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	status := bulkRunStatus{Progress: progress}
	if progress.State == models.BulkRunCompleted {
		if run.State != models.BulkRunCompleted {
			// finished between the two reads
			if run, err = h.service.Get(c.UserContext(), id); err != nil {
				return respondError(c, err)
			}
		}
		status.Result = run
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Bulk run retrieved", status)
}

// List handles GET /bulk-runs. Operators without bulk:run only see their
// own runs.
func (h *BulkHandler) List(c *fiber.Ctx) error {
	filter := &models.BulkRunFilter{
		EntityType: models.EntityType(c.Query("entity_type")),
		State:      models.BulkRunState(c.Query("state")),
		Page:       1,
		Limit:      20,
	}
	if p, err := strconv.Atoi(c.Query("page")); err == nil {
		filter.Page = p
	}
	if l, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.Limit = l
	}
	op := middleware.Operator(c)
	if !op.HasPermission("bulk:run") || c.QueryBool("mine") {
		filter.OperatorID = op.ID
	}

	runs, total, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return utils.PaginatedSuccessResponse(c, runs, filter.Page, filter.Limit, total, utils.TotalPages(total, filter.Limit))
}
