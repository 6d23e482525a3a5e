package handlers

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/tunebridge/console/internal/backend"
	"github.com/tunebridge/console/internal/models"
	"github.com/tunebridge/console/internal/query"
	"github.com/tunebridge/console/internal/services"
	"github.com/tunebridge/console/internal/workflow"
	"github.com/tunebridge/console/pkg/utils"
)

type EntityHandler struct {
	service      services.WorkflowService
	validator    *validator.Validate
	defaultLimit int
	maxLimit     int
}

func NewEntityHandler(service services.WorkflowService, validator *validator.Validate, defaultLimit, maxLimit int) *EntityHandler {
	return &EntityHandler{
		service:      service,
		validator:    validator,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

type entityDetail struct {
	Entity  *models.WorkflowEntity     `json:"entity"`
	Actions []services.AvailableAction `json:"actions"`
}

func entityParam(c *fiber.Ctx) (models.EntityType, error) {
	entity, err := models.ParseEntityType(c.Params("entity"))
	if err != nil {
		return "", fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return entity, nil
}

func categoryParam(entity models.EntityType, raw string) (models.Category, error) {
	category, err := models.ParseCategory(entity, raw)
	if err != nil {
		return "", &workflow.ValidationError{Field: "category", Message: err.Error(), Err: workflow.ErrCategoryMismatch}
	}
	return category, nil
}

// ParseListState builds a query state from list query parameters.
func ParseListState(c *fiber.Ctx, entity models.EntityType, defaultLimit, maxLimit int) (query.State, error) {
	category, err := categoryParam(entity, c.Query("category"))
	if err != nil {
		return query.State{}, err
	}
	state := query.NewState(entity, category, defaultLimit)

	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseStatus(entity, raw)
		if err != nil {
			return query.State{}, &workflow.ValidationError{Field: "status", Message: err.Error()}
		}
		state = state.WithStatus(status)
	}
	if search := c.Query("search"); search != "" {
		state = state.WithSearch(search)
	}
	switch models.SortOrder(c.Query("sort_order")) {
	case models.SortOldest:
		state = state.WithSortOrder(models.SortOldest)
	case models.SortNewest:
		state = state.WithSortOrder(models.SortNewest)
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		if limit > maxLimit {
			limit = maxLimit
		}
		state = state.WithLimit(limit)
	}
	if page, err := strconv.Atoi(c.Query("page")); err == nil {
		state = state.WithPage(page)
	}
	return state, nil
}

// List handles GET /entities/:entity
func (h *EntityHandler) List(c *fiber.Ctx) error {
	entity, err := entityParam(c)
	if err != nil {
		return respondError(c, err)
	}
	if ok, err := authorize(c, models.ViewPermission(entity)); !ok {
		return err
	}

	state, err := ParseListState(c, entity, h.defaultLimit, h.maxLimit)
	if err != nil {
		return respondError(c, err)
	}

	page, err := h.service.List(c.UserContext(), actorFrom(c), state)
	if err != nil {
		return respondError(c, err)
	}

	p := page.Pagination
	return utils.PaginatedSuccessResponse(c, page.Items, p.CurrentPage, state.Limit, p.TotalItems, p.TotalPages)
}

func (h *EntityHandler) load(c *fiber.Ctx) (*models.WorkflowEntity, error) {
	entity, err := entityParam(c)
	if err != nil {
		return nil, err
	}
	category, err := categoryParam(entity, c.Query("category"))
	if err != nil {
		return nil, err
	}
	return h.service.Get(c.UserContext(), actorFrom(c), entity, category, c.Params("id"))
}

// Get handles GET /entities/:entity/:id
func (h *EntityHandler) Get(c *fiber.Ctx) error {
	entity, err := entityParam(c)
	if err != nil {
		return respondError(c, err)
	}
	if ok, err := authorize(c, models.ViewPermission(entity)); !ok {
		return err
	}

	e, err := h.load(c)
	if err != nil {
		return respondError(c, err)
	}
	actions, err := h.service.AvailableActions(c.UserContext(), *e)
	if err != nil {
		return respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Entity retrieved", entityDetail{Entity: e, Actions: actions})
}

// GetActions handles GET /entities/:entity/:id/actions
func (h *EntityHandler) GetActions(c *fiber.Ctx) error {
	entity, err := entityParam(c)
	if err != nil {
		return respondError(c, err)
	}
	if ok, err := authorize(c, models.ViewPermission(entity)); !ok {
		return err
	}

	e, err := h.load(c)
	if err != nil {
		return respondError(c, err)
	}
	actions, err := h.service.AvailableActions(c.UserContext(), *e)
	if err != nil {
		return respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Actions retrieved", actions)
}

// Execute handles POST /entities/:entity/:id/actions/:action. The body
// carries the status the operator saw, so a stale view fails validation
// instead of reaching the backend.
func (h *EntityHandler) Execute(c *fiber.Ctx) error {
	entityType, err := entityParam(c)
	if err != nil {
		return respondError(c, err)
	}
	if ok, err := authorize(c, models.ActPermission(entityType)); !ok {
		return err
	}

	var req models.ActionRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	status, err := models.ParseStatus(entityType, req.Status)
	if err != nil {
		return utils.FieldErrorResponse(c, "status", err.Error())
	}
	category, err := categoryParam(entityType, req.Category)
	if err != nil {
		return respondError(c, err)
	}

	entity := models.WorkflowEntity{
		ID:             c.Params("id"),
		Type:           entityType,
		Status:         status,
		Category:       category,
		HasOpenRequest: req.OpenRequest,
	}
	input := models.ActionInput{Reason: req.Reason, AdminNotes: req.AdminNotes, Payload: req.Payload}

	result, err := h.service.Execute(c.UserContext(), actorFrom(c), entity, models.ParseActionID(c.Params("action")), input)
	if err != nil {
		if errors.Is(err, backend.ErrRemoteRejected) && result != nil {
			return utils.ErrorResponseWithData(c, fiber.StatusUnprocessableEntity, err.Error(), models.ActionResponse{
				Action: result.Action,
				Entity: result.Entity,
			})
		}
		return respondError(c, err)
	}

	return utils.SuccessResponse(c, fiber.StatusOK, "Action completed", models.ActionResponse{
		Action: result.Action,
		Entity: result.Entity,
	})
}
