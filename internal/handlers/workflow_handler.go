package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tunebridge/console/internal/models"
	"github.com/tunebridge/console/internal/services"
	"github.com/tunebridge/console/internal/workflow"
	"github.com/tunebridge/console/pkg/utils"
)

type WorkflowHandler struct {
	service services.WorkflowService
}

func NewWorkflowHandler(service services.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{service: service}
}

type workflowTable struct {
	Entity       models.EntityType                        `json:"entity"`
	Categories   []models.Category                        `json:"categories"`
	Statuses     []models.Status                          `json:"statuses"`
	Transitions  []workflow.Transition                    `json:"transitions"`
	Requirements map[models.ActionID]workflow.Requirement `json:"requirements"`
	Families     map[models.Category]string               `json:"families"`
}

func (h *WorkflowHandler) machine(c *fiber.Ctx) (*workflow.Machine, error) {
	entity, err := models.ParseEntityType(c.Params("entity"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return h.service.Machine(entity)
}

// GetTable handles GET /workflows/:entity
func (h *WorkflowHandler) GetTable(c *fiber.Ctx) error {
	m, err := h.machine(c)
	if err != nil {
		return respondError(c, err)
	}
	def := m.Definition()
	return utils.SuccessResponse(c, fiber.StatusOK, "Workflow retrieved", workflowTable{
		Entity:       def.Entity,
		Categories:   models.Categories(def.Entity),
		Statuses:     models.Statuses(def.Entity),
		Transitions:  def.Transitions,
		Requirements: def.Requirements,
		Families:     def.Families,
	})
}

// GetGraph handles GET /workflows/:entity/graph
func (h *WorkflowHandler) GetGraph(c *fiber.Ctx) error {
	m, err := h.machine(c)
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "text/vnd.graphviz; charset=utf-8")
	return c.Status(fiber.StatusOK).SendString(m.Graph())
}
