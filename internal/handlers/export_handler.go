package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tunebridge/console/internal/export"
	"github.com/tunebridge/console/internal/services"
	"github.com/tunebridge/console/pkg/utils"
)

type ExportHandler struct {
	service services.ExportService
}

func NewExportHandler(service services.ExportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// ListChunks handles GET /exports/releases/chunks
func (h *ExportHandler) ListChunks(c *fiber.Ctx) error {
	chunks, err := h.service.Chunks(c.UserContext(), actorFrom(c))
	if err != nil {
		return respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Export chunks retrieved", chunks)
}

// RenderChunk handles POST /exports/releases/chunks/:page?format=csv|xlsx
func (h *ExportHandler) RenderChunk(c *fiber.Ctx) error {
	page, err := c.ParamsInt("page")
	if err != nil || page < 1 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid page")
	}
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		return utils.FieldErrorResponse(c, "format", err.Error())
	}

	file, err := h.service.RenderChunk(c.UserContext(), actorFrom(c), page, format)
	if err != nil {
		return respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, "Export chunk ready", file)
}
