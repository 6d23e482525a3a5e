package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tunebridge/console/internal/services"
	"github.com/tunebridge/console/pkg/utils"
)

type MediaHandler struct {
	service services.MediaService
}

func NewMediaHandler(service services.MediaService) *MediaHandler {
	return &MediaHandler{service: service}
}

// Upload handles POST /media. The response URL is what the release form
// submits to the backend.
func (h *MediaHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No file uploaded")
	}

	upload, err := h.service.Upload(c.UserContext(), actorFrom(c), file)
	if err != nil {
		return respondError(c, err)
	}
	return utils.SuccessResponse(c, fiber.StatusCreated, "Media uploaded", upload)
}
