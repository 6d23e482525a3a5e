package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/tunebridge/console/internal/backend"
	"github.com/tunebridge/console/internal/database"
	"github.com/tunebridge/console/internal/middleware"
	"github.com/tunebridge/console/internal/services"
	"github.com/tunebridge/console/internal/workflow"
	"github.com/tunebridge/console/pkg/utils"
)

// respondError maps service errors onto HTTP responses. Backend rejection
// messages are passed through verbatim.
func respondError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return utils.ErrorResponse(c, fe.Code, fe.Message)
	}

	var verr *workflow.ValidationError
	if errors.As(err, &verr) {
		return utils.FieldErrorResponse(c, verr.Field, verr.Message)
	}

	var remote *backend.RemoteError
	if errors.As(err, &remote) {
		if remote.Kind == backend.KindNetwork {
			return utils.ErrorResponse(c, fiber.StatusBadGateway, "Distribution backend is unreachable")
		}
		switch remote.StatusCode {
		case fiber.StatusNotFound:
			return utils.ErrorResponse(c, fiber.StatusNotFound, remote.Message)
		case fiber.StatusUnauthorized, fiber.StatusForbidden:
			return utils.ErrorResponse(c, remote.StatusCode, remote.Message)
		}
		return utils.ErrorResponse(c, fiber.StatusUnprocessableEntity, remote.Message)
	}

	switch {
	case errors.Is(err, workflow.ErrIllegalAction):
		return utils.ErrorResponse(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, workflow.ErrUnknownEntity),
		errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, database.ErrCacheMiss),
		errors.Is(err, services.ErrChunkOutOfRange):
		return utils.ErrorResponse(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, workflow.ErrUnknownAction),
		errors.Is(err, workflow.ErrCategoryMismatch):
		return utils.ErrorResponse(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrMediaTooLarge):
		return utils.ErrorResponse(c, fiber.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, services.ErrMediaTypeRejected):
		return utils.ErrorResponse(c, fiber.StatusUnsupportedMediaType, err.Error())
	}
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, err.Error())
}

func actorFrom(c *fiber.Ctx) services.Actor {
	return services.Actor{
		Operator:  middleware.Operator(c),
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}

// authorize reports false and writes a 403 when the operator lacks
// permission.
func authorize(c *fiber.Ctx, permission string) (bool, error) {
	op := middleware.Operator(c)
	if op == nil {
		return false, utils.ErrorResponse(c, fiber.StatusUnauthorized, "User not authenticated")
	}
	if !op.HasPermission(permission) {
		return false, utils.ErrorResponse(c, fiber.StatusForbidden, "Insufficient permissions")
	}
	return true, nil
}
