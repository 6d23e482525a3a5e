package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/tunebridge/console/internal/models"
	"github.com/tunebridge/console/internal/services"
)

// ActionLoggerConfig audits mutating requests that are not workflow
// actions. Workflow actions are logged by the workflow service itself.
type ActionLoggerConfig struct {
	Enabled     bool
	SkipPaths   []string
	SkipMethods []string
	LogService  services.ActionLogService
	Logger      *zap.Logger
}

func ActionLogger(config ActionLoggerConfig) fiber.Handler {
	skipPaths := make(map[string]bool)
	for _, path := range config.SkipPaths {
		skipPaths[path] = true
	}

	skipMethods := make(map[string]bool)
	for _, method := range config.SkipMethods {
		skipMethods[method] = true
	}

	return func(c *fiber.Ctx) error {
		if !config.Enabled || skipPaths[c.Path()] || skipMethods[c.Method()] {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		op := Operator(c)
		if op == nil {
			return err
		}

		// Fiber recycles the context once the handler returns, so copy
		// everything the goroutine needs.
		params := &services.LogActionParams{
			Actor: services.Actor{
				Operator:  op,
				IPAddress: c.IP(),
				UserAgent: string(c.Request().Header.UserAgent()),
			},
			Entity:   models.EntityType(getModuleFromPath(c.Path())),
			EntityID: c.Params("id", c.Params("page")),
			Action:   models.ActionID(getActionFromMethod(c.Method())),
			Err:      err,
			Duration: time.Since(start),
		}
		if err == nil && c.Response().StatusCode() >= fiber.StatusBadRequest {
			params.Err = fiber.NewError(c.Response().StatusCode(), string(c.Response().Body()))
		}

		go func() {
			if logErr := config.LogService.LogAction(context.Background(), params); logErr != nil && config.Logger != nil {
				config.Logger.Warn("request audit failed", zap.Error(logErr))
			}
		}()

		return err
	}
}

func getActionFromMethod(method string) string {
	switch method {
	case fiber.MethodPost:
		return "create"
	case fiber.MethodPut, fiber.MethodPatch:
		return "update"
	case fiber.MethodDelete:
		return "delete"
	case fiber.MethodGet:
		return "view"
	default:
		return "other"
	}
}

// getModuleFromPath picks the first meaningful segment, so
// /api/v1/exports/releases/chunks/2 audits as "exports".
func getModuleFromPath(path string) string {
	for _, seg := range strings.Split(path, "/") {
		if seg != "" && seg != "api" && seg != "v1" {
			return seg
		}
	}
	return "unknown"
}
