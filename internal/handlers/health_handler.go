package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"github.com/tunebridge/console/pkg/utils"
)

// Pinger is any dependency the readiness probe checks.
type Pinger func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]Pinger
}

func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"message": "Console gateway is running",
	})
}

// Ready handles GET /ready. Every dependency is pinged concurrently.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	errs := make([]error, len(names))

	var g errgroup.Group
	for i, name := range names {
		i := i
		check := h.checks[name]
		g.Go(func() error {
			errs[i] = check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	ready := true
	results := make(map[string]string, len(names))
	for i, name := range names {
		if errs[i] != nil {
			ready = false
			results[name] = errs[i].Error()
			continue
		}
		results[name] = "ok"
	}
	if !ready {
		return utils.ErrorResponseWithData(c, fiber.StatusServiceUnavailable, "Dependencies unavailable", results)
	}
	return utils.SuccessResponse(c, fiber.StatusOK, "Ready", results)
}
