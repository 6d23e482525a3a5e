package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tunebridge/console/internal/middleware"
	"github.com/tunebridge/console/pkg/utils"
)

// TokenRevoker blacklists tokens until they would have expired anyway.
type TokenRevoker interface {
	BlacklistToken(ctx context.Context, token string, expiration time.Duration) error
	InvalidateLists(ctx context.Context, operatorID string) error
}

type AuthHandler struct {
	jwtManager *utils.JWTManager
	revoker    TokenRevoker
}

func NewAuthHandler(jwtManager *utils.JWTManager, revoker TokenRevoker) *AuthHandler {
	return &AuthHandler{jwtManager: jwtManager, revoker: revoker}
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	op := middleware.Operator(c)

	ttl := 24 * time.Hour
	if claims, err := h.jwtManager.ValidateToken(op.Token); err == nil && claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl > 0 {
		if err := h.revoker.BlacklistToken(c.UserContext(), op.Token, ttl); err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to revoke token")
		}
	}
	_ = h.revoker.InvalidateLists(c.UserContext(), op.ID)

	return utils.SuccessResponse(c, fiber.StatusOK, "Logged out", nil)
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return utils.SuccessResponse(c, fiber.StatusOK, "Operator retrieved", middleware.Operator(c))
}
