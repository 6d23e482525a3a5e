package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tunebridge/console/internal/models"
	"github.com/tunebridge/console/pkg/utils"
)

// LocalOperator is the fiber Locals key holding the *models.Operator.
const LocalOperator = "operator"

// TokenBlacklist reports revoked tokens.
type TokenBlacklist interface {
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)
}

type AuthMiddleware struct {
	jwtManager *utils.JWTManager
	blacklist  TokenBlacklist
}

func NewAuthMiddleware(jwtManager *utils.JWTManager, blacklist TokenBlacklist) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
		blacklist:  blacklist,
	}
}

func bearerToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	// Browsers cannot set headers on websocket upgrades.
	return c.Query("token")
}

func (m *AuthMiddleware) operator(ctx context.Context, token string) (*models.Operator, int, string) {
	if token == "" {
		return nil, fiber.StatusUnauthorized, "Missing authorization token"
	}

	isBlacklisted, err := m.blacklist.IsTokenBlacklisted(ctx, token)
	if err != nil {
		return nil, fiber.StatusInternalServerError, "Failed to validate token"
	}
	if isBlacklisted {
		return nil, fiber.StatusUnauthorized, "Token has been revoked"
	}

	claims, err := m.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, fiber.StatusUnauthorized, "Invalid or expired token"
	}

	return &models.Operator{
		ID:    claims.UserID,
		Email: claims.Email,
		Role:  models.Role(claims.Role),
		Token: token,
	}, 0, ""
}

func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		op, status, msg := m.operator(c.UserContext(), bearerToken(c))
		if op == nil {
			return utils.ErrorResponse(c, status, msg)
		}
		c.Locals(LocalOperator, op)
		return c.Next()
	}
}

// RequirePermission lets the request through when the operator holds any
// of the permissions.
func (m *AuthMiddleware) RequirePermission(permissions ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		op := Operator(c)
		if op == nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "User not authenticated")
		}
		for _, perm := range permissions {
			if op.HasPermission(perm) {
				return c.Next()
			}
		}
		return utils.ErrorResponse(c, fiber.StatusForbidden, "Insufficient permissions")
	}
}

// Operator returns the authenticated operator, or nil.
func Operator(c *fiber.Ctx) *models.Operator {
	op, _ := c.Locals(LocalOperator).(*models.Operator)
	return op
}
