package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/yourorg/dm-service/internal/auth"
)

const (
	LocalUserID   = "user_id"
	LocalUserName = "user_name"
)

// JWTAuth rejects requests without a valid bearer token and stashes the
// caller's identity in locals.
func JWTAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := auth.ParseBearerToken(c.Get("Authorization"))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization"})
		}
		claims, err := auth.ParseAndValidateToken(secret, token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals(LocalUserID, claims.UserID)
		c.Locals(LocalUserName, claims.UserName)
		return c.Next()
	}
}
