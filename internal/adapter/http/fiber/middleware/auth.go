package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/savoro/menuvoice/internal/ports"
)

// TokenRequired validates the session token presented when opening a
// stream. Browsers cannot set headers on websocket upgrades, so the token
// is accepted from the "token" query parameter as well as a Bearer header.
func TokenRequired(service ports.TokenService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			authHeader := c.Get("Authorization")
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				token = parts[1]
			}
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing session token"})
		}

		identity, room, sessionID, err := service.Validate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
		}

		c.Locals("identity", identity)
		c.Locals("room", room)
		c.Locals("session_id", sessionID)

		return c.Next()
	}
}
