package server

import "github.com/gofiber/fiber/v2"

// GatewayAuth verifies the shared secret the messaging gateway signs its
// callbacks with. Not user authentication: the only caller is the gateway.
func GatewayAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}
		if c.Get("X-Gateway-Secret") != secret {
			return fiber.NewError(fiber.StatusUnauthorized, "bad gateway secret")
		}
		return c.Next()
	}
}
