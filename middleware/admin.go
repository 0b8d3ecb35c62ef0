package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"tcg-companion/logging"
)

// AdminTokenMiddleware only lets requests carrying "Authorization: Bearer <token>" through.
// An empty token closes the admin surface entirely.
func AdminTokenMiddleware(token string) fiber.Handler {
	log := logging.For("admin")
	if token == "" {
		log.Warn().Msg("⚠️ [ADMIN_AUTH] ADMIN_API_TOKEN is not set, admin routes are disabled")
	}

	return func(c *fiber.Ctx) error {
		if token == "" {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "admin API is not configured",
			})
		}

		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			log.Warn().Str("path", c.Path()).Msg("🚫 [ADMIN_AUTH] missing Authorization header")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "admin token missing",
			})
		}

		got, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			log.Warn().Str("path", c.Path()).Str("ip", c.IP()).Msg("❌ [ADMIN_AUTH] invalid admin token")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid admin token",
			})
		}
		return c.Next()
	}
}
