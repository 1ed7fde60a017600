package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/internal/pkg/env"
)

// RequireAdmin gates the reconciliation console. The token arrives from the
// operations side, compared in constant time.
func RequireAdmin(c *fiber.Ctx) error {
	expected := strings.TrimSpace(env.GetEnv("ADMIN_API_TOKEN", ""))
	if expected == "" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "admin_disabled",
			"message": "ADMIN_API_TOKEN is not configured",
		})
	}

	got := strings.TrimSpace(c.Get("X-Admin-Token"))
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": "invalid admin token",
		})
	}

	return c.Next()
}
