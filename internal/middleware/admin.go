package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/recebimentosmart/billing-backend/internal/config"
	"github.com/recebimentosmart/billing-backend/internal/dto"
)

// AdminRequired lets a request through when it carries the admin token header,
// or a JWT whose email or sub is on the configured admin lists.
// Must run after AdminJWT.
func AdminRequired(cfg *config.Config) fiber.Handler {
	adminEmails := parseCSV(cfg.AdminEmails)
	adminUserIDs := parseCSV(cfg.AdminUserIDs)

	return func(c *fiber.Ctx) error {
		if hasAdminToken(c, cfg) {
			return c.Next()
		}

		mc, err := claims(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		email, _ := mc["email"].(string)
		sub, _ := mc["sub"].(string)
		if contains(adminEmails, strings.ToLower(email)) || contains(adminUserIDs, sub) {
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Admin access required",
		})
	}
}

func hasAdminToken(c *fiber.Ctx, cfg *config.Config) bool {
	if cfg.AdminToken == "" {
		return false
	}
	got := c.Get("X-Admin-Token")
	return subtle.ConstantTimeCompare([]byte(got), []byte(cfg.AdminToken)) == 1
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.ToLower(strings.TrimSpace(p))
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func contains(list []string, val string) bool {
	if val == "" {
		return false
	}
	for _, item := range list {
		if item == strings.ToLower(val) {
			return true
		}
	}
	return false
}
