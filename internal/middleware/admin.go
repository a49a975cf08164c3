package middleware

import (
	"slices"
	"strings"

	"github.com/glowsync/glowsync-backend/internal/config"
	"github.com/glowsync/glowsync-backend/internal/dto"
	"github.com/glowsync/glowsync-backend/internal/models"
	"github.com/gofiber/fiber/v2"
)

// AdminRequired must run after ActiveIdentity. An identity is an admin when its
// role is admin or its email or id is listed in ADMIN_EMAILS / ADMIN_USER_IDS.
func AdminRequired(cfg *config.Config) fiber.Handler {
	adminEmails := parseCSV(strings.ToLower(cfg.AdminEmails))
	adminUserIDs := parseCSV(cfg.AdminUserIDs)

	return func(c *fiber.Ctx) error {
		identity, ok := CurrentIdentity(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		if identity.UserType == models.RoleAdmin ||
			slices.Contains(adminEmails, identity.Email) ||
			slices.Contains(adminUserIDs, identity.ID.String()) {
			return c.Next()
		}

		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Error: true, Message: "Admin access required",
		})
	}
}

// parseCSV splits a comma separated list, dropping blanks.
func parseCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
