package handlers

import (
	"github.com/glowsync/glowsync-backend/internal/dto"
	"github.com/glowsync/glowsync-backend/internal/realtime"
	"github.com/glowsync/glowsync-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AdminHandler struct {
	identities *services.IdentityService
	hub        *realtime.Hub
}

func NewAdminHandler(identities *services.IdentityService, hub *realtime.Hub) *AdminHandler {
	return &AdminHandler{identities: identities, hub: hub}
}

// UpdateStatus activates or deactivates an identity. Identities are never deleted.
func (h *AdminHandler) UpdateStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return badRequest(c, "Invalid user ID")
	}

	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil || req.IsActive == nil {
		return badRequest(c, "isActive is required")
	}

	identity, err := h.identities.SetActive(c.UserContext(), id, *req.IsActive)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(identity)
}

func (h *AdminHandler) Realtime(c *fiber.Ctx) error {
	stats, err := h.hub.Stats()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
			Error: true, Message: "Realtime hub is not running",
		})
	}
	return c.JSON(dto.RealtimeStatsResponse{Connections: stats.Connections, Rooms: stats.Rooms})
}
