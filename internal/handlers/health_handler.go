package handlers

import (
	"time"

	"github.com/glowsync/glowsync-backend/internal/database"
	"github.com/glowsync/glowsync-backend/internal/dto"
	"github.com/glowsync/glowsync-backend/internal/realtime"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type HealthHandler struct {
	db  *gorm.DB
	hub *realtime.Hub
}

func NewHealthHandler(db *gorm.DB, hub *realtime.Hub) *HealthHandler {
	return &HealthHandler{db: db, hub: hub}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	dbStatus := "ok"
	if err := database.Ping(h.db); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	clients := 0
	if stats, err := h.hub.Stats(); err == nil {
		clients = stats.Connections
	}

	return c.JSON(dto.HealthResponse{
		Status:          "ok",
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		DB:              dbStatus,
		RealtimeClients: clients,
	})
}
