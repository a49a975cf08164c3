package routes

import (
	"time"

	"github.com/glowsync/glowsync-backend/internal/config"
	"github.com/glowsync/glowsync-backend/internal/handlers"
	"github.com/glowsync/glowsync-backend/internal/middleware"
	"github.com/glowsync/glowsync-backend/internal/realtime"
	"github.com/glowsync/glowsync-backend/internal/services"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Google   *handlers.GoogleAuthHandler
	Messages *handlers.MessageHandler
	Admin    *handlers.AdminHandler
	Health   *handlers.HealthHandler
	Realtime *realtime.Handler
	Metrics  fiber.Handler
}

func Setup(app *fiber.App, cfg *config.Config, identities *services.IdentityService, h Handlers) {
	if h.Metrics != nil {
		app.Get("/metrics", h.Metrics)
	}

	// Realtime channel; the handshake carries the session credential.
	app.Get("/ws", h.Realtime.Upgrade, websocket.New(h.Realtime.Serve))

	api := app.Group("/api")
	if cfg.APIRateLimit > 0 {
		api.Use(perIPLimiter(cfg.APIRateLimit))
	}

	api.Get("/health", h.Health.Check)

	// Auth - public, stricter rate limit
	auth := api.Group("/auth")
	if cfg.AuthRateLimit > 0 {
		auth.Use(perIPLimiter(cfg.AuthRateLimit))
	}
	auth.Post("/register", h.Auth.Register)
	auth.Post("/login", h.Auth.Login)
	auth.Post("/verify-otp", h.Auth.VerifyOTP)
	auth.Post("/resend-otp", h.Auth.ResendOTP)
	auth.Post("/logout", h.Auth.Logout)
	auth.Get("/google", h.Google.Start)
	auth.Get("/google/callback", h.Google.Callback)

	// Protected routes: valid token and an active identity behind it
	protected := []fiber.Handler{middleware.JWTProtected(cfg), middleware.ActiveIdentity(identities)}

	api.Get("/auth/me", append(protected, h.Auth.Me)...)
	api.Patch("/auth/me", append(protected, h.Auth.UpdateMe)...)

	messages := api.Group("/messages", protected...)
	messages.Post("/", h.Messages.Send)
	messages.Get("/conversations", h.Messages.Conversations)
	messages.Get("/:userId", h.Messages.Thread)

	admin := api.Group("/admin", append(protected, middleware.AdminRequired(cfg))...)
	admin.Patch("/users/:id/status", h.Admin.UpdateStatus)
	admin.Get("/realtime", h.Admin.Realtime)
}

func perIPLimiter(max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        1 * time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator:      func(c *fiber.Ctx) string { return c.IP() },
	})
}
