package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryfiber "github.com/getsentry/sentry-go/fiber"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/glowsync/glowsync-backend/internal/config"
	"github.com/glowsync/glowsync-backend/internal/database"
	"github.com/glowsync/glowsync-backend/internal/handlers"
	"github.com/glowsync/glowsync-backend/internal/logging"
	"github.com/glowsync/glowsync-backend/internal/metrics"
	"github.com/glowsync/glowsync-backend/internal/middleware"
	"github.com/glowsync/glowsync-backend/internal/realtime"
	"github.com/glowsync/glowsync-backend/internal/routes"
	"github.com/glowsync/glowsync-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Structured logging (JSON to stdout)
	stdout := logging.NewJSONHandler(os.Stdout, cfg.LogLevel)
	logging.Setup(stdout)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET environment variable is required")
		os.Exit(1)
	}
	if cfg.DBPassword == "" {
		slog.Error("DB_PASSWORD environment variable is required")
		os.Exit(1)
	}

	// Database
	db, err := database.Connect(cfg)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	// ERROR+ records also go to system_logs
	dbLogHandler := logging.NewDBHandler(db)
	logging.Setup(logging.NewMultiHandler(stdout, dbLogHandler))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	go logging.NewRetention(db, cfg.LogRetention).Run(ctx, 24*time.Hour)

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	// Services
	otpService := services.NewOTPService(db, cfg, recorder)
	identityService := services.NewIdentityService(db, otpService)
	tokenService := services.NewTokenService(cfg)
	linker := services.NewOAuthLinker(db, identityService)
	messageService := services.NewMessageService(db, recorder)
	conversationService := services.NewConversationService(db)

	var mailer services.Mailer
	if cfg.SMTPEnabled() {
		smtp, err := services.NewSMTPMailer(cfg)
		if err != nil {
			slog.Error("smtp client setup failed", "error", err)
			os.Exit(1)
		}
		mailer = smtp
	} else {
		slog.Warn("EMAIL_HOST not set, one-time codes will only be logged")
		mailer = services.NewLogMailer(slog.Default())
	}

	var provider services.OAuthProvider
	if cfg.GoogleEnabled() {
		provider = services.NewGoogleProvider(services.GoogleOAuthConfigFrom(cfg))
	}

	authService := services.NewAuthService(db, identityService, otpService, tokenService, linker, provider, mailer, recorder)

	// Realtime
	hub := realtime.NewHub(recorder)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	// Handlers
	h := routes.Handlers{
		Auth:     handlers.NewAuthHandler(authService, cfg),
		Google:   handlers.NewGoogleAuthHandler(authService, cfg),
		Messages: handlers.NewMessageHandler(messageService, conversationService),
		Admin:    handlers.NewAdminHandler(identityService, hub),
		Health:   handlers.NewHealthHandler(db, hub),
		Realtime: realtime.NewHandler(hub, tokenService, identityService, recorder, realtime.DefaultOptions()),
		Metrics:  metrics.Handler(registry),
	}

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
			Environment:      cfg.AppEnv,
		}); err != nil {
			slog.Error("sentry init failed", "error", err)
		}
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		BodyLimit:    1 * 1024 * 1024,
		ErrorHandler: handlers.ErrorHandler,
	})

	app.Use(sentryfiber.New(sentryfiber.Options{
		Repanic:         true,
		WaitForDelivery: false,
	}))
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "${time} | ${status} | ${latency} | ${ip} | ${method} | ${path} | ${locals:requestid}\n",
	}))
	app.Use(middleware.CORS(cfg))
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		return c.Next()
	})

	routes.Setup(app, cfg, identityService, h)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	// Stopping the hub closes every client's outbound queue, which ends the write pumps.
	stop()
	<-hubDone

	logging.Setup(stdout)
	dbLogHandler.Stop()
	sentry.Flush(2 * time.Second)

	if err := database.Close(db); err != nil {
		slog.Error("database close error", "error", err)
	}

	slog.Info("server stopped")
}
