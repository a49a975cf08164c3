package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	// Database
	DBHost     string `env:"DB_HOST" env-default:"localhost"`
	DBPort     string `env:"DB_PORT" env-default:"5432"`
	DBUser     string `env:"DB_USER" env-default:"postgres"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" env-default:"glowsync"`
	DBSSLMode  string `env:"DB_SSLMODE" env-default:"disable"`

	// Session credentials
	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" env-default:"168h"`

	// One-time codes
	OTPTTL time.Duration `env:"OTP_TTL" env-default:"10m"`

	// Google OAuth
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"GOOGLE_CALLBACK_URL" env-default:"http://localhost:8080/api/auth/google/callback"`

	// Email delivery
	SMTPHost     string `env:"EMAIL_HOST"`
	SMTPPort     int    `env:"EMAIL_PORT" env-default:"465"`
	SMTPUser     string `env:"EMAIL_USER"`
	SMTPPassword string `env:"EMAIL_PASSWORD"`
	SMTPFrom     string `env:"EMAIL_FROM" env-default:"GlowSync <no-reply@glowsync.app>"`

	// Admin
	AdminEmails  string `env:"ADMIN_EMAILS"`
	AdminUserIDs string `env:"ADMIN_USER_IDS"`

	// Server
	Port        string `env:"PORT" env-default:"8080"`
	FrontendURL string `env:"FRONTEND_URL" env-default:"http://localhost:5173"`
	CORSOrigins string `env:"CORS_ORIGINS" env-default:"http://localhost:5173"`
	AppEnv      string `env:"APP_ENV" env-default:"development"`
	SentryDSN   string `env:"SENTRY_DSN"`

	// Requests per minute per IP; 0 disables the limiter.
	APIRateLimit  int `env:"API_RATE_LIMIT" env-default:"120"`
	AuthRateLimit int `env:"AUTH_RATE_LIMIT" env-default:"10"`

	// Logging
	LogLevel     string        `env:"LOG_LEVEL" env-default:"info"`
	LogRetention time.Duration `env:"LOG_RETENTION" env-default:"720h"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	return &cfg, nil
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}
