package handlers

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/glowsync/glowsync-backend/internal/config"
	"github.com/glowsync/glowsync-backend/internal/services"
	"github.com/gofiber/fiber/v2"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateTTL    = 10 * time.Minute
)

// GoogleAuthHandler runs the browser side of the Google handoff. Every outcome is
// a redirect to the frontend.
type GoogleAuthHandler struct {
	authService *services.AuthService
	cfg         *config.Config
}

func NewGoogleAuthHandler(authService *services.AuthService, cfg *config.Config) *GoogleAuthHandler {
	return &GoogleAuthHandler{authService: authService, cfg: cfg}
}

func (h *GoogleAuthHandler) Start(c *fiber.Ctx) error {
	state, err := newState()
	if err != nil {
		slog.Error("failed to generate oauth state", "error", err)
		return h.fail(c, "authentication_failed")
	}

	target, err := h.authService.GoogleAuthURL(state)
	if err != nil {
		return h.fail(c, "google_not_configured")
	}

	// Lax so the cookie survives the top-level redirect back from Google.
	c.Cookie(&fiber.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(oauthStateTTL.Seconds()),
		HTTPOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Redirect(target, fiber.StatusFound)
}

func (h *GoogleAuthHandler) Callback(c *fiber.Ctx) error {
	expected := c.Cookies(oauthStateCookie)
	c.ClearCookie(oauthStateCookie)

	if c.Query("error") != "" {
		return h.fail(c, "google_auth_failed")
	}
	state := c.Query("state")
	if expected == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expected)) != 1 {
		return h.fail(c, "invalid_state")
	}

	result, err := h.authService.GoogleSignIn(c.UserContext(), c.Query("code"))
	if err != nil {
		slog.Warn("google sign-in failed", "request_id", requestID(c), "error", err)
		switch {
		case errors.Is(err, services.ErrIdentityInactive):
			return h.fail(c, "account_deactivated")
		case errors.Is(err, services.ErrUpstream):
			return h.fail(c, "google_auth_failed")
		default:
			return h.fail(c, "authentication_failed")
		}
	}

	if result.Pending != nil {
		q := url.Values{}
		q.Set("userId", result.Pending.ID.String())
		q.Set("email", result.Pending.Email)
		q.Set("requiresPassword", "false")
		return c.Redirect(h.frontend("/verify-otp", q), fiber.StatusFound)
	}

	setSessionCookie(c, h.cfg, result.Session.Token)
	q := url.Values{}
	q.Set("token", result.Session.Token)
	q.Set("userType", result.Session.Identity.UserType)
	return c.Redirect(h.frontend("/auth/callback", q), fiber.StatusFound)
}

func (h *GoogleAuthHandler) fail(c *fiber.Ctx, code string) error {
	q := url.Values{}
	q.Set("error", code)
	return c.Redirect(h.frontend("/login", q), fiber.StatusFound)
}

func (h *GoogleAuthHandler) frontend(path string, q url.Values) string {
	return h.cfg.FrontendURL + path + "?" + q.Encode()
}

func newState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
