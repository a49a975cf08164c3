package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/glowsync/glowsync-backend/internal/config"
	"github.com/glowsync/glowsync-backend/internal/dto"
	"github.com/glowsync/glowsync-backend/internal/middleware"
	"github.com/glowsync/glowsync-backend/internal/models"
	"github.com/glowsync/glowsync-backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AuthHandler struct {
	authService *services.AuthService
	cfg         *config.Config
}

func NewAuthHandler(authService *services.AuthService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{authService: authService, cfg: cfg}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	identity, err := h.authService.Register(c.UserContext(), req.Email, req.UserType, req.Name)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(pending(identity, "Account created. Please verify the OTP sent to your email."))
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := h.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	if result.Pending != nil {
		return c.Status(fiber.StatusForbidden).JSON(pending(result.Pending, "Please verify the OTP sent to your email to continue."))
	}

	h.setSessionCookie(c, result.Session.Token)
	return c.JSON(dto.SessionResponse{
		Message: "Login successful",
		Token:   result.Session.Token,
		User:    dto.NewSessionUser(result.Session.Identity),
	})
}

func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req dto.VerifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.UserID == "" || req.OTP == "" {
		return badRequest(c, "User ID and OTP are required")
	}
	id, err := uuid.Parse(req.UserID)
	if err != nil {
		return badRequest(c, "Invalid user ID")
	}

	session, err := h.authService.VerifyOTP(c.UserContext(), id, req.OTP, req.Password)
	if err != nil {
		// A missing or consumed challenge is a bad code from the client's side.
		if errors.Is(err, services.ErrOTPNotFound) {
			return badRequest(c, services.ErrOTPNotFound.Msg)
		}
		return respondError(c, err)
	}

	h.setSessionCookie(c, session.Token)
	return c.JSON(dto.SessionResponse{
		Message: "Email verified successfully",
		Token:   session.Token,
		User:    dto.NewSessionUser(session.Identity),
	})
}

func (h *AuthHandler) ResendOTP(c *fiber.Ctx) error {
	var req dto.ResendOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.UserID == "" {
		return badRequest(c, "User ID is required")
	}
	id, err := uuid.Parse(req.UserID)
	if err != nil {
		return badRequest(c, "Invalid user ID")
	}

	if err := h.authService.ResendOTP(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}

	return c.JSON(dto.SuccessResponse{Success: true, Message: "OTP has been resent to your email"})
}

// Logout only clears the cookie; issued tokens stay valid until they expire.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return unauthorized(c)
	}
	return c.JSON(identity)
}

// UpdateMe edits the caller's own profile. Only name and profilePicture are
// accepted; any other field fails the request.
func (h *AuthHandler) UpdateMe(c *fiber.Ctx) error {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		return unauthorized(c)
	}

	var req dto.UpdateProfileRequest
	dec := json.NewDecoder(bytes.NewReader(c.Body()))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return badRequest(c, "Invalid request body: only name and profilePicture can be updated")
	}

	updated, err := h.authService.UpdateProfile(c.UserContext(), identity.ID, services.ProfileUpdate{
		Name:           req.Name,
		ProfilePicture: req.ProfilePicture,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(updated)
}

func (h *AuthHandler) setSessionCookie(c *fiber.Ctx, token string) {
	setSessionCookie(c, h.cfg, token)
}

func setSessionCookie(c *fiber.Ctx, cfg *config.Config, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cfg.JWTTTL.Seconds()),
		HTTPOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func pending(identity *models.Identity, message string) dto.PendingVerificationResponse {
	return dto.PendingVerificationResponse{
		Message:              message,
		RequiresVerification: true,
		UserID:               identity.ID,
		Email:                identity.Email,
		RequiresPassword:     identity.RequiresPassword(),
	}
}
