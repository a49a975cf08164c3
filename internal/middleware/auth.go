package middleware

import (
	"errors"

	"github.com/glowsync/glowsync-backend/internal/config"
	"github.com/glowsync/glowsync-backend/internal/dto"
	"github.com/glowsync/glowsync-backend/internal/models"
	"github.com/glowsync/glowsync-backend/internal/services"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	tokenLocal    = "user"
	identityLocal = "identity"

	// TokenCookie carries the session credential for browser clients.
	TokenCookie = "token"
)

// JWTProtected accepts the session credential as a bearer header or the token cookie.
func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:  jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.JWTSecret)},
		TokenLookup: "header:Authorization,cookie:" + TokenCookie,
		AuthScheme:  "Bearer",
		ContextKey:  tokenLocal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Unauthorized: invalid or expired token",
			})
		},
	})
}

// ActiveIdentity loads the token subject and rejects unknown or deactivated
// identities. The token alone does not prove the account is still usable.
func ActiveIdentity(identities *services.IdentityService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := CurrentIdentityID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		identity, err := identities.FindByID(c.UserContext(), id)
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
					Error: true, Message: "Unauthorized",
				})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Internal server error",
			})
		}
		if !identity.IsActive {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: services.ErrIdentityInactive.Error(),
			})
		}

		c.Locals(identityLocal, identity)
		return c.Next()
	}
}

// CurrentIdentityID reads the subject of the validated token.
func CurrentIdentityID(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals(tokenLocal).(*jwt.Token)
	if !ok {
		return uuid.Nil, errors.New("invalid token in context")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing sub claim")
	}

	return uuid.Parse(sub)
}

// CurrentIdentity returns the identity loaded by ActiveIdentity.
func CurrentIdentity(c *fiber.Ctx) (*models.Identity, bool) {
	identity, ok := c.Locals(identityLocal).(*models.Identity)
	return identity, ok && identity != nil
}
