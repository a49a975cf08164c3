package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glowsync/glowsync-backend/internal/config"
	"github.com/glowsync/glowsync-backend/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV(t *testing.T) {
	assert.Nil(t, parseCSV(""))
	assert.Equal(t, []string{"a@x.io", "b@x.io"}, parseCSV(" a@x.io, ,b@x.io "))
}

func TestAdminRequired(t *testing.T) {
	listedID := uuid.New()
	cfg := &config.Config{AdminEmails: "Boss@GlowSync.test", AdminUserIDs: listedID.String()}

	cases := []struct {
		name     string
		identity *models.Identity
		want     int
	}{
		{"role", &models.Identity{ID: uuid.New(), UserType: models.RoleAdmin}, fiber.StatusOK},
		{"listed email", &models.Identity{ID: uuid.New(), Email: "boss@glowsync.test", UserType: models.RoleBrand}, fiber.StatusOK},
		{"listed id", &models.Identity{ID: listedID, UserType: models.RoleInfluencer}, fiber.StatusOK},
		{"regular", &models.Identity{ID: uuid.New(), Email: "x@y.z", UserType: models.RoleBrand}, fiber.StatusForbidden},
		{"anonymous", nil, fiber.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				if tc.identity != nil {
					c.Locals(identityLocal, tc.identity)
				}
				return c.Next()
			}, AdminRequired(cfg), func(c *fiber.Ctx) error {
				return c.SendStatus(fiber.StatusOK)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestJWTProtected_ReadsHeaderOrCookie(t *testing.T) {
	cfg := &config.Config{JWTSecret: "mw-secret"}
	id := uuid.New()

	sign := func(secret string, exp time.Time) string {
		tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   id.String(),
			ExpiresAt: jwt.NewNumericDate(exp),
		})
		s, err := tok.SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}

	app := fiber.New()
	app.Get("/", JWTProtected(cfg), func(c *fiber.Ctx) error {
		got, err := CurrentIdentityID(c)
		if err != nil {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.SendString(got.String())
	})

	call := func(mutate func(*http.Request)) *http.Response {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		mutate(req)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	good := sign("mw-secret", time.Now().Add(time.Hour))
	resp := call(func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+good) })
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = call(func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookie, Value: good}) })
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	expired := sign("mw-secret", time.Now().Add(-time.Minute))
	resp = call(func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) })
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	forged := sign("other-secret", time.Now().Add(time.Hour))
	resp = call(func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+forged) })
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp = call(func(*http.Request) {})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
