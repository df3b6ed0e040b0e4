package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "middleware-secret"

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func protectedApp() *fiber.App {
	app := fiber.New()
	app.Use(JWTProtected(testSecret))
	app.Get("/me", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"id":    ProfessorID(c),
			"role":  ProfessorRole(c),
			"email": c.Locals(LocalProfessorEmail),
		})
	})
	return app
}

func TestJWTProtectedAcceptsLoginTokens(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{
		"sub":   "7",
		"role":  "Professor",
		"email": "prof@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := protectedApp().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, decodeJSON(resp, &body))
	require.EqualValues(t, 7, body["id"])
	require.Equal(t, "professor", body["role"])
	require.Equal(t, "prof@example.com", body["email"])
}

func TestJWTProtectedRejectsBadTokens(t *testing.T) {
	valid := jwt.MapClaims{"sub": "7", "role": "professor", "exp": time.Now().Add(time.Hour).Unix()}

	cases := map[string]string{
		"missing header": "",
		"not bearer":     "Basic abc",
		"wrong secret":   "Bearer " + signToken(t, jwt.SigningMethodHS256, "other", valid),
		"wrong method":   "Bearer " + signToken(t, jwt.SigningMethodHS512, testSecret, valid),
		"expired":        "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "7", "exp": time.Now().Add(-time.Minute).Unix()}),
		"no expiry":      "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "7"}),
		"bad subject":    "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": "abc", "exp": time.Now().Add(time.Hour).Unix()}),
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := protectedApp().Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestJWTProtectedQueryTokenOnlyForWebsocketUpgrade(t *testing.T) {
	token := signToken(t, jwt.SigningMethodHS256, testSecret, jwt.MapClaims{"sub": 3, "role": "admin", "exp": time.Now().Add(time.Hour).Unix()})

	plain := httptest.NewRequest(http.MethodGet, "/me?token="+token, nil)
	resp, err := protectedApp().Test(plain)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	upgrade := httptest.NewRequest(http.MethodGet, "/me?token="+token, nil)
	upgrade.Header.Set("Upgrade", "websocket")
	resp, err = protectedApp().Test(upgrade)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
