package middlewares

import (
	"io"
	"net/http/httptest"
	"testing"

	t_token "realtime_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(required bool) *fiber.App {
	app := fiber.New()
	app.Get("/", JWTMiddleware(required), func(c *fiber.Ctx) error {
		username, _ := c.Locals(TokenUsername).(string)
		return c.SendString(username)
	})
	return app
}

func TestJWTMiddleware(t *testing.T) {
	valid, err := t_token.GenerateJWT("alice", string(t_token.RoleUser), "test")
	require.NoError(t, err)

	tests := []struct {
		name     string
		required bool
		target   string
		cookie   string
		status   int
		body     string
	}{
		{name: "query token", required: true, target: "/?auth=" + valid, status: fiber.StatusOK, body: "alice"},
		{name: "cookie token", required: true, target: "/", cookie: valid, status: fiber.StatusOK, body: "alice"},
		{name: "missing required", required: true, target: "/", status: fiber.StatusUnauthorized},
		{name: "missing optional", required: false, target: "/", status: fiber.StatusOK, body: ""},
		{name: "invalid optional", required: false, target: "/?auth=garbage", status: fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			if tt.cookie != "" {
				req.Header.Set("Cookie", CookieToken+"="+tt.cookie)
			}
			resp, err := newApp(tt.required).Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			if tt.status == fiber.StatusOK {
				b, _ := io.ReadAll(resp.Body)
				assert.Equal(t, tt.body, string(b))
			}
		})
	}
}
