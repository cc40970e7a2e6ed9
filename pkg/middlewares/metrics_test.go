package middlewares

import (
	"net/http/httptest"
	"testing"

	"realtime_chat_service/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountsByRoutePattern(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics())
	app.Get("/groups/:id/messages", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	counter := metrics.HTTPRequestsTotal.WithLabelValues("GET", "/groups/:id/messages", "200")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"g1", "g2"} {
		resp, err := app.Test(httptest.NewRequest("GET", "/groups/"+id+"/messages", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}
