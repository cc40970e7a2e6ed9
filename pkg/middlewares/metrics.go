package middlewares

import (
	"strconv"
	"time"

	"realtime_chat_service/pkg/metrics"

	"github.com/gofiber/fiber/v2"
)

// Metrics records Prometheus request metrics keyed by route pattern
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}

		// route pattern keeps label cardinality bounded
		path := c.Route().Path
		metrics.HTTPRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}
