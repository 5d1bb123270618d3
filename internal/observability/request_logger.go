package observability

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"
)

// UnmatchedRoute labels requests that reached no registered route.
const UnmatchedRoute = "unmatched"

// RequestLogger logs every request and feeds the request metrics. It must be
// registered ahead of the error middleware so it sees the final status.
func RequestLogger(logger *zap.Logger, metrics *Metrics) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}

		metrics.RecordRequest(RouteLabel(c), MethodLabel(c), status, latency)

		logger.Info("http request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("ip", c.IP()),
		)
		return err
	}
}

// RouteLabel returns the registered pattern of the last route that handled c.
// Requests that only passed through global middleware report UnmatchedRoute.
// The raw path is never a label value: fiber reuses its bytes across requests.
func RouteLabel(c *fiber.Ctx) string {
	r := c.Route()
	if r == nil || r.Path == "" || r.Path == "/" {
		return UnmatchedRoute
	}
	return utils.CopyString(r.Path)
}

// MethodLabel returns a copy of the request method safe to retain.
func MethodLabel(c *fiber.Ctx) string {
	return utils.CopyString(c.Method())
}
