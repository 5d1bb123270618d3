package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// authRateLimiter caps credential attempts per client IP. max <= 0 disables it.
func authRateLimiter(max int) fiber.Handler {
	if max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:               max,
		Expiration:        time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"response": "ERROR",
				"message":  "too many attempts, try again in a minute",
				"error": fiber.Map{
					"code":    "RATE_LIMITED",
					"message": "too many attempts, try again in a minute",
				},
			})
		},
	})
}
