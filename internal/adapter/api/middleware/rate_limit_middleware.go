package middleware

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"

	"pasarmarket/internal/infrastructure/ratelimit"
	"pasarmarket/pkg/errors"
	"pasarmarket/pkg/logger"
	"pasarmarket/pkg/response"
)

// RateLimit throttles per authenticated caller, falling back to the client IP
// on routes without auth.
func RateLimit(limiter *ratelimit.RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key, ok := c.Get("uid").(string)
			if !ok || key == "" {
				key = "ip:" + c.RealIP()
			}

			allowed, wait := limiter.Allow(key)
			if !allowed {
				logger.Warn("RATE LIMIT: %s on %s (retry in %v)", key, c.Path(), wait)
				retryAfter := int(math.Ceil(wait.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return response.Error(c, errors.TooManyRequests("Rate limit exceeded"))
			}

			return next(c)
		}
	}
}
