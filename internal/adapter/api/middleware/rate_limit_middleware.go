package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"nexus/internal/infrastructure/ratelimit"
	"nexus/pkg/errors"
	"nexus/pkg/logger"
	"nexus/pkg/response"
)

// RateLimit limits requests per client IP. The websocket upgrade is exempt;
// the broker limits events per connection instead.
func RateLimit(limiter *ratelimit.RateLimiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Path() == "/ws" {
				return next(c)
			}

			ip := c.RealIP()
			ok, retry := limiter.Allow(ip, ratelimit.ActionHTTP)
			if !ok {
				logger.Warn("Rate limit exceeded for %s on %s %s", ip, c.Request().Method, c.Path())
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
				return response.Error(c, errors.TooManyRequests(http.StatusText(http.StatusTooManyRequests)))
			}
			return next(c)
		}
	}
}
