package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"nexus/internal/infrastructure/metrics"
)

// Metrics records every request by its route pattern, not its raw path.
func Metrics(collector *metrics.Collector) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			collector.RecordHTTP(c.Request().Method, route, c.Response().Status, time.Since(start))
			return nil
		}
	}
}
