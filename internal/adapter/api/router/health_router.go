package router

import (
	"github.com/labstack/echo/v4"

	"nexus/internal/adapter/api/handler"
	"nexus/internal/infrastructure/metrics"
)

func SetupHealthRouter(e *echo.Echo, healthHandler *handler.HealthHandler, collector *metrics.Collector) {
	e.GET("/", healthHandler.Welcome)
	e.GET("/health", healthHandler.CheckHealth)
	if collector != nil {
		e.GET("/metrics", echo.WrapHandler(collector.Handler()))
	}
}
