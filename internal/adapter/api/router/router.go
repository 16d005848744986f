package router

import (
	"github.com/labstack/echo/v4"

	"nexus/internal/adapter/api/handler"
	"nexus/internal/adapter/api/middleware"
	"nexus/internal/infrastructure/metrics"
)

func Setup(e *echo.Echo, h *handler.Handlers, identity *middleware.IdentityMiddleware, collector *metrics.Collector) {
	SetupHealthRouter(e, h.Health, collector)
	SetupRequestRouter(e, h.Request, identity)
	SetupCollaborationRouter(e, h.Collaboration, identity)
	SetupMessageRouter(e, h.Message, identity)
	SetupUserRouter(e, h.User)
	SetupWebSocketRouter(e, h.WebSocket)
}
