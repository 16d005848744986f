package router

import (
	"github.com/labstack/echo/v4"

	"nexus/internal/adapter/api/handler"
	"nexus/internal/adapter/api/middleware"
)

func SetupRequestRouter(e *echo.Echo, requestHandler *handler.RequestHandler, identity *middleware.IdentityMiddleware) {
	requests := e.Group("/requests")

	requests.GET("", requestHandler.ListRequests, identity.Identify())
	requests.GET("/all", requestHandler.ListAllRequests)
	requests.POST("", requestHandler.CreateRequest)

	// Accept and reject carry the caller as {"id": ...} in the body.
	requests.PUT("/:id/accept", requestHandler.AcceptRequest, identity.Identify("userId", "id"))
	requests.PUT("/:id/reject", requestHandler.RejectRequest, identity.Identify("userId", "id"))
}
