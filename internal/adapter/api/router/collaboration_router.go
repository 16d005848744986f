package router

import (
	"github.com/labstack/echo/v4"

	"nexus/internal/adapter/api/handler"
	"nexus/internal/adapter/api/middleware"
)

func SetupCollaborationRouter(e *echo.Echo, collabHandler *handler.CollaborationHandler, identity *middleware.IdentityMiddleware) {
	collabs := e.Group("/collaborations")

	collabs.GET("", collabHandler.ListCollaborations, identity.Identify())
	collabs.GET("/all", collabHandler.ListAllCollaborations)
	collabs.POST("", collabHandler.CreateCollaboration)
	collabs.PUT("/:id", collabHandler.UpdateCollaboration, identity.Identify("userId"))
	collabs.PUT("/:id/accept", collabHandler.AcceptCollaboration, identity.Identify("userId", "id"))
	collabs.PUT("/:id/reject", collabHandler.RejectCollaboration, identity.Identify("userId", "id"))
}
