package router

import (
	"github.com/labstack/echo/v4"

	"nexus/internal/adapter/api/handler"
	"nexus/internal/adapter/api/middleware"
)

func SetupMessageRouter(e *echo.Echo, messageHandler *handler.MessageHandler, identity *middleware.IdentityMiddleware) {
	messages := e.Group("/messages")
	messages.Use(identity.Identify("userId"))

	messages.GET("", messageHandler.Status)

	// Deeper paths must not fall into the param routes below.
	messages.Any("/chat/:chatId/*", messageHandler.NotFound)
	messages.Any("/:id/*", messageHandler.NotFound)

	messages.GET("/chat/:chatId", messageHandler.ListChatMessages)
	messages.GET("/:id", messageHandler.GetMessage)
	messages.POST("", messageHandler.PostMessage)
	messages.PUT("/:id", messageHandler.UpdateMessage)
	messages.DELETE("/:id", messageHandler.DeleteMessage)

	messages.Any("/*", messageHandler.NotFound)
}
