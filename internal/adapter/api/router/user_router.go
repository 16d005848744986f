package router

import (
	"github.com/labstack/echo/v4"

	"nexus/internal/adapter/api/handler"
)

func SetupUserRouter(e *echo.Echo, userHandler *handler.UserHandler) {
	users := e.Group("/users")

	users.GET("", userHandler.ListUsers)
	users.GET("/email/:email", userHandler.GetUserByEmail)
	users.GET("/:id", userHandler.GetUser)
	users.POST("", userHandler.CreateUser)
	users.PUT("/:id", userHandler.UpdateProfile)
	users.DELETE("/:id", userHandler.DeleteUser)
}
