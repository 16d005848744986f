package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// ClientCounter reports live realtime connections.
type ClientCounter interface {
	ClientCount() int
}

type HealthHandler struct {
	storeDriver string
	clients     ClientCounter
	startedAt   time.Time
}

func NewHealthHandler(storeDriver string, clients ClientCounter) *HealthHandler {
	return &HealthHandler{
		storeDriver: storeDriver,
		clients:     clients,
		startedAt:   time.Now(),
	}
}

func (h *HealthHandler) Welcome(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Welcome to the Startup Platform API",
	})
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	body := map[string]interface{}{
		"status": "ok",
		"store":  h.storeDriver,
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
		"time":   time.Now().Format(time.RFC3339),
	}
	if h.clients != nil {
		body["clients"] = h.clients.ClientCount()
	}
	return c.JSON(http.StatusOK, body)
}
