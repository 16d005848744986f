package handler

import (
	ws "nexus/internal/infrastructure/websocket"
	"nexus/internal/usecase"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Request       *RequestHandler
	Collaboration *CollaborationHandler
	Message       *MessageHandler
	User          *UserHandler
	WebSocket     *WebSocketHandler
	Health        *HealthHandler
}

func Setup(
	requestUseCase *usecase.RequestUseCase,
	collabUseCase *usecase.CollaborationUseCase,
	chatUseCase *usecase.ChatUseCase,
	userUseCase *usecase.UserUseCase,
	wsManager *ws.Manager,
	storeDriver string,
) *Handlers {
	return &Handlers{
		Request:       NewRequestHandler(requestUseCase),
		Collaboration: NewCollaborationHandler(collabUseCase),
		Message:       NewMessageHandler(chatUseCase, wsManager),
		User:          NewUserHandler(userUseCase),
		WebSocket:     NewWebSocketHandler(wsManager),
		Health:        NewHealthHandler(storeDriver, wsManager),
	}
}
