package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"nexus/internal/adapter/api/middleware"
	ws "nexus/internal/infrastructure/websocket"
	"nexus/internal/usecase"
	"nexus/pkg/errors"
	"nexus/pkg/response"
)

type MessageHandler struct {
	chatUseCase *usecase.ChatUseCase
	notifier    usecase.Notifier
}

// NewMessageHandler builds the REST chat handler. Messages saved or edited
// over HTTP are pushed to realtime subscribers through notifier, which may
// be nil.
func NewMessageHandler(chatUseCase *usecase.ChatUseCase, notifier usecase.Notifier) *MessageHandler {
	return &MessageHandler{chatUseCase: chatUseCase, notifier: notifier}
}

type postMessageRequest struct {
	ID         string     `json:"id"`
	ChatID     string     `json:"chatId"`
	SenderID   string     `json:"senderId"`
	SenderName string     `json:"senderName"`
	Text       string     `json:"text"`
	Content    string     `json:"content"`
	Timestamp  *time.Time `json:"timestamp"`
}

type updateMessageRequest struct {
	Text    string `json:"text"`
	Content string `json:"content"`
	Read    bool   `json:"read"`
}

func (h *MessageHandler) Status(c echo.Context) error {
	return response.Success(c, map[string]string{"message": "Chat endpoint is active"})
}

func (h *MessageHandler) NotFound(c echo.Context) error {
	return response.Error(c, errors.NotFound("Route", nil))
}

func (h *MessageHandler) ListChatMessages(c echo.Context) error {
	messages, err := h.chatUseCase.ListMessages(c.Request().Context(), middleware.CallerFrom(c), c.Param("chatId"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, messages)
}

func (h *MessageHandler) GetMessage(c echo.Context) error {
	message, err := h.chatUseCase.GetMessage(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, message)
}

func (h *MessageHandler) PostMessage(c echo.Context) error {
	var req postMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	text := req.Text
	if text == "" {
		text = req.Content
	}
	input := usecase.PostMessageInput{
		ID:         req.ID,
		ChatID:     req.ChatID,
		SenderID:   req.SenderID,
		SenderName: req.SenderName,
		Text:       text,
	}
	if req.Timestamp != nil {
		input.Timestamp = *req.Timestamp
	}

	message, err := h.chatUseCase.PostMessage(c.Request().Context(), middleware.CallerFrom(c), input)
	if err != nil {
		return response.Error(c, err)
	}

	h.push(message.ChatID, message)
	return response.Created(c, message)
}

func (h *MessageHandler) UpdateMessage(c echo.Context) error {
	var req updateMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	text := req.Content
	if text == "" {
		text = req.Text
	}

	message, err := h.chatUseCase.UpdateMessage(c.Request().Context(), middleware.CallerFrom(c), c.Param("id"), usecase.UpdateMessageInput{
		Text: text,
		Read: req.Read,
	})
	if err != nil {
		return response.Error(c, err)
	}

	h.push(message.ChatID, message)
	return response.Success(c, message)
}

func (h *MessageHandler) DeleteMessage(c echo.Context) error {
	if err := h.chatUseCase.DeleteMessage(c.Request().Context(), middleware.CallerFrom(c), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"message": "Message deleted"})
}

func (h *MessageHandler) push(chatID string, payload interface{}) {
	if h.notifier != nil {
		h.notifier.Notify(ws.ChatTopic(chatID), payload)
	}
}
