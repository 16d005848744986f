package websocket

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"nexus/internal/infrastructure/ratelimit"
	"nexus/internal/usecase"
	"nexus/pkg/errors"
	"nexus/pkg/logger"
)

// Event types
const (
	EventPing         = "ping"
	EventPong         = "pong"
	EventMessage      = "message"
	EventTyping       = "typing"
	EventStopTyping   = "stopTyping"
	EventRead         = "read"
	EventMessageError = "message_error"
	EventReadError    = "read_error"
	EventError        = "error"
)

// InboundEvent is a frame received from a client.
type InboundEvent struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// OutboundEvent is a frame sent to clients.
type OutboundEvent struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

type MessageData struct {
	ID         string `json:"id,omitempty"`
	ChatID     string `json:"chatId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
	Content    string `json:"content,omitempty"`
	// Timestamp is either an RFC3339 string or epoch milliseconds.
	Timestamp json.RawMessage `json:"timestamp,omitempty"`
}

type TypingData struct {
	ChatID   string `json:"chatId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

type ReadData struct {
	MessageID string `json:"messageId"`
	ChatID    string `json:"chatId"`
}

type MessageErrorData struct {
	Error  string `json:"error"`
	ChatID string `json:"chatId"`
}

type ReadErrorData struct {
	Error     string `json:"error"`
	MessageID string `json:"messageId"`
}

type ErrorData struct {
	Error string `json:"error"`
}

// ChatTopic is the event type carrying saved and updated messages for a chat.
func ChatTopic(chatID string) string {
	return "chat:" + chatID
}

// HandleClientMessage processes one inbound frame to completion.
func (m *Manager) HandleClientMessage(client *Client, raw []byte) {
	var event InboundEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		logger.Warn("WebSocket: malformed frame from conn=%s: %v", client.ID, err)
		m.metrics.RecordEvent("malformed", "error")
		m.SendTo(client, EventError, ErrorData{Error: "Invalid message format"})
		return
	}

	logger.Debug("WebSocket: received %s from conn=%s user=%s", event.Type, client.ID, client.UserID)

	switch event.Type {
	case EventPing:
		m.SendTo(client, EventPong, map[string]string{"status": "ok"})
		m.metrics.RecordEvent(EventPing, "ok")

	case EventMessage:
		m.handleMessage(client, event.Data)

	case EventTyping, EventStopTyping:
		m.handleTyping(client, event.Type, event.Data)

	case EventRead:
		m.handleRead(client, event.Data)

	default:
		m.metrics.RecordEvent("unknown", "error")
		m.SendTo(client, EventError, ErrorData{Error: "Unknown event type: " + event.Type})
	}
}

func (m *Manager) handleMessage(client *Client, raw json.RawMessage) {
	var data MessageData
	if err := json.Unmarshal(raw, &data); err != nil {
		m.metrics.RecordEvent(EventMessage, "error")
		m.SendTo(client, EventMessageError, MessageErrorData{Error: "Invalid message payload"})
		return
	}

	if ok, retry := m.limiter.Allow(client.ID, ratelimit.ActionMessage); !ok {
		m.metrics.RecordEvent(EventMessage, "rate_limited")
		m.SendTo(client, EventMessageError, MessageErrorData{
			Error:  "Too many messages, retry in " + retry.Round(time.Second).String(),
			ChatID: data.ChatID,
		})
		return
	}

	ts, err := parseTimestamp(data.Timestamp)
	if err != nil {
		m.metrics.RecordEvent(EventMessage, "error")
		m.SendTo(client, EventMessageError, MessageErrorData{Error: errors.MessageOf(err), ChatID: data.ChatID})
		return
	}

	text := data.Text
	if text == "" {
		text = data.Content
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.opTimeout)
	defer cancel()

	saved, err := m.chat.PostMessage(ctx, client.caller(), usecase.PostMessageInput{
		ID:         data.ID,
		ChatID:     data.ChatID,
		SenderID:   data.SenderID,
		SenderName: data.SenderName,
		Text:       text,
		Timestamp:  ts,
	})
	if err != nil {
		logger.Warn("WebSocket: message on chat %s from conn=%s rejected: %v", data.ChatID, client.ID, err)
		m.metrics.RecordEvent(EventMessage, "error")
		m.SendTo(client, EventMessageError, MessageErrorData{Error: errors.MessageOf(err), ChatID: data.ChatID})
		return
	}

	m.metrics.RecordEvent(EventMessage, "ok")
	m.Broadcast(ChatTopic(saved.ChatID), saved, nil)
}

// handleTyping relays typing indicators to everyone but the sender. Over
// budget indicators are dropped without telling the client.
func (m *Manager) handleTyping(client *Client, eventType string, raw json.RawMessage) {
	var data TypingData
	if err := json.Unmarshal(raw, &data); err != nil || strings.TrimSpace(data.ChatID) == "" {
		m.metrics.RecordEvent(eventType, "error")
		m.SendTo(client, EventError, ErrorData{Error: "chatId is required"})
		return
	}

	if ok, _ := m.limiter.Allow(client.ID, ratelimit.ActionTyping); !ok {
		m.metrics.RecordEvent(eventType, "rate_limited")
		return
	}

	m.metrics.RecordEvent(eventType, "ok")
	m.Broadcast(eventType+":"+data.ChatID, data, client)
}

func (m *Manager) handleRead(client *Client, raw json.RawMessage) {
	var data ReadData
	if err := json.Unmarshal(raw, &data); err != nil {
		m.metrics.RecordEvent(EventRead, "error")
		m.SendTo(client, EventReadError, ReadErrorData{Error: "Invalid read payload"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.opTimeout)
	defer cancel()

	updated, err := m.chat.MarkRead(ctx, data.MessageID)
	if err != nil {
		m.metrics.RecordEvent(EventRead, "error")
		m.SendTo(client, EventReadError, ReadErrorData{Error: errors.MessageOf(err), MessageID: data.MessageID})
		return
	}

	chatID := updated.ChatID
	if chatID == "" {
		chatID = data.ChatID
	}

	m.metrics.RecordEvent(EventRead, "ok")
	m.Broadcast(ChatTopic(chatID), updated, nil)
}

// parseTimestamp accepts an RFC3339 string or epoch milliseconds. Absent
// means zero, which the chat use case replaces with now.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return time.Time{}, nil
	}

	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return time.Time{}, errors.Validation("Invalid timestamp")
		}
		if str == "" {
			return time.Time{}, nil
		}
		t, err := time.Parse(time.RFC3339Nano, str)
		if err != nil {
			return time.Time{}, errors.Validation("Invalid timestamp")
		}
		return t.UTC(), nil
	}

	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return time.Time{}, errors.Validation("Invalid timestamp")
		}
		ms = int64(f)
	}
	return time.UnixMilli(ms).UTC(), nil
}
