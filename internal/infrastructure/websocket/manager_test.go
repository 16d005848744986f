package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/domain/entity"
	"nexus/internal/infrastructure/metrics"
	"nexus/internal/infrastructure/ratelimit"
	"nexus/internal/usecase"
	"nexus/pkg/errors"
)

type fakeChat struct {
	mu      sync.Mutex
	posted  []usecase.PostMessageInput
	callers []entity.CallerIdentity
	postErr error
	stored  map[string]*entity.Message
}

func newFakeChat() *fakeChat {
	return &fakeChat{stored: map[string]*entity.Message{}}
}

func (f *fakeChat) PostMessage(ctx context.Context, caller entity.CallerIdentity, input usecase.PostMessageInput) (*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.posted = append(f.posted, input)
	f.callers = append(f.callers, caller)
	if f.postErr != nil {
		return nil, f.postErr
	}
	msg := &entity.Message{
		ID:         "m-" + input.ChatID,
		ChatID:     input.ChatID,
		SenderID:   input.SenderID,
		SenderName: input.SenderName,
		Text:       input.Text,
		Timestamp:  input.Timestamp,
	}
	f.stored[msg.ID] = msg
	return msg, nil
}

func (f *fakeChat) MarkRead(ctx context.Context, messageID string) (*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	msg, ok := f.stored[messageID]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	msg.Read = true
	return msg, nil
}

type frame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

func startManager(t *testing.T, chat ChatService, opts Options) *Manager {
	t.Helper()
	m := NewManager(chat, opts)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	m.Start(ctx)
	return m
}

func register(m *Manager, id, userID string) *Client {
	c := &Client{ID: id, UserID: userID, Send: make(chan []byte, 16)}
	m.Register <- c
	return c
}

func recv(t *testing.T, c *Client) frame {
	t.Helper()
	select {
	case raw, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var f frame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(2 * time.Second):
		t.Fatalf("no frame for client %s", c.ID)
		return frame{}
	}
}

func expectNone(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected frame for client %s: %s", c.ID, raw)
	case <-time.After(100 * time.Millisecond):
	}
}

func inbound(t *testing.T, eventType string, data interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{"type": eventType, "data": data})
	require.NoError(t, err)
	return raw
}

func TestBroadcastSkipsExcludedClient(t *testing.T) {
	m := startManager(t, newFakeChat(), Options{})
	a := register(m, "a", "u1")
	b := register(m, "b", "u2")

	m.Broadcast("typing:c1", map[string]string{"chatId": "c1"}, a)

	assert.Equal(t, "typing:c1", recv(t, b).Type)
	expectNone(t, a)
}

func TestNotifyReachesEveryClient(t *testing.T) {
	m := startManager(t, newFakeChat(), Options{})
	a := register(m, "a", "u1")
	b := register(m, "b", "")

	m.Notify(usecase.EventRequestUpdated, usecase.UserUpdate{UserID: "u1"})

	for _, c := range []*Client{a, b} {
		f := recv(t, c)
		assert.Equal(t, "requestUpdated", f.Type)
		assert.JSONEq(t, `{"userId":"u1"}`, string(f.Data))
		assert.NotEmpty(t, f.Timestamp)
	}
}

func TestMessageBroadcastsToChatTopic(t *testing.T) {
	chat := newFakeChat()
	m := startManager(t, chat, Options{})
	a := register(m, "a", "u1")
	b := register(m, "b", "u2")

	m.HandleClientMessage(a, inbound(t, EventMessage, map[string]interface{}{
		"chatId":     "c1",
		"senderId":   "u1",
		"senderName": "Ada",
		"content":    "hello",
		"timestamp":  1700000000000,
	}))

	for _, c := range []*Client{a, b} {
		f := recv(t, c)
		assert.Equal(t, "chat:c1", f.Type)
		var msg entity.Message
		require.NoError(t, json.Unmarshal(f.Data, &msg))
		assert.Equal(t, "hello", msg.Text)
		assert.Equal(t, time.UnixMilli(1700000000000).UTC(), msg.Timestamp.UTC())
	}

	require.Len(t, chat.callers, 1)
	assert.Equal(t, "u1", chat.callers[0].UserID)
}

func TestMessageFailureGoesToOriginatorOnly(t *testing.T) {
	chat := newFakeChat()
	chat.postErr = errors.Forbidden("Access denied: no accepted collaboration", nil)
	m := startManager(t, chat, Options{})
	a := register(m, "a", "u1")
	b := register(m, "b", "u2")

	m.HandleClientMessage(a, inbound(t, EventMessage, map[string]string{
		"chatId": "c1", "senderId": "u1", "senderName": "Ada", "text": "hi",
	}))

	f := recv(t, a)
	assert.Equal(t, EventMessageError, f.Type)
	assert.JSONEq(t, `{"error":"Access denied: no accepted collaboration","chatId":"c1"}`, string(f.Data))
	expectNone(t, b)
}

func TestTypingExcludesSender(t *testing.T) {
	m := startManager(t, newFakeChat(), Options{})
	a := register(m, "a", "u1")
	b := register(m, "b", "u2")

	m.HandleClientMessage(a, inbound(t, EventStopTyping, TypingData{ChatID: "c1", UserID: "u1", UserName: "Ada"}))

	f := recv(t, b)
	assert.Equal(t, "stopTyping:c1", f.Type)
	assert.JSONEq(t, `{"chatId":"c1","userId":"u1","userName":"Ada"}`, string(f.Data))
	expectNone(t, a)
}

func TestTypingOverBudgetIsDropped(t *testing.T) {
	limiter := ratelimit.NewRateLimiter(map[string]ratelimit.Policy{
		ratelimit.ActionTyping: {PerMinute: 1, Burst: 1},
	})
	collector := metrics.NewCollector()
	m := startManager(t, newFakeChat(), Options{Limiter: limiter, Metrics: collector})
	a := register(m, "a", "u1")
	b := register(m, "b", "u2")

	payload := inbound(t, EventTyping, TypingData{ChatID: "c1", UserID: "u1"})
	m.HandleClientMessage(a, payload)
	m.HandleClientMessage(a, payload)

	assert.Equal(t, "typing:c1", recv(t, b).Type)
	expectNone(t, b)
	expectNone(t, a)
}

func TestMessageOverBudgetReportsError(t *testing.T) {
	limiter := ratelimit.NewRateLimiter(map[string]ratelimit.Policy{
		ratelimit.ActionMessage: {PerMinute: 1, Burst: 1},
	})
	chat := newFakeChat()
	m := startManager(t, chat, Options{Limiter: limiter})
	a := register(m, "a", "u1")

	payload := inbound(t, EventMessage, map[string]string{
		"chatId": "c1", "senderId": "u1", "senderName": "Ada", "text": "hi",
	})
	m.HandleClientMessage(a, payload)
	m.HandleClientMessage(a, payload)

	assert.Equal(t, "chat:c1", recv(t, a).Type)
	f := recv(t, a)
	assert.Equal(t, EventMessageError, f.Type)
	assert.Contains(t, string(f.Data), "Too many messages")
	assert.Len(t, chat.posted, 1)
}

func TestReadReceipts(t *testing.T) {
	chat := newFakeChat()
	chat.stored["m1"] = &entity.Message{ID: "m1", ChatID: "c1", Text: "hi"}
	m := startManager(t, chat, Options{})
	a := register(m, "a", "u1")
	b := register(m, "b", "u2")

	m.HandleClientMessage(a, inbound(t, EventRead, ReadData{MessageID: "m1", ChatID: "c1"}))
	for _, c := range []*Client{a, b} {
		f := recv(t, c)
		assert.Equal(t, "chat:c1", f.Type)
		assert.Contains(t, string(f.Data), `"read":true`)
	}

	m.HandleClientMessage(a, inbound(t, EventRead, ReadData{MessageID: "missing", ChatID: "c1"}))
	f := recv(t, a)
	assert.Equal(t, EventReadError, f.Type)
	assert.JSONEq(t, `{"error":"Message not found","messageId":"missing"}`, string(f.Data))
	expectNone(t, b)
}

func TestPingAndUnknownEvents(t *testing.T) {
	m := startManager(t, newFakeChat(), Options{})
	a := register(m, "a", "u1")

	m.HandleClientMessage(a, []byte(`{"type":"ping"}`))
	assert.Equal(t, EventPong, recv(t, a).Type)

	m.HandleClientMessage(a, []byte(`{"type":"dance"}`))
	assert.Equal(t, EventError, recv(t, a).Type)

	m.HandleClientMessage(a, []byte(`not json`))
	f := recv(t, a)
	assert.Equal(t, EventError, f.Type)
	assert.JSONEq(t, `{"error":"Invalid message format"}`, string(f.Data))
}

func TestUnregisterClosesSendOnce(t *testing.T) {
	m := startManager(t, newFakeChat(), Options{})
	a := register(m, "a", "u1")
	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	m.Unregister <- a
	m.Unregister <- a

	require.Eventually(t, func() bool { return m.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
	_, ok := <-a.Send
	assert.False(t, ok)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{name: "absent", raw: ``},
		{name: "null", raw: `null`},
		{name: "rfc3339", raw: `"2024-05-01T10:00:00+02:00"`, want: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)},
		{name: "millis", raw: `1700000000000`, want: time.UnixMilli(1700000000000).UTC()},
		{name: "garbage", raw: `"yesterday"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseTimestamp(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
		})
	}
}

func TestRoundTripOverWebSocket(t *testing.T) {
	chat := newFakeChat()
	m := startManager(t, chat, Options{})

	upgrader := gws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		m.Attach(conn, r.URL.Query().Get("userId"))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	alice, _, err := gws.DefaultDialer.Dial(url+"?userId=u1", nil)
	require.NoError(t, err)
	defer alice.Close()
	bob, _, err := gws.DefaultDialer.Dial(url+"?userId=u2", nil)
	require.NoError(t, err)
	defer bob.Close()

	require.Eventually(t, func() bool { return m.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, alice.WriteJSON(map[string]interface{}{
		"type": "message",
		"data": map[string]string{"chatId": "c1", "senderId": "u1", "senderName": "Ada", "text": "hello bob"},
	}))

	for _, conn := range []*gws.Conn{alice, bob} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var f frame
		require.NoError(t, conn.ReadJSON(&f))
		assert.Equal(t, "chat:c1", f.Type)
		assert.Contains(t, string(f.Data), "hello bob")
	}

	alice.Close()
	require.Eventually(t, func() bool { return m.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
}
