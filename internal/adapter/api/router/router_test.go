package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/adapter/api"
	"nexus/internal/adapter/api/handler"
	"nexus/internal/adapter/api/middleware"
	"nexus/internal/adapter/api/router"
	"nexus/internal/adapter/repository"
	"nexus/internal/domain/service"
	"nexus/internal/infrastructure/metrics"
	ws "nexus/internal/infrastructure/websocket"
	"nexus/internal/usecase"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newServer(t *testing.T) *echo.Echo {
	t.Helper()

	store := repository.NewMemoryStore()
	collector := metrics.NewCollector()
	guard := service.NewChatAccessGuard(store.Collaborations())
	chatUseCase := usecase.NewChatUseCase(store.Messages(), guard, usecase.EditPolicySender)

	manager := ws.NewManager(chatUseCase, ws.Options{Metrics: collector})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	manager.Start(ctx)

	handlers := handler.Setup(
		usecase.NewRequestUseCase(store.Requests(), store.Users(), manager, collector),
		usecase.NewCollaborationUseCase(store.Collaborations(), store.Users(), manager, collector),
		chatUseCase,
		usecase.NewUserUseCase(store.Users()),
		manager,
		"memory",
	)

	e := echo.New()
	e.Validator = api.NewValidator()
	e.Use(middleware.Metrics(collector))
	router.Setup(e, handlers, middleware.NewIdentityMiddleware(nil), collector)
	return e
}

func call(t *testing.T, e *echo.Echo, method, path string, body interface{}) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec.Code, env
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func TestWelcomeAndHealth(t *testing.T) {
	e := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Welcome to the Startup Platform API"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"store":"memory"`)
}

func TestRequestToChatOverHTTP(t *testing.T) {
	e := newServer(t)

	code, env := call(t, e, http.MethodPost, "/requests", map[string]string{
		"investorId": "inv", "entrepreneurId": "ent", "investorName": "Ivy",
	})
	require.Equal(t, http.StatusCreated, code)
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decode(t, env.Data, &created)
	assert.Equal(t, "pending", created.Status)

	code, env = call(t, e, http.MethodGet, "/requests?userId=ent", nil)
	require.Equal(t, http.StatusOK, code)
	var pending []map[string]interface{}
	decode(t, env.Data, &pending)
	assert.Len(t, pending, 1)

	code, env = call(t, e, http.MethodPut, "/requests/"+created.ID+"/accept", map[string]string{"id": "inv"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	code, env = call(t, e, http.MethodPut, "/requests/"+created.ID+"/accept", map[string]string{"id": "ent"})
	require.Equal(t, http.StatusOK, code)
	var accepted usecase.AcceptResult
	decode(t, env.Data, &accepted)
	assert.Equal(t, "Request accepted", accepted.Message)
	require.NotEmpty(t, accepted.ChatID)

	code, env = call(t, e, http.MethodPut, "/requests/"+created.ID+"/accept", map[string]string{"id": "ent"})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, e, http.MethodPost, "/messages", map[string]string{
		"chatId": accepted.ChatID, "senderId": "inv", "senderName": "Ivy", "content": "hello",
	})
	require.Equal(t, http.StatusCreated, code)

	code, env = call(t, e, http.MethodPost, "/messages", map[string]string{
		"chatId": accepted.ChatID, "senderId": "mallory", "senderName": "M", "text": "hi",
	})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Access denied: no accepted collaboration", env.Error.Message)

	code, env = call(t, e, http.MethodGet, "/messages/chat/"+accepted.ChatID+"?userId=ent", nil)
	require.Equal(t, http.StatusOK, code)
	var messages []struct {
		Text string `json:"text"`
	}
	decode(t, env.Data, &messages)
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Text)

	code, _ = call(t, e, http.MethodGet, "/messages/chat/"+accepted.ChatID+"?userId=mallory", nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = call(t, e, http.MethodGet, "/messages/chat/"+accepted.ChatID, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = call(t, e, http.MethodGet, "/collaborations?userId=inv", nil)
	require.Equal(t, http.StatusOK, code)
	var collabs []struct {
		ChatID string `json:"chatId"`
	}
	decode(t, env.Data, &collabs)
	require.Len(t, collabs, 1)
	assert.Equal(t, accepted.ChatID, collabs[0].ChatID)
}

func TestCreateRequestValidation(t *testing.T) {
	e := newServer(t)

	code, env := call(t, e, http.MethodPost, "/requests", map[string]string{
		"investorId": "inv", "entrepreneurId": "ent",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
	assert.Equal(t, "investorName is required", env.Error.Message)
}

func TestCollaborationConflictOnChat(t *testing.T) {
	e := newServer(t)

	code, env := call(t, e, http.MethodPost, "/collaborations", map[string]string{
		"requesterId": "a", "recipientId": "b", "chatId": "chat-1",
	})
	require.Equal(t, http.StatusCreated, code)
	var first struct {
		ID string `json:"id"`
	}
	decode(t, env.Data, &first)

	code, _ = call(t, e, http.MethodPut, "/collaborations/"+first.ID+"/accept", map[string]string{"id": "b"})
	require.Equal(t, http.StatusOK, code)

	code, env = call(t, e, http.MethodPost, "/collaborations", map[string]string{
		"requesterId": "a", "recipientId": "c", "chatId": "chat-1",
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", env.Error.Code)

	code, env = call(t, e, http.MethodPut, "/collaborations/"+first.ID, map[string]string{"status": "bogus", "userId": "a"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestMessageRoutesFallback(t *testing.T) {
	e := newServer(t)

	code, env := call(t, e, http.MethodGet, "/messages", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"message":"Chat endpoint is active"}`, string(env.Data))

	for _, path := range []string{"/messages/a/b/c", "/messages/x/y", "/messages/chat/x/y"} {
		code, env = call(t, e, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, code, path)
		require.NotNil(t, env.Error, path)
		assert.Equal(t, "Route not found", env.Error.Message, path)
	}

	code, env = call(t, e, http.MethodPost, "/messages/x/y", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Route not found", env.Error.Message)

	code, env = call(t, e, http.MethodGet, "/messages/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Message not found", env.Error.Message)
}

func TestUserRoutes(t *testing.T) {
	e := newServer(t)

	code, env := call(t, e, http.MethodPost, "/users", map[string]interface{}{
		"email": "ada@example.com", "password": "secret123", "role": "investor", "name": "Ada",
		"interests": []string{"fintech"},
	})
	require.Equal(t, http.StatusCreated, code)
	assert.NotContains(t, string(env.Data), "password")
	var user struct {
		ID        string   `json:"id"`
		Interests []string `json:"interests"`
	}
	decode(t, env.Data, &user)
	assert.Equal(t, []string{"fintech"}, user.Interests)

	code, env = call(t, e, http.MethodPost, "/users", map[string]interface{}{
		"email": "bob@example.com", "password": "secret123", "role": "admin", "name": "Bob",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "role must be one of: investor entrepreneur", env.Error.Message)

	code, env = call(t, e, http.MethodGet, "/users?role=wizard", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, `Invalid role. Must be "investor" or "entrepreneur"`, env.Error.Message)

	code, _ = call(t, e, http.MethodGet, "/users/email/ada@example.com", nil)
	assert.Equal(t, http.StatusOK, code)

	code, env = call(t, e, http.MethodPut, "/users/"+user.ID, map[string]interface{}{"bio": "Angel investor"})
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "Angel investor")

	code, _ = call(t, e, http.MethodDelete, "/users/"+user.ID, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = call(t, e, http.MethodGet, "/users/"+user.ID, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newServer(t)

	call(t, e, http.MethodPost, "/requests", map[string]string{
		"investorId": "inv", "entrepreneurId": "ent", "investorName": "Ivy",
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nexus_lifecycle_transitions_total")
	assert.Contains(t, rec.Body.String(), `route="/requests"`)
}
