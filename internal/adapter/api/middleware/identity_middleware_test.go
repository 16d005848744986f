package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus/internal/domain/entity"
)

func TestIdentifyResolutionOrder(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
		body   string
		fields []string
		want   string
	}{
		{name: "header wins", target: "/x?userId=q", header: "h", body: `{"id":"b"}`, fields: []string{"id"}, want: "h"},
		{name: "query next", target: "/x?userId=q", body: `{"id":"b"}`, fields: []string{"id"}, want: "q"},
		{name: "body field", target: "/x", body: `{"id":"b"}`, fields: []string{"userId", "id"}, want: "b"},
		{name: "body ignored without fields", target: "/x", body: `{"id":"b"}`, want: ""},
		{name: "non-string body field", target: "/x", body: `{"id":42}`, fields: []string{"id"}, want: ""},
		{name: "malformed body", target: "/x", body: `{`, fields: []string{"id"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodPut, tt.target, strings.NewReader(tt.body))
			if tt.header != "" {
				req.Header.Set(HeaderUserID, tt.header)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var got entity.CallerIdentity
			var body string
			h := NewIdentityMiddleware(nil).Identify(tt.fields...)(func(c echo.Context) error {
				got = CallerFrom(c)
				raw, err := io.ReadAll(c.Request().Body)
				body = string(raw)
				return err
			})

			require.NoError(t, h(c))
			assert.Equal(t, tt.want, got.UserID)
			assert.Equal(t, tt.body, body, "body must still be readable by the handler")
		})
	}
}

func TestCallerFromWithoutMiddleware(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	assert.True(t, CallerFrom(c).IsZero())
}
