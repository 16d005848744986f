package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"github.com/labstack/echo/v4"

	"nexus/internal/domain/entity"
)

const (
	HeaderUserID = "X-User-ID"
	callerKey    = "caller"
)

// IdentityResolver turns a request into the identity of its caller. The
// default trusts what the client says; a token based resolver can replace it.
type IdentityResolver interface {
	Resolve(c echo.Context, bodyFields []string) (entity.CallerIdentity, error)
}

// TrustedCallerResolver looks at the X-User-ID header, then the userId query
// parameter, then the named fields of a JSON body.
type TrustedCallerResolver struct{}

func (TrustedCallerResolver) Resolve(c echo.Context, bodyFields []string) (entity.CallerIdentity, error) {
	if id := strings.TrimSpace(c.Request().Header.Get(HeaderUserID)); id != "" {
		return entity.CallerIdentity{UserID: id}, nil
	}
	if id := strings.TrimSpace(c.QueryParam("userId")); id != "" {
		return entity.CallerIdentity{UserID: id}, nil
	}
	if len(bodyFields) == 0 {
		return entity.CallerIdentity{}, nil
	}

	body, err := peekBody(c)
	if err != nil || len(body) == 0 {
		return entity.CallerIdentity{}, nil
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return entity.CallerIdentity{}, nil
	}
	for _, name := range bodyFields {
		if id, ok := fields[name].(string); ok && strings.TrimSpace(id) != "" {
			return entity.CallerIdentity{UserID: strings.TrimSpace(id)}, nil
		}
	}
	return entity.CallerIdentity{}, nil
}

// peekBody reads the request body and puts it back for the handler's Bind.
func peekBody(c echo.Context) ([]byte, error) {
	req := c.Request()
	if req.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(body))
	return body, err
}

type IdentityMiddleware struct {
	resolver IdentityResolver
}

func NewIdentityMiddleware(resolver IdentityResolver) *IdentityMiddleware {
	if resolver == nil {
		resolver = TrustedCallerResolver{}
	}
	return &IdentityMiddleware{resolver: resolver}
}

// Identify stores the caller in the echo context. A missing identity is not
// an error here; each operation decides whether it needs one.
func (m *IdentityMiddleware) Identify(bodyFields ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, err := m.resolver.Resolve(c, bodyFields)
			if err != nil {
				return err
			}
			c.Set(callerKey, caller)
			return next(c)
		}
	}
}

// CallerFrom returns the identity Identify stored, or the zero identity.
func CallerFrom(c echo.Context) entity.CallerIdentity {
	caller, _ := c.Get(callerKey).(entity.CallerIdentity)
	return caller
}
