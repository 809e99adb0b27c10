package middleware

import (
	"context"
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

const (
	ctxUserID     = "user_id"
	ctxAuthMethod = "auth_method"

	MethodJWT    = "jwt"
	MethodAPIKey = "api_key"
)

const authRequired = "Authentication required. Use Bearer <jwt> or x-api-key: av_..."

// TokenParser is satisfied by *auth.Tokens.
type TokenParser interface {
	Parse(raw string) (int64, error)
}

// KeyResolver is satisfied by *auth.Service; an unknown key resolves to 0.
type KeyResolver interface {
	ResolveAPIKey(ctx context.Context, key string) (int64, error)
}

// UserID returns the authenticated user set by Authenticate or OptionalAuth.
func UserID(c echo.Context) (int64, bool) {
	id, ok := c.Get(ctxUserID).(int64)
	return id, ok && id > 0
}

// AuthMethod is "jwt", "api_key" or empty.
func AuthMethod(c echo.Context) string {
	m, _ := c.Get(ctxAuthMethod).(string)
	return m
}

func bearer(c echo.Context) (string, bool) {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), true
}

// resolve tries the bearer JWT first, then an av_ key from the bearer value or X-API-Key.
func resolve(c echo.Context, tokens TokenParser, keys KeyResolver) (int64, string) {
	raw, hasBearer := bearer(c)
	if hasBearer {
		if id, err := tokens.Parse(raw); err == nil && id > 0 {
			return id, MethodJWT
		}
	}

	key := raw
	if !hasBearer || !strings.HasPrefix(key, "av_") {
		key = strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
	}
	if !strings.HasPrefix(key, "av_") {
		return 0, ""
	}
	id, err := keys.ResolveAPIKey(c.Request().Context(), key)
	if err != nil {
		log.Errorf("api key lookup: %v", err)
		return 0, ""
	}
	if id == 0 {
		return 0, ""
	}
	return id, MethodAPIKey
}

// Authenticate rejects requests without a valid JWT or API key.
func Authenticate(tokens TokenParser, keys KeyResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, method := resolve(c, tokens, keys)
			if id == 0 {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": authRequired})
			}
			c.Set(ctxUserID, id)
			c.Set(ctxAuthMethod, method)
			return next(c)
		}
	}
}

// OptionalAuth identifies the caller when it can and never rejects.
func OptionalAuth(tokens TokenParser, keys KeyResolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if id, method := resolve(c, tokens, keys); id > 0 {
				c.Set(ctxUserID, id)
				c.Set(ctxAuthMethod, method)
			}
			return next(c)
		}
	}
}
