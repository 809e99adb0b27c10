package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	echo "github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct{}

func (fakeTokens) Parse(raw string) (int64, error) {
	if raw == "good-jwt" {
		return 7, nil
	}
	return 0, errors.New("bad token")
}

type fakeKeys struct{ calls int }

func (k *fakeKeys) ResolveAPIKey(_ context.Context, key string) (int64, error) {
	k.calls++
	if key == "av_valid" {
		return 9, nil
	}
	return 0, nil
}

func whoami(c echo.Context) error {
	id, ok := UserID(c)
	return c.JSON(http.StatusOK, map[string]any{"id": id, "ok": ok, "method": AuthMethod(c)})
}

func serve(mw echo.MiddlewareFunc, setup func(r *http.Request)) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	setup(req)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = mw(whoami)(c)
	return rec
}

func TestAuthenticate(t *testing.T) {
	keys := &fakeKeys{}
	mw := Authenticate(fakeTokens{}, keys)

	rec := serve(mw, func(r *http.Request) { r.Header.Set("Authorization", "Bearer good-jwt") })
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":7,"ok":true,"method":"jwt"}`, rec.Body.String())
	assert.Zero(t, keys.calls)

	rec = serve(mw, func(r *http.Request) { r.Header.Set("Authorization", "Bearer av_valid") })
	assert.JSONEq(t, `{"id":9,"ok":true,"method":"api_key"}`, rec.Body.String())

	rec = serve(mw, func(r *http.Request) { r.Header.Set("X-API-Key", "av_valid") })
	assert.JSONEq(t, `{"id":9,"ok":true,"method":"api_key"}`, rec.Body.String())

	// an expired JWT still lets the API key header through
	rec = serve(mw, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer stale")
		r.Header.Set("X-API-Key", "av_valid")
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(mw, func(r *http.Request) { r.Header.Set("X-API-Key", "av_unknown") })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authentication required")

	rec = serve(mw, func(*http.Request) {})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalAuth(t *testing.T) {
	mw := OptionalAuth(fakeTokens{}, &fakeKeys{})

	rec := serve(mw, func(*http.Request) {})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":0,"ok":false,"method":""}`, rec.Body.String())

	rec = serve(mw, func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") })
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(mw, func(r *http.Request) { r.Header.Set("X-API-Key", "av_valid") })
	assert.JSONEq(t, `{"id":9,"ok":true,"method":"api_key"}`, rec.Body.String())
}

func TestRateLimitPassThrough(t *testing.T) {
	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

	// no redis
	h := RateLimitMiddleware(RateLimitConfig{RPS: 1})(ok)
	for i := 0; i < 3; i++ {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.Set(ctxUserID, int64(1))
		c.Set(ctxAuthMethod, MethodAPIKey)
		require.NoError(t, h(c))
		assert.Equal(t, http.StatusNoContent, c.Response().Status)
	}

	// unreachable redis fails open
	rds := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	defer rds.Close()
	h = RateLimitMiddleware(RateLimitConfig{Redis: rds, RPS: 1})(ok)
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.Set(ctxUserID, int64(1))
	c.Set(ctxAuthMethod, MethodAPIKey)
	require.NoError(t, h(c))
	assert.Equal(t, http.StatusNoContent, c.Response().Status)
}

func TestRateLimitWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rds := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rds.Close()

	e := echo.New()
	ok := func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }
	h := RateLimitMiddleware(RateLimitConfig{Redis: rds, RPS: 2, Window: time.Hour, RetryAfterHint: true})(ok)

	call := func(userID int64, method string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		c.Set(ctxUserID, userID)
		c.Set(ctxAuthMethod, method)
		require.NoError(t, h(c))
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call(1, MethodAPIKey).Code)
	assert.Equal(t, http.StatusNoContent, call(1, MethodAPIKey).Code)

	rec := call(1, MethodAPIKey)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"Rate limit exceeded"}`, rec.Body.String())
	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.True(t, retry >= 1 && retry <= 3600, retry)

	// sessions and other keys have their own budget
	assert.Equal(t, http.StatusNoContent, call(1, MethodJWT).Code)
	assert.Equal(t, http.StatusNoContent, call(2, MethodAPIKey).Code)

	keys := mr.Keys()
	require.Len(t, keys, 2)
	assert.Contains(t, keys[0], "rl:agent:1:")
	assert.True(t, mr.TTL(keys[0]) > 0)
}

func TestIPLimiter(t *testing.T) {
	l := NewIPLimiter(1, 2)
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))

	now = now.Add(time.Second)
	assert.True(t, l.Allow("10.0.0.1"))

	e := echo.New()
	h := l.Middleware()(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	require.NoError(t, h(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
