package http

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/artverse/nova/internal/storage"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
)

func docsHandler(path string) echo.HandlerFunc {
	return func(c echo.Context) error {
		b, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return errJSON(c, http.StatusNotFound, "Docs not found")
		}
		if err != nil {
			return internalErr(c, "Failed to read docs", err)
		}
		return c.Blob(http.StatusOK, echo.MIMETextPlainCharsetUTF8, b)
	}
}

// spaMiddleware serves the built client and falls back to index.html for client-side routes.
// It stays out of the way when the client was not built.
func spaMiddleware(dist string) echo.MiddlewareFunc {
	if _, err := os.Stat(dist); err != nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return echoMid.StaticWithConfig(echoMid.StaticConfig{
		Root:  dist,
		HTML5: true,
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return strings.HasPrefix(p, "/api") ||
				strings.HasPrefix(p, storage.URLPrefix) ||
				p == "/healthz" || p == "/metrics"
		},
	})
}
