package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/artverse/nova/internal/http/middleware"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

func errJSON(c echo.Context, code int, msg string) error {
	return c.JSON(code, map[string]string{"error": msg})
}

// internalErr logs the cause and answers 500 with a client-safe message.
func internalErr(c echo.Context, msg string, err error) error {
	log.Errorf("%s %s: %s: %v", c.Request().Method, c.Path(), msg, err)
	return errJSON(c, http.StatusInternalServerError, msg)
}

func userID(c echo.Context) int64 {
	id, _ := middleware.UserID(c)
	return id
}

func pathID(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func queryInt(c echo.Context, name string) int {
	n, _ := strconv.Atoi(c.QueryParam(name))
	return n
}

// flexNumber accepts a JSON number or a numeric string.
type flexNumber float64

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", b)
	}
	*f = flexNumber(v)
	return nil
}

func (f *flexNumber) UnmarshalParam(s string) error {
	return f.UnmarshalJSON([]byte(s))
}
