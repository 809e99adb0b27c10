package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/artverse/nova/internal/service/captions"
	"github.com/labstack/echo/v4"
)

func captionStatusHandler(svc *captions.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		st, err := svc.Status(c.Request().Context(), userID(c))
		if err != nil {
			return internalErr(c, "Failed to load caption usage", err)
		}
		return c.JSON(http.StatusOK, st)
	}
}

func captionGenerateHandler(svc *captions.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			ImageURL string `json:"imageUrl"`
		}
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad request")
		}

		out, usage, err := svc.Generate(c.Request().Context(), userID(c), req.ImageURL)
		switch {
		case errors.Is(err, captions.ErrMonthlyLimit):
			n := svc.Limit()
			return c.JSON(http.StatusTooManyRequests, map[string]any{
				"error":        fmt.Sprintf("Monthly limit reached (%d/%d)", n, n),
				"limitReached": true,
				"message": fmt.Sprintf("You've used all %d AI captions this month, resets on the 1st. "+
					"You can always write your own captions for free.", n),
			})
		case errors.Is(err, captions.ErrImageRequired):
			return errJSON(c, http.StatusBadRequest, "Image URL is required")
		case errors.Is(err, captions.ErrSubscriptionNeed):
			return errJSON(c, http.StatusPaymentRequired, "An active subscription is required for AI captions")
		case err != nil:
			return internalErr(c, "Failed to generate caption", err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"title":       out.Title,
			"description": out.Description,
			"usage":       usage,
		})
	}
}
