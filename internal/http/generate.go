package http

import (
	"errors"
	"net/http"

	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/service/generate"
	"github.com/labstack/echo/v4"
)

type generateReq struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model"`
}

func generateHandler(svc *generate.Service, kind model.GenerationKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req generateReq
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad request")
		}

		res, err := svc.Generate(c.Request().Context(), userID(c), kind, req.Prompt, req.Model)
		if err != nil {
			return generateErr(c, kind, err, "Prompt is required", "Replicate API token not configured.")
		}
		return c.JSON(http.StatusOK, map[string]any{
			"url":              res.URL,
			"model":            res.Model,
			"prompt":           res.Prompt,
			"creditsRemaining": res.CreditsRemaining,
		})
	}
}

// generateErr maps generation failures; the two surfaces word the 400 and 503 differently.
func generateErr(c echo.Context, kind model.GenerationKind, err error, emptyPrompt, notConfigured string) error {
	var short *generate.InsufficientCreditsError
	switch {
	case errors.Is(err, generate.ErrEmptyPrompt):
		return errJSON(c, http.StatusBadRequest, emptyPrompt)
	case errors.Is(err, generate.ErrNotConfigured):
		return errJSON(c, http.StatusServiceUnavailable, notConfigured)
	case errors.As(err, &short):
		return c.JSON(http.StatusPaymentRequired, map[string]any{
			"error":   "Not enough credits",
			"credits": short.Balance,
			"cost":    short.Cost,
		})
	default:
		return internalErr(c, "Failed to generate "+kind.String(), err)
	}
}

func modelsHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, generate.Models)
	}
}
