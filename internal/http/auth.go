package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/artverse/nova/internal/service/auth"
	"github.com/artverse/nova/internal/util"
	"github.com/labstack/echo/v4"
)

type registerReq struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

func registerHandler(svc *auth.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req registerReq
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad request")
		}
		req.Username = strings.TrimSpace(req.Username)
		req.Email = strings.TrimSpace(req.Email)

		switch {
		case req.Username == "" || req.Email == "" || req.Password == "":
			return errJSON(c, http.StatusBadRequest, "Username, email, and password are required")
		case len(req.Password) < 6:
			return errJSON(c, http.StatusBadRequest, "Password must be at least 6 characters")
		case !util.ValidUsername(req.Username):
			return errJSON(c, http.StatusBadRequest, "Username can only contain letters, numbers, and underscores")
		case !util.ValidEmail(req.Email):
			return errJSON(c, http.StatusBadRequest, "Please enter a valid email address")
		}

		u, token, err := svc.Register(c.Request().Context(), auth.RegisterInput{
			Username:    req.Username,
			Email:       req.Email,
			Password:    req.Password,
			DisplayName: req.DisplayName,
		})
		if errors.Is(err, auth.ErrTaken) {
			return errJSON(c, http.StatusConflict, "Username or email already taken")
		}
		if err != nil {
			return internalErr(c, "Registration failed", err)
		}
		return c.JSON(http.StatusCreated, map[string]any{"token": token, "user": u.Public()})
	}
}

type loginReq struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func loginHandler(svc *auth.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req loginReq
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad request")
		}
		if strings.TrimSpace(req.Login) == "" || req.Password == "" {
			return errJSON(c, http.StatusBadRequest, "Login and password are required")
		}
		u, token, err := svc.Login(c.Request().Context(), req.Login, req.Password)
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return errJSON(c, http.StatusUnauthorized, "Invalid credentials")
		}
		if err != nil {
			return internalErr(c, "Login failed", err)
		}
		return c.JSON(http.StatusOK, map[string]any{"token": token, "user": u.Public()})
	}
}

func verifyEmailHandler(svc *auth.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			Code string `json:"code"`
		}
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad request")
		}
		if strings.TrimSpace(req.Code) == "" {
			return errJSON(c, http.StatusBadRequest, "Verification code is required")
		}
		already, err := svc.VerifyEmail(c.Request().Context(), userID(c), req.Code)
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			return errJSON(c, http.StatusNotFound, "User not found")
		case errors.Is(err, auth.ErrInvalidCode):
			return errJSON(c, http.StatusBadRequest, "Invalid or expired code. Request a new one.")
		case err != nil:
			return internalErr(c, "Verification failed", err)
		case already:
			return c.JSON(http.StatusOK, map[string]any{"verified": true, "message": "Already verified"})
		}
		return c.JSON(http.StatusOK, map[string]any{"verified": true, "message": "Email verified!"})
	}
}

func resendCodeHandler(svc *auth.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		u, already, err := svc.ResendCode(c.Request().Context(), userID(c))
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			return errJSON(c, http.StatusNotFound, "User not found")
		case errors.Is(err, auth.ErrCooldown):
			return errJSON(c, http.StatusTooManyRequests, "Please wait a minute before requesting a new code")
		case err != nil:
			return internalErr(c, "Could not send code", err)
		case already:
			return c.JSON(http.StatusOK, map[string]string{"message": "Already verified"})
		}
		return c.JSON(http.StatusOK, map[string]string{"message": "New code sent to " + u.Email})
	}
}

func meHandler(svc *auth.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		u, stats, err := svc.Me(c.Request().Context(), userID(c))
		if errors.Is(err, auth.ErrUserNotFound) {
			return errJSON(c, http.StatusNotFound, "User not found")
		}
		if err != nil {
			return internalErr(c, "Failed to load profile", err)
		}
		return c.JSON(http.StatusOK, u.Me(stats))
	}
}

func createAPIKeyHandler(svc *auth.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			Name string `json:"name"`
		}
		_ = c.Bind(&req)
		key, k, err := svc.CreateAPIKey(c.Request().Context(), userID(c), req.Name)
		if err != nil {
			return internalErr(c, "Failed to create API key", err)
		}
		return c.JSON(http.StatusOK, map[string]string{
			"key":     key,
			"prefix":  k.KeyPrefix,
			"name":    k.Name,
			"message": "Store this key safely. It will not be shown again.",
		})
	}
}

func listAPIKeysHandler(svc *auth.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		keys, err := svc.ListAPIKeys(c.Request().Context(), userID(c))
		if err != nil {
			return internalErr(c, "Failed to list API keys", err)
		}
		return c.JSON(http.StatusOK, keys)
	}
}

func deleteAPIKeyHandler(svc *auth.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c, "id")
		if !ok {
			return c.JSON(http.StatusOK, map[string]bool{"success": true})
		}
		if _, err := svc.DeleteAPIKey(c.Request().Context(), userID(c), id); err != nil {
			return internalErr(c, "Failed to delete API key", err)
		}
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	}
}
