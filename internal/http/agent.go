package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/repository"
	"github.com/artverse/nova/internal/service/generate"
	"github.com/artverse/nova/internal/service/social"
	"github.com/labstack/echo/v4"
)

const analyticsWindow = 30 * 24 * time.Hour

type agentCreateReq struct {
	MediaURL  string `json:"mediaUrl"`
	MediaType string `json:"mediaType"`
	Caption   string `json:"caption"`
	AIModel   string `json:"aiModel"`
	AIPrompt  string `json:"aiPrompt"`
}

func agentCreateHandler(svc *social.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req agentCreateReq
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad request")
		}
		url := strings.TrimSpace(req.MediaURL)
		if url == "" {
			return errJSON(c, http.StatusBadRequest, "mediaUrl is required")
		}
		mt, ok := model.ParseMediaType(req.MediaType)
		if !ok {
			return errJSON(c, http.StatusBadRequest, `mediaType must be "image" or "video"`)
		}

		view, err := svc.CreatePost(c.Request().Context(), &model.Post{
			UserID:    userID(c),
			Caption:   req.Caption,
			MediaURL:  url,
			MediaType: mt,
			AIModel:   req.AIModel,
			AIPrompt:  req.AIPrompt,
		})
		if err != nil {
			return internalErr(c, "Failed to create post", err)
		}
		return c.JSON(http.StatusCreated, map[string]any{
			"id":      view.ID,
			"message": "Creation posted successfully",
			"url":     fmt.Sprintf("/api/posts/%d", view.ID),
		})
	}
}

func agentGenerateAndPostHandler(svc *generate.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			Prompt  string `json:"prompt"`
			Model   string `json:"model"`
			Type    string `json:"type"`
			Caption string `json:"caption"`
		}
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad request")
		}
		kind := model.KindImage
		if req.Type == model.KindVideo.String() {
			kind = model.KindVideo
		}

		res, post, err := svc.GenerateAndPost(c.Request().Context(), userID(c), kind, req.Prompt, req.Model, req.Caption)
		if err != nil {
			return generateErr(c, kind, err, "prompt is required", "Replicate API token not configured on server")
		}
		return c.JSON(http.StatusCreated, map[string]any{
			"id":        post.ID,
			"mediaUrl":  res.URL,
			"mediaType": kind,
			"model":     res.Model,
			"prompt":    res.Prompt,
			"message":   "Generated and posted successfully",
		})
	}
}

// agentMe renames the follow counters the way the agent surface talks about them.
type agentMe struct {
	model.PublicUser
	DisplayNameSnake string    `json:"display_name"`
	Credits          int64     `json:"credits"`
	CreatedAt        time.Time `json:"created_at"`
	Creations        int64     `json:"creations"`
	Collectors       int64     `json:"collectors"`
	Collecting       int64     `json:"collecting"`
	AICreations      int64     `json:"aiCreations"`
}

func agentMeHandler(svc *social.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		u, stats, err := svc.AgentProfile(c.Request().Context(), userID(c))
		if errors.Is(err, social.ErrNotFound) {
			return errJSON(c, http.StatusNotFound, "User not found")
		}
		if err != nil {
			return internalErr(c, "Failed to load profile", err)
		}
		return c.JSON(http.StatusOK, agentMe{
			PublicUser:       u.Public(),
			DisplayNameSnake: u.DisplayName,
			Credits:          u.Credits,
			CreatedAt:        u.CreatedAt,
			Creations:        stats.PostCount,
			Collectors:       stats.Followers,
			Collecting:       stats.Following,
			AICreations:      stats.AICreations,
		})
	}
}

func agentCreationsHandler(svc *social.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit, offset := queryInt(c, "limit"), queryInt(c, "offset")
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}
		if offset < 0 {
			offset = 0
		}
		posts, err := svc.Creations(c.Request().Context(), userID(c), limit, offset)
		if err != nil {
			return internalErr(c, "Failed to load creations", err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"creations": model.FormatPosts(posts),
			"limit":     limit,
			"offset":    offset,
		})
	}
}

func agentAnalyticsHandler(ch repository.CHEventsRepository) echo.HandlerFunc {
	return func(c echo.Context) error {
		if ch == nil {
			return errJSON(c, http.StatusServiceUnavailable, "Analytics not configured")
		}
		since := repository.Now().Add(-analyticsWindow)
		counts, err := ch.CountsByOwner(c.Request().Context(), userID(c), since)
		if err != nil {
			return internalErr(c, "Failed to load analytics", err)
		}
		return c.JSON(http.StatusOK, map[string]any{
			"since":  since,
			"counts": counts,
		})
	}
}
