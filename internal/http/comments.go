package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/service/social"
	"github.com/labstack/echo/v4"
)

func listCommentsHandler(svc *social.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		postID, ok := pathID(c, "postId")
		if !ok {
			return c.JSON(http.StatusOK, []model.FormattedComment{})
		}
		views, err := svc.Comments(c.Request().Context(), postID)
		if err != nil {
			return internalErr(c, "Failed to load comments", err)
		}
		out := make([]model.FormattedComment, 0, len(views))
		for _, v := range views {
			out = append(out, v.Format())
		}
		return c.JSON(http.StatusOK, out)
	}
}

// addCommentHandler serves both /api/comments and the agent surface, which answers with a short ack.
func addCommentHandler(svc *social.Service, agent bool) echo.HandlerFunc {
	required := "Comment text is required"
	if agent {
		required = "text is required"
	}
	return func(c echo.Context) error {
		var req struct {
			Text string `json:"text"`
		}
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad request")
		}
		if strings.TrimSpace(req.Text) == "" {
			return errJSON(c, http.StatusBadRequest, required)
		}
		postID, ok := pathID(c, "postId")
		if !ok {
			return errJSON(c, http.StatusNotFound, "Post not found")
		}
		view, err := svc.AddComment(c.Request().Context(), userID(c), postID, req.Text)
		if errors.Is(err, social.ErrNotFound) {
			return errJSON(c, http.StatusNotFound, "Post not found")
		}
		if err != nil {
			return internalErr(c, "Failed to add comment", err)
		}
		if agent {
			return c.JSON(http.StatusCreated, map[string]any{"id": view.ID, "text": view.Text, "message": "Comment added"})
		}
		return c.JSON(http.StatusCreated, view.Format())
	}
}

func deleteCommentHandler(svc *social.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c, "id")
		if !ok {
			return errJSON(c, http.StatusNotFound, "Comment not found or unauthorized")
		}
		err := svc.DeleteComment(c.Request().Context(), userID(c), id)
		if errors.Is(err, social.ErrNotFound) {
			return errJSON(c, http.StatusNotFound, "Comment not found or unauthorized")
		}
		if err != nil {
			return internalErr(c, "Failed to delete comment", err)
		}
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	}
}
