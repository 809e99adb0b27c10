package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/service/social"
	"github.com/artverse/nova/internal/storage"
	"github.com/labstack/echo/v4"
)

type createPostReq struct {
	Caption   string `json:"caption" form:"caption"`
	AIModel   string `json:"aiModel" form:"aiModel"`
	AIPrompt  string `json:"aiPrompt" form:"aiPrompt"`
	MediaURL  string `json:"mediaUrl" form:"mediaUrl"`
	MediaType string `json:"mediaType" form:"mediaType"`
}

func isMultipart(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

func createPostHandler(svc *social.Service, uploads *storage.Uploads, maxBytes int64) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createPostReq
		if err := c.Bind(&req); err != nil {
			return errJSON(c, http.StatusBadRequest, "bad request")
		}

		p := &model.Post{
			UserID:   userID(c),
			Caption:  req.Caption,
			AIModel:  req.AIModel,
			AIPrompt: req.AIPrompt,
		}

		var fileURL string
		if isMultipart(c) {
			if fh, err := c.FormFile("media"); err == nil {
				stored, err := uploads.SaveMedia(fh, maxBytes)
				switch {
				case errors.Is(err, storage.ErrTooLarge):
					return errJSON(c, http.StatusRequestEntityTooLarge, "File too large")
				case errors.Is(err, storage.ErrUnsupported):
					// non-media uploads are ignored, as if no file was sent
				case err != nil:
					return internalErr(c, "Upload failed", err)
				default:
					fileURL = stored.URL
					p.MediaURL, p.MediaType = stored.URL, stored.MediaType
				}
			}
		}

		if p.MediaURL == "" {
			url := strings.TrimSpace(req.MediaURL)
			if url == "" {
				return errJSON(c, http.StatusBadRequest, "Media file or URL is required")
			}
			mt := model.MediaImage
			if req.MediaType != "" {
				parsed, ok := model.ParseMediaType(req.MediaType)
				if !ok {
					return errJSON(c, http.StatusBadRequest, `mediaType must be "image" or "video"`)
				}
				mt = parsed
			}
			p.MediaURL, p.MediaType = url, mt
		}

		view, err := svc.CreatePost(c.Request().Context(), p)
		if err != nil {
			if fileURL != "" {
				_ = uploads.Remove(fileURL)
			}
			return internalErr(c, "Failed to create post", err)
		}
		return c.JSON(http.StatusCreated, view.Format())
	}
}

func feedHandler(svc *social.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		posts, err := svc.Feed(c.Request().Context(), userID(c), queryInt(c, "page"), queryInt(c, "limit"))
		if err != nil {
			return internalErr(c, "Failed to load feed", err)
		}
		return c.JSON(http.StatusOK, model.FormatPosts(posts))
	}
}

func exploreHandler(svc *social.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		posts, err := svc.Explore(c.Request().Context(), userID(c), queryInt(c, "page"), queryInt(c, "limit"))
		if err != nil {
			return internalErr(c, "Failed to load posts", err)
		}
		return c.JSON(http.StatusOK, model.FormatPosts(posts))
	}
}

func getPostHandler(svc *social.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c, "id")
		if !ok {
			return errJSON(c, http.StatusNotFound, "Post not found")
		}
		post, err := svc.Post(c.Request().Context(), id, userID(c))
		if errors.Is(err, social.ErrNotFound) {
			return errJSON(c, http.StatusNotFound, "Post not found")
		}
		if err != nil {
			return internalErr(c, "Failed to load post", err)
		}
		return c.JSON(http.StatusOK, post.Format())
	}
}

func likeHandler(svc *social.Service, param string) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, ok := pathID(c, param)
		if !ok {
			return errJSON(c, http.StatusNotFound, "Post not found")
		}
		liked, count, err := svc.ToggleLike(c.Request().Context(), userID(c), id)
		if errors.Is(err, social.ErrNotFound) {
			return errJSON(c, http.StatusNotFound, "Post not found")
		}
		if err != nil {
			return internalErr(c, "Failed to update like", err)
		}
		return c.JSON(http.StatusOK, map[string]any{"liked": liked, "likeCount": count})
	}
}

// deletePostHandler removes an owned post and its uploaded media; the agent surface calls posts creations.
func deletePostHandler(svc *social.Service, uploads *storage.Uploads, agent bool) echo.HandlerFunc {
	notFound := "Post not found or unauthorized"
	if agent {
		notFound = "Creation not found"
	}
	return func(c echo.Context) error {
		id, ok := pathID(c, "id")
		if !ok {
			return errJSON(c, http.StatusNotFound, notFound)
		}
		ctx := c.Request().Context()
		post, err := svc.Post(ctx, id, 0)
		if errors.Is(err, social.ErrNotFound) {
			return errJSON(c, http.StatusNotFound, notFound)
		}
		if err != nil {
			return internalErr(c, "Failed to delete post", err)
		}
		err = svc.DeletePost(ctx, userID(c), id)
		if errors.Is(err, social.ErrNotFound) {
			return errJSON(c, http.StatusNotFound, notFound)
		}
		if err != nil {
			return internalErr(c, "Failed to delete post", err)
		}
		// other posts or avatars may share the URL
		if svc.MediaReleased(ctx, post.MediaURL) {
			_ = uploads.Remove(post.MediaURL)
		}
		if agent {
			return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "Creation deleted"})
		}
		return c.JSON(http.StatusOK, map[string]bool{"success": true})
	}
}
