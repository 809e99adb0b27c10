package http

import (
	"errors"
	"net/http"

	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/repository"
	"github.com/artverse/nova/internal/service/social"
	"github.com/artverse/nova/internal/storage"
	"github.com/labstack/echo/v4"
)

func searchUsersHandler(svc *social.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		users, err := svc.SearchUsers(c.Request().Context(), c.QueryParam("q"))
		if err != nil {
			return internalErr(c, "Search failed", err)
		}
		return c.JSON(http.StatusOK, users)
	}
}

// updateProfileHandler treats a field as set when it is present in the form, even if empty.
func updateProfileHandler(svc *social.Service, uploads *storage.Uploads, maxAvatar int64) echo.HandlerFunc {
	return func(c echo.Context) error {
		var upd repository.ProfileUpdate

		if isMultipart(c) {
			form, err := c.MultipartForm()
			if err != nil {
				return errJSON(c, http.StatusBadRequest, "bad request")
			}
			if v, ok := form.Value["displayName"]; ok && len(v) > 0 {
				upd.DisplayName = &v[0]
			}
			if v, ok := form.Value["bio"]; ok && len(v) > 0 {
				upd.Bio = &v[0]
			}
			if files := form.File["avatar"]; len(files) > 0 {
				stored, err := uploads.SaveAvatar(files[0], maxAvatar)
				switch {
				case errors.Is(err, storage.ErrTooLarge):
					return errJSON(c, http.StatusRequestEntityTooLarge, "File too large")
				case errors.Is(err, storage.ErrUnsupported):
					return errJSON(c, http.StatusBadRequest, "Avatar must be an image")
				case err != nil:
					return internalErr(c, "Upload failed", err)
				}
				upd.Avatar = &stored.URL
			}
		} else {
			var req struct {
				DisplayName *string `json:"displayName" form:"displayName"`
				Bio         *string `json:"bio" form:"bio"`
			}
			if err := c.Bind(&req); err != nil {
				return errJSON(c, http.StatusBadRequest, "bad request")
			}
			upd.DisplayName, upd.Bio = req.DisplayName, req.Bio
		}

		u, err := svc.UpdateProfile(c.Request().Context(), userID(c), upd)
		if errors.Is(err, social.ErrNothingToSet) {
			return errJSON(c, http.StatusBadRequest, "Nothing to update")
		}
		if err != nil {
			if upd.Avatar != nil {
				_ = uploads.Remove(*upd.Avatar)
			}
			return internalErr(c, "Failed to update profile", err)
		}
		return c.JSON(http.StatusOK, u.Public())
	}
}

func profileHandler(svc *social.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		u, stats, following, err := svc.Profile(c.Request().Context(), c.Param("username"), userID(c))
		if errors.Is(err, social.ErrNotFound) {
			return errJSON(c, http.StatusNotFound, "User not found")
		}
		if err != nil {
			return internalErr(c, "Failed to load profile", err)
		}
		return c.JSON(http.StatusOK, u.Profile(stats, following))
	}
}

func userPostsHandler(svc *social.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		posts, err := svc.UserPosts(c.Request().Context(), c.Param("username"), userID(c), queryInt(c, "page"), queryInt(c, "limit"))
		if errors.Is(err, social.ErrNotFound) {
			return errJSON(c, http.StatusNotFound, "User not found")
		}
		if err != nil {
			return internalErr(c, "Failed to load posts", err)
		}
		return c.JSON(http.StatusOK, model.FormatPosts(posts))
	}
}

// followHandler answers {following, followers}; the agent surface renames following to collecting.
func followHandler(svc *social.Service, agent bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		following, followers, err := svc.ToggleFollow(c.Request().Context(), userID(c), c.Param("username"))
		switch {
		case errors.Is(err, social.ErrNotFound):
			return errJSON(c, http.StatusNotFound, "User not found")
		case errors.Is(err, social.ErrSelfFollow):
			return errJSON(c, http.StatusBadRequest, "Cannot follow yourself")
		case err != nil:
			return internalErr(c, "Failed to update follow", err)
		}
		if agent {
			return c.JSON(http.StatusOK, map[string]bool{"collecting": following})
		}
		return c.JSON(http.StatusOK, map[string]any{"following": following, "followers": followers})
	}
}
