package model

import (
	"strings"
	"time"
)

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

func (t MediaType) String() string { return string(t) }

func (t MediaType) Valid() bool { return t == MediaImage || t == MediaVideo }

// ParseMediaType normalizes input; empty => image.
// Returns (value, true) if valid; otherwise (image, false).
func ParseMediaType(s string) (MediaType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "image":
		return MediaImage, true
	case "video":
		return MediaVideo, true
	default:
		return MediaImage, false
	}
}

// MediaTypeFromMIME maps an upload content type to a media type.
func MediaTypeFromMIME(mime string) (MediaType, bool) {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return MediaImage, true
	case strings.HasPrefix(mime, "video/"):
		return MediaVideo, true
	default:
		return "", false
	}
}

// Post is the DB entity persisted in the posts table.
type Post struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	Caption   string    `db:"caption"`
	MediaURL  string    `db:"media_url"`
	MediaType MediaType `db:"media_type"`
	AIModel   string    `db:"ai_model"`
	AIPrompt  string    `db:"ai_prompt"`
	CreatedAt time.Time `db:"created_at"`
}

// PostView is a post joined with its author and engagement counters,
// as seen by a particular viewer.
type PostView struct {
	Post
	Username     string `db:"username"`
	DisplayName  string `db:"display_name"`
	Avatar       string `db:"avatar"`
	LikeCount    int64  `db:"like_count"`
	CommentCount int64  `db:"comment_count"`
	IsLiked      bool   `db:"is_liked"`
}

// FormattedPost is the API representation of a post.
type FormattedPost struct {
	ID           int64       `json:"id"`
	Caption      string      `json:"caption"`
	MediaURL     string      `json:"mediaUrl"`
	MediaType    MediaType   `json:"mediaType"`
	AIModel      string      `json:"aiModel"`
	AIPrompt     string      `json:"aiPrompt"`
	CreatedAt    time.Time   `json:"createdAt"`
	LikeCount    int64       `json:"likeCount"`
	CommentCount int64       `json:"commentCount"`
	IsLiked      bool        `json:"isLiked"`
	User         UserSummary `json:"user"`
}

func (p PostView) Format() FormattedPost {
	return FormattedPost{
		ID:           p.ID,
		Caption:      p.Caption,
		MediaURL:     p.MediaURL,
		MediaType:    p.MediaType,
		AIModel:      p.AIModel,
		AIPrompt:     p.AIPrompt,
		CreatedAt:    p.CreatedAt,
		LikeCount:    p.LikeCount,
		CommentCount: p.CommentCount,
		IsLiked:      p.IsLiked,
		User: UserSummary{
			ID:          p.UserID,
			Username:    p.Username,
			DisplayName: p.DisplayName,
			Avatar:      p.Avatar,
		},
	}
}

func FormatPosts(views []PostView) []FormattedPost {
	out := make([]FormattedPost, 0, len(views))
	for _, v := range views {
		out = append(out, v.Format())
	}
	return out
}
