package model

import "time"

type Comment struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	PostID    int64     `db:"post_id"`
	Text      string    `db:"text"`
	CreatedAt time.Time `db:"created_at"`
}

// CommentView is a comment joined with its author.
type CommentView struct {
	Comment
	Username    string `db:"username"`
	DisplayName string `db:"display_name"`
	Avatar      string `db:"avatar"`
}

type FormattedComment struct {
	ID        int64       `json:"id"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"createdAt"`
	User      UserSummary `json:"user"`
}

func (c CommentView) Format() FormattedComment {
	return FormattedComment{
		ID:        c.ID,
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
		User: UserSummary{
			ID:          c.UserID,
			Username:    c.Username,
			DisplayName: c.DisplayName,
			Avatar:      c.Avatar,
		},
	}
}
