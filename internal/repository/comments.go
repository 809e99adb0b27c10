package repository

import (
	"context"

	"github.com/artverse/nova/internal/model"
	"github.com/jmoiron/sqlx"
)

const commentSelect = `
	SELECT c.id, c.user_id, c.post_id, c.text, c.created_at,
	       u.username, u.display_name, u.avatar
	  FROM comments c
	  JOIN users u ON u.id = c.user_id
`

type CommentsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, c *model.Comment) (int64, error)
	Get(ctx context.Context, tx *sqlx.Tx, id int64) (*model.CommentView, error)
	ListByPost(ctx context.Context, postID int64) ([]model.CommentView, error)
	DeleteOwned(ctx context.Context, id, ownerID int64) (bool, error)
}

type CommentsRepositoryImpl struct {
	db *sqlx.DB
}

func NewCommentsRepository(db *sqlx.DB) *CommentsRepositoryImpl {
	return &CommentsRepositoryImpl{db: db}
}

var _ CommentsRepository = (*CommentsRepositoryImpl)(nil)

func (r *CommentsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, c *model.Comment) (int64, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = Now()
	}
	res, err := pick(r.db, tx).ExecContext(ctx,
		`INSERT INTO comments (user_id, post_id, text, created_at) VALUES (?, ?, ?, ?)`,
		c.UserID, c.PostID, c.Text, c.CreatedAt,
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	c.ID = id
	return id, nil
}

func (r *CommentsRepositoryImpl) Get(ctx context.Context, tx *sqlx.Tx, id int64) (*model.CommentView, error) {
	var v model.CommentView
	err := pick(r.db, tx).GetContext(ctx, &v, commentSelect+` WHERE c.id = ?`, id)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListByPost returns comments oldest first.
func (r *CommentsRepositoryImpl) ListByPost(ctx context.Context, postID int64) ([]model.CommentView, error) {
	out := []model.CommentView{}
	err := r.db.SelectContext(ctx, &out, commentSelect+`
		WHERE c.post_id = ?
		ORDER BY c.created_at ASC, c.id ASC
	`, postID)
	return out, err
}

func (r *CommentsRepositoryImpl) DeleteOwned(ctx context.Context, id, ownerID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM comments WHERE id = ? AND user_id = ?`, id, ownerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
