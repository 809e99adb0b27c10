package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type LikesRepository interface {
	Toggle(ctx context.Context, tx *sqlx.Tx, userID, postID int64) (liked bool, err error)
	Count(ctx context.Context, tx *sqlx.Tx, postID int64) (int64, error)
}

type likesRepo struct{}

func NewLikesRepository() LikesRepository { return &likesRepo{} }

// Toggle flips the like; the (user_id, post_id) unique key backs the check.
func (r *likesRepo) Toggle(ctx context.Context, tx *sqlx.Tx, userID, postID int64) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM likes WHERE user_id = ? AND post_id = ?`, userID, postID)
	if err != nil {
		return false, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, err
	} else if n > 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO likes (user_id, post_id, created_at) VALUES (?, ?, ?)`,
		userID, postID, Now(),
	)
	return err == nil, err
}

func (r *likesRepo) Count(ctx context.Context, tx *sqlx.Tx, postID int64) (int64, error) {
	var n int64
	err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM likes WHERE post_id = ?`, postID)
	return n, err
}
