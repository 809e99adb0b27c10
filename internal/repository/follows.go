package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type FollowsRepository interface {
	Toggle(ctx context.Context, tx *sqlx.Tx, followerID, followingID int64) (following bool, err error)
	IsFollowing(ctx context.Context, followerID, followingID int64) (bool, error)
	CountFollowers(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error)
}

type FollowsRepositoryImpl struct {
	db *sqlx.DB
}

func NewFollowsRepository(db *sqlx.DB) *FollowsRepositoryImpl {
	return &FollowsRepositoryImpl{db: db}
}

var _ FollowsRepository = (*FollowsRepositoryImpl)(nil)

func (r *FollowsRepositoryImpl) Toggle(ctx context.Context, tx *sqlx.Tx, followerID, followingID int64) (bool, error) {
	var following bool
	err := withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM follows WHERE follower_id = ? AND following_id = ?`, followerID, followingID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil || n > 0 {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO follows (follower_id, following_id, created_at) VALUES (?, ?, ?)`,
			followerID, followingID, Now())
		following = err == nil
		return err
	})
	return following, err
}

func (r *FollowsRepositoryImpl) IsFollowing(ctx context.Context, followerID, followingID int64) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM follows WHERE follower_id = ? AND following_id = ?`, followerID, followingID)
	return n > 0, err
}

func (r *FollowsRepositoryImpl) CountFollowers(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	var n int64
	err := pick(r.db, tx).GetContext(ctx, &n, `SELECT COUNT(*) FROM follows WHERE following_id = ?`, userID)
	return n, err
}
