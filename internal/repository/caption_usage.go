package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type CaptionUsageRepository interface {
	CountSince(ctx context.Context, userID int64, since time.Time) (int, error)
	Record(ctx context.Context, userID int64) error
}

type CaptionUsageRepositoryImpl struct {
	db *sqlx.DB
}

func NewCaptionUsageRepository(db *sqlx.DB) *CaptionUsageRepositoryImpl {
	return &CaptionUsageRepositoryImpl{db: db}
}

var _ CaptionUsageRepository = (*CaptionUsageRepositoryImpl)(nil)

func (r *CaptionUsageRepositoryImpl) CountSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM caption_usage WHERE user_id = ? AND created_at >= ?`, userID, since.UTC())
	return n, err
}

func (r *CaptionUsageRepositoryImpl) Record(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO caption_usage (user_id, created_at) VALUES (?, ?)`, userID, Now())
	return err
}
