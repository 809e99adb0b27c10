package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type VerificationRepository interface {
	// Issue invalidates every unused code for the user, then stores the new one.
	Issue(ctx context.Context, userID int64, code string, expiresAt time.Time) error
	// Consume marks a valid, unused, unexpired code as used. Returns false when none matched.
	Consume(ctx context.Context, tx *sqlx.Tx, userID int64, code string, now time.Time) (bool, error)
	HasPending(ctx context.Context, userID int64, now time.Time) (bool, error)
	IssuedSince(ctx context.Context, userID int64, since time.Time) (bool, error)
}

type VerificationRepositoryImpl struct {
	db *sqlx.DB
}

func NewVerificationRepository(db *sqlx.DB) *VerificationRepositoryImpl {
	return &VerificationRepositoryImpl{db: db}
}

var _ VerificationRepository = (*VerificationRepositoryImpl)(nil)

func (r *VerificationRepositoryImpl) Issue(ctx context.Context, userID int64, code string, expiresAt time.Time) error {
	return withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE verification_codes SET used = 1 WHERE user_id = ? AND used = 0`, userID,
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO verification_codes (user_id, code, used, expires_at, created_at)
			VALUES (?, ?, 0, ?, ?)
		`, userID, code, expiresAt.UTC(), Now())
		return err
	})
}

func (r *VerificationRepositoryImpl) Consume(ctx context.Context, tx *sqlx.Tx, userID int64, code string, now time.Time) (bool, error) {
	res, err := pick(r.db, tx).ExecContext(ctx, `
		UPDATE verification_codes SET used = 1
		 WHERE user_id = ? AND code = ? AND used = 0 AND expires_at > ?
	`, userID, code, now.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *VerificationRepositoryImpl) HasPending(ctx context.Context, userID int64, now time.Time) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM verification_codes
		 WHERE user_id = ? AND used = 0 AND expires_at > ?
	`, userID, now.UTC())
	return n > 0, err
}

func (r *VerificationRepositoryImpl) IssuedSince(ctx context.Context, userID int64, since time.Time) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM verification_codes
		 WHERE user_id = ? AND used = 0 AND created_at > ?
	`, userID, since.UTC())
	return n > 0, err
}
