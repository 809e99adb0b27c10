package repository

import (
	"context"

	"github.com/artverse/nova/internal/model"
	"github.com/jmoiron/sqlx"
)

type APIKeysRepository interface {
	// Replace drops any key with the same name for the user before inserting the new one.
	Replace(ctx context.Context, k *model.APIKey) error
	ListByUser(ctx context.Context, userID int64) ([]model.APIKey, error)
	DeleteOwned(ctx context.Context, id, userID int64) (bool, error)
	// UserIDByHash returns 0 when no key matches.
	UserIDByHash(ctx context.Context, hash string) (int64, error)
	Touch(ctx context.Context, hash string) error
}

type APIKeysRepositoryImpl struct {
	db *sqlx.DB
}

func NewAPIKeysRepository(db *sqlx.DB) *APIKeysRepositoryImpl {
	return &APIKeysRepositoryImpl{db: db}
}

var _ APIKeysRepository = (*APIKeysRepositoryImpl)(nil)

func (r *APIKeysRepositoryImpl) Replace(ctx context.Context, k *model.APIKey) error {
	if k.CreatedAt.IsZero() {
		k.CreatedAt = Now()
	}
	return withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM api_keys WHERE user_id = ? AND name = ?`, k.UserID, k.Name,
		); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO api_keys (user_id, key_hash, key_prefix, name, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, k.UserID, k.KeyHash, k.KeyPrefix, k.Name, k.CreatedAt)
		if err != nil {
			return err
		}
		k.ID, err = res.LastInsertId()
		return err
	})
}

func (r *APIKeysRepositoryImpl) ListByUser(ctx context.Context, userID int64) ([]model.APIKey, error) {
	out := []model.APIKey{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, user_id, key_hash, key_prefix, name, last_used, created_at
		  FROM api_keys
		 WHERE user_id = ?
		 ORDER BY id
	`, userID)
	return out, err
}

func (r *APIKeysRepositoryImpl) DeleteOwned(ctx context.Context, id, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *APIKeysRepositoryImpl) UserIDByHash(ctx context.Context, hash string) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, `SELECT user_id FROM api_keys WHERE key_hash = ? LIMIT 1`, hash)
	if noRows(err) {
		return 0, nil
	}
	return id, err
}

func (r *APIKeysRepositoryImpl) Touch(ctx context.Context, hash string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used = ? WHERE key_hash = ?`, Now(), hash)
	return err
}
