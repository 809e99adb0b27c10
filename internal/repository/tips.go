package repository

import (
	"context"

	"github.com/artverse/nova/internal/model"
	"github.com/jmoiron/sqlx"
)

type TipsRepository interface {
	InsertPending(ctx context.Context, t *model.Tip) (int64, error)
	SetSession(ctx context.Context, id int64, sessionID string) error
	Get(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Tip, error)
	// MarkCompleted returns false when the tip was already completed.
	MarkCompleted(ctx context.Context, tx *sqlx.Tx, id int64, sessionID string) (bool, error)
	ReceivedTotals(ctx context.Context, tx *sqlx.Tx, artistID int64) (totalCents, count int64, err error)
	RecentReceived(ctx context.Context, artistID int64, limit int) ([]model.ReceivedTip, error)
}

type TipsRepositoryImpl struct {
	db *sqlx.DB
}

func NewTipsRepository(db *sqlx.DB) *TipsRepositoryImpl {
	return &TipsRepositoryImpl{db: db}
}

var _ TipsRepository = (*TipsRepositoryImpl)(nil)

func (r *TipsRepositoryImpl) InsertPending(ctx context.Context, t *model.Tip) (int64, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = Now()
	}
	if t.Currency == "" {
		t.Currency = "usd"
	}
	t.Status = model.TipPending
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tips (tipper_id, artist_id, amount_cents, currency, message, status, created_at)
		VALUES (?, ?, ?, ?, ?, 'pending', ?)
	`, t.TipperID, t.ArtistID, t.AmountCents, t.Currency, t.Message, t.CreatedAt)
	if err != nil {
		return 0, err
	}
	t.ID, err = res.LastInsertId()
	return t.ID, err
}

func (r *TipsRepositoryImpl) SetSession(ctx context.Context, id int64, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE tips SET stripe_session_id = ? WHERE id = ?`, sessionID, id)
	return err
}

func (r *TipsRepositoryImpl) Get(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Tip, error) {
	var t model.Tip
	err := pick(r.db, tx).GetContext(ctx, &t, `
		SELECT id, tipper_id, artist_id, amount_cents, currency, message, stripe_session_id, status, created_at
		  FROM tips WHERE id = ?
	`, id)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TipsRepositoryImpl) MarkCompleted(ctx context.Context, tx *sqlx.Tx, id int64, sessionID string) (bool, error) {
	res, err := pick(r.db, tx).ExecContext(ctx, `
		UPDATE tips SET status = 'completed', stripe_session_id = ?
		 WHERE id = ? AND status != 'completed'
	`, sessionID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *TipsRepositoryImpl) ReceivedTotals(ctx context.Context, tx *sqlx.Tx, artistID int64) (int64, int64, error) {
	var row struct {
		Total int64 `db:"total"`
		Count int64 `db:"count"`
	}
	err := pick(r.db, tx).GetContext(ctx, &row, `
		SELECT COALESCE(SUM(amount_cents), 0) AS total, COUNT(*) AS count
		  FROM tips
		 WHERE artist_id = ? AND status = 'completed'
	`, artistID)
	return row.Total, row.Count, err
}

func (r *TipsRepositoryImpl) RecentReceived(ctx context.Context, artistID int64, limit int) ([]model.ReceivedTip, error) {
	out := []model.ReceivedTip{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT t.amount_cents, t.message, t.created_at,
		       u.username AS tipper_username, u.display_name AS tipper_name
		  FROM tips t
		  JOIN users u ON u.id = t.tipper_id
		 WHERE t.artist_id = ? AND t.status = 'completed'
		 ORDER BY t.created_at DESC, t.id DESC
		 LIMIT ?
	`, artistID, limit)
	return out, err
}
