package repository

import (
	"context"

	"github.com/artverse/nova/internal/model"
	"github.com/jmoiron/sqlx"
)

// WithdrawalSums splits withdrawn money by lifecycle stage.
type WithdrawalSums struct {
	Pending    int64 `db:"pending"`
	Processing int64 `db:"processing"`
	Completed  int64 `db:"completed"`
}

// Reserved is everything that counts against available earnings.
func (s WithdrawalSums) Reserved() int64 { return s.Pending + s.Processing + s.Completed }

type WithdrawalsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, w *model.Withdrawal) (int64, error)
	Sums(ctx context.Context, tx *sqlx.Tx, userID int64) (WithdrawalSums, error)
	MarkCompleted(ctx context.Context, id int64, transferID string) error
	MarkFailed(ctx context.Context, id int64) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]model.Withdrawal, error)
	Get(ctx context.Context, id int64) (*model.Withdrawal, error)
}

type WithdrawalsRepositoryImpl struct {
	db *sqlx.DB
}

func NewWithdrawalsRepository(db *sqlx.DB) *WithdrawalsRepositoryImpl {
	return &WithdrawalsRepositoryImpl{db: db}
}

var _ WithdrawalsRepository = (*WithdrawalsRepositoryImpl)(nil)

func (r *WithdrawalsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, w *model.Withdrawal) (int64, error) {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = Now()
	}
	res, err := pick(r.db, tx).ExecContext(ctx, `
		INSERT INTO withdrawals (user_id, amount_cents, platform_fee_cents, net_amount_cents, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, w.UserID, w.AmountCents, w.PlatformFeeCents, w.NetAmountCents, string(w.Status), w.CreatedAt)
	if err != nil {
		return 0, err
	}
	w.ID, err = res.LastInsertId()
	return w.ID, err
}

func (r *WithdrawalsRepositoryImpl) Sums(ctx context.Context, tx *sqlx.Tx, userID int64) (WithdrawalSums, error) {
	var s WithdrawalSums
	err := pick(r.db, tx).GetContext(ctx, &s, `
		SELECT
		    COALESCE(SUM(CASE WHEN status = 'pending'    THEN amount_cents ELSE 0 END), 0) AS pending,
		    COALESCE(SUM(CASE WHEN status = 'processing' THEN amount_cents ELSE 0 END), 0) AS processing,
		    COALESCE(SUM(CASE WHEN status = 'completed'  THEN amount_cents ELSE 0 END), 0) AS completed
		  FROM withdrawals
		 WHERE user_id = ?
	`, userID)
	return s, err
}

func (r *WithdrawalsRepositoryImpl) MarkCompleted(ctx context.Context, id int64, transferID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE withdrawals
		   SET stripe_transfer_id = ?, status = 'completed', completed_at = ?
		 WHERE id = ?
	`, transferID, Now(), id)
	return err
}

// MarkFailed only touches the given withdrawal.
func (r *WithdrawalsRepositoryImpl) MarkFailed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE withdrawals SET status = 'failed' WHERE id = ?`, id)
	return err
}

func (r *WithdrawalsRepositoryImpl) ListByUser(ctx context.Context, userID int64, limit int) ([]model.Withdrawal, error) {
	out := []model.Withdrawal{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, user_id, amount_cents, platform_fee_cents, net_amount_cents, stripe_transfer_id, status, created_at, completed_at
		  FROM withdrawals
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?
	`, userID, limit)
	return out, err
}

func (r *WithdrawalsRepositoryImpl) Get(ctx context.Context, id int64) (*model.Withdrawal, error) {
	var w model.Withdrawal
	err := r.db.GetContext(ctx, &w, `
		SELECT id, user_id, amount_cents, platform_fee_cents, net_amount_cents, stripe_transfer_id, status, created_at, completed_at
		  FROM withdrawals WHERE id = ?
	`, id)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}
