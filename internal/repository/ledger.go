package repository

import (
	"context"

	"github.com/artverse/nova/internal/model"
	"github.com/jmoiron/sqlx"
)

// LedgerRepository persists credit_transactions.
type LedgerRepository interface {
	ExistsBySession(ctx context.Context, tx *sqlx.Tx, sessionID string) (bool, error)
	Insert(ctx context.Context, tx *sqlx.Tx, row LedgerRow) error
	ListByUser(ctx context.Context, db *sqlx.DB, userID int64, limit int) ([]model.CreditTransaction, error)
}

type ledgerRepo struct{}

func NewLedgerRepository() LedgerRepository { return &ledgerRepo{} }

type LedgerRow struct {
	UserID      int64
	Amount      int64 // signed: negative for usage
	Type        model.TxType
	Description string
	SessionID   string // stripe checkout session, purchases only
}

// ExistsBySession checks whether a checkout session already credited someone.
func (r *ledgerRepo) ExistsBySession(ctx context.Context, tx *sqlx.Tx, sessionID string) (bool, error) {
	var one int
	err := tx.QueryRowxContext(ctx,
		`SELECT 1 FROM credit_transactions WHERE stripe_session_id = ? LIMIT 1`, sessionID,
	).Scan(&one)

	if err != nil {
		// no rows means false
		if noRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *ledgerRepo) Insert(ctx context.Context, tx *sqlx.Tx, row LedgerRow) error {
	var session *string
	if row.SessionID != "" {
		session = &row.SessionID
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO credit_transactions (user_id, amount, type, description, stripe_session_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, row.UserID, row.Amount, row.Type.String(), row.Description, session, Now())
	return err
}

// ListByUser returns the most recent ledger rows, newest first.
func (r *ledgerRepo) ListByUser(ctx context.Context, db *sqlx.DB, userID int64, limit int) ([]model.CreditTransaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	out := []model.CreditTransaction{}
	err := db.SelectContext(ctx, &out, `
		SELECT id, user_id, amount, type, description, stripe_session_id, created_at
		  FROM credit_transactions
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?
	`, userID, limit)
	return out, err
}
