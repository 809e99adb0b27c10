package repository

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
)

// ErrInsufficientCredits is returned by Debit when the balance cannot cover the amount.
var ErrInsufficientCredits = errors.New("insufficient credits")

// WalletRepository moves the credit balance kept on users.credits.
// Every call runs inside the caller's transaction so the paired ledger row commits with it.
type WalletRepository interface {
	Balance(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error)
	Debit(ctx context.Context, tx *sqlx.Tx, userID, amount int64) error
	Credit(ctx context.Context, tx *sqlx.Tx, userID, amount int64) error
}

type walletRepo struct{}

func NewWalletRepository() WalletRepository { return &walletRepo{} }

func (r *walletRepo) Balance(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	var bal int64
	err := tx.QueryRowxContext(ctx, `SELECT credits FROM users WHERE id = ?`, userID).Scan(&bal)
	return bal, err
}

// Debit subtracts amount only when the balance covers it; the guard lives in
// the WHERE clause so concurrent debits can never drive the balance negative.
func (r *walletRepo) Debit(ctx context.Context, tx *sqlx.Tx, userID, amount int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET credits = credits - ?
		WHERE id = ? AND credits >= ?
	`, amount, userID, amount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInsufficientCredits
	}
	return nil
}

func (r *walletRepo) Credit(ctx context.Context, tx *sqlx.Tx, userID, amount int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET credits = credits + ?
		WHERE id = ?
	`, amount, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
