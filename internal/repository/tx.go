package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// Now is the clock used for every timestamp written by this package.
var Now = func() time.Time { return time.Now().UTC() }

// Execer is satisfied by both *sqlx.DB and *sqlx.Tx.
type Execer interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// withTx runs fn in the provided tx, or starts a new transaction when tx is nil.
func withTx(ctx context.Context, db *sqlx.DB, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}

	t, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}

	return t.Commit()
}

// pick returns tx when set, otherwise the pool.
func pick(db *sqlx.DB, tx *sqlx.Tx) Execer {
	if tx != nil {
		return tx
	}
	return db
}

func noRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

// InTx begins a transaction, runs fn and commits; fn's error rolls back.
func InTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	return withTx(ctx, db, nil, fn)
}
