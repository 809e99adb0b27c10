package repository

import (
	"context"

	"github.com/artverse/nova/internal/model"
	"github.com/jmoiron/sqlx"
)

// OutboxRepository defines persistence methods for the outbox table.
type OutboxRepository interface {
	// Insert writes a single outbox event. If tx is nil, it will open/commit
	// an internal transaction; otherwise it uses the given tx.
	Insert(ctx context.Context, tx *sqlx.Tx, aggregate, aggregateID, topic string, payload []byte) error
	// FetchUnpublished returns up to limit unpublished rows in id order,
	// skipping rows that already failed maxAttempts times.
	FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]model.OutboxEvent, error)
	MarkPublished(ctx context.Context, ids []int64) error
	IncrementAttempts(ctx context.Context, ids []int64) error
}

// OutboxRepositoryImpl is a sqlx-backed implementation.
type OutboxRepositoryImpl struct {
	db *sqlx.DB
}

// NewOutboxRepository constructs an OutboxRepositoryImpl.
func NewOutboxRepository(db *sqlx.DB) *OutboxRepositoryImpl {
	return &OutboxRepositoryImpl{db: db}
}

var _ OutboxRepository = (*OutboxRepositoryImpl)(nil)

// Insert adds an event row to outbox. The outbox relay worker publishes it
// to Kafka based on the `topic` column.
func (r *OutboxRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, aggregate, aggregateID, topic string, payload []byte) error {
	const q = `
		INSERT INTO outbox (aggregate, aggregate_id, topic, payload, attempts, created_at)
		VALUES (?, ?, ?, ?, 0, ?)
	`
	return withTx(ctx, r.db, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q, aggregate, aggregateID, topic, payload, Now())

		return err
	})
}

func (r *OutboxRepositoryImpl) FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]model.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	out := []model.OutboxEvent{}
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, aggregate, aggregate_id, topic, payload, attempts, published_at, created_at
		  FROM outbox
		 WHERE published_at IS NULL AND attempts < ?
		 ORDER BY id
		 LIMIT ?
	`, maxAttempts, limit)
	return out, err
}

func (r *OutboxRepositoryImpl) MarkPublished(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE outbox SET published_at = ? WHERE id IN (?)`, Now(), ids)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	return err
}

func (r *OutboxRepositoryImpl) IncrementAttempts(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In(`UPDATE outbox SET attempts = attempts + 1 WHERE id IN (?)`, ids)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	return err
}
