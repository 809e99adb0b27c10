package repository

import (
	"context"
	"time"

	"github.com/artverse/nova/internal/model"
	"github.com/jmoiron/sqlx"
)

const chEventsDDL = `
	CREATE TABLE IF NOT EXISTS events (
		id          String,
		type        LowCardinality(String),
		actor_id    Int64,
		owner_id    Int64,
		subject_id  String,
		occurred_at DateTime64(3, 'UTC')
	)
	ENGINE = ReplacingMergeTree
	PARTITION BY toYYYYMM(occurred_at)
	ORDER BY (owner_id, type, occurred_at, id)
`

// CHEventsRepository stores domain events in ClickHouse for analytics.
type CHEventsRepository interface {
	EnsureSchema(ctx context.Context) error
	InsertBatch(ctx context.Context, events []model.Event) error
	CountsByOwner(ctx context.Context, ownerID int64, since time.Time) ([]model.EventCount, error)
}

type chEventsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHEventsRepository(ch *sqlx.DB) CHEventsRepository {
	return &chEventsRepository{ch: ch}
}

func (r *chEventsRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.ch.ExecContext(ctx, chEventsDDL)
	return err
}

// InsertBatch uses the clickhouse-go batch protocol: one prepared INSERT per transaction.
func (r *chEventsRepository) InsertBatch(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO events (id, type, actor_id, owner_id, subject_id, occurred_at)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.Type.String(), e.ActorID, e.OwnerID, e.SubjectID, e.OccurredAt.UTC(),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *chEventsRepository) CountsByOwner(ctx context.Context, ownerID int64, since time.Time) ([]model.EventCount, error) {
	out := []model.EventCount{}
	err := r.ch.SelectContext(ctx, &out, `
		SELECT type, count() AS count
		FROM events FINAL
		WHERE owner_id = ? AND occurred_at >= ?
		GROUP BY type
		ORDER BY type
	`, ownerID, since.UTC())
	return out, err
}
