// Package worker holds the long-running background loops: the outbox relay and the analytics ingestor.
package worker

import (
	"context"
	"time"

	"github.com/artverse/nova/internal/kafka"
	"github.com/artverse/nova/internal/metrics"
	"github.com/artverse/nova/internal/repository"
	"go.uber.org/zap"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

// OutboxRelay moves committed outbox rows to Kafka, keyed by aggregate id.
type OutboxRelay struct {
	Outbox      repository.OutboxRepository
	Pub         Publisher
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	Log         *zap.Logger
}

func NewOutboxRelay(outbox repository.OutboxRepository, pub Publisher, log *zap.Logger) *OutboxRelay {
	if log == nil {
		log = zap.NewNop()
	}
	return &OutboxRelay{
		Outbox:      outbox,
		Pub:         pub,
		Interval:    time.Second,
		BatchSize:   100,
		MaxAttempts: 10,
		Log:         log,
	}
}

// Run polls until ctx is cancelled. A full batch is followed immediately by the next poll.
func (r *OutboxRelay) Run(ctx context.Context) error {
	if r.Interval <= 0 {
		r.Interval = time.Second
	}
	tick := time.NewTicker(r.Interval)
	defer tick.Stop()

	for {
		n, err := r.RelayOnce(ctx)
		if err != nil && ctx.Err() == nil {
			r.Log.Warn("outbox relay", zap.Error(err))
		}
		if err == nil && n >= r.BatchSize {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}

// RelayOnce publishes one batch and returns how many rows it published.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	rows, err := r.Outbox.FetchUnpublished(ctx, r.BatchSize, r.MaxAttempts)
	if err != nil || len(rows) == 0 {
		return 0, err
	}

	msgs := make([]kafka.Message, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, kafka.Message{
			Topic: row.Topic,
			Key:   []byte(row.AggregateID),
			Value: row.Payload,
			Headers: []kafka.Header{
				{Key: "aggregate", Value: []byte(row.Aggregate)},
			},
		})
		ids = append(ids, row.ID)
	}

	if err := r.Pub.Publish(ctx, msgs...); err != nil {
		metrics.OutboxPublished.WithLabelValues("failed").Add(float64(len(ids)))
		if ierr := r.Outbox.IncrementAttempts(context.WithoutCancel(ctx), ids); ierr != nil {
			r.Log.Error("outbox increment attempts", zap.Error(ierr))
		}
		return 0, err
	}
	if err := r.Outbox.MarkPublished(context.WithoutCancel(ctx), ids); err != nil {
		// rows stay unpublished and go out again; consumers dedupe on event id
		return 0, err
	}
	metrics.OutboxPublished.WithLabelValues("published").Add(float64(len(ids)))
	r.Log.Debug("outbox published", zap.Int("count", len(ids)))
	return len(ids), nil
}
