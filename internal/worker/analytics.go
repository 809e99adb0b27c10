package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/artverse/nova/internal/kafka"
	"github.com/artverse/nova/internal/metrics"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/repository"
	"go.uber.org/zap"
)

// Source is satisfied by *kafka.Consumer.
type Source interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// AnalyticsIngestor batches events from Kafka into ClickHouse and commits
// offsets only after the batch is stored.
type AnalyticsIngestor struct {
	Source    Source
	Store     repository.CHEventsRepository
	BatchSize int
	BatchWait time.Duration
	Log       *zap.Logger
}

func NewAnalyticsIngestor(src Source, store repository.CHEventsRepository, log *zap.Logger) *AnalyticsIngestor {
	if log == nil {
		log = zap.NewNop()
	}
	return &AnalyticsIngestor{
		Source:    src,
		Store:     store,
		BatchSize: 500,
		BatchWait: time.Second,
		Log:       log,
	}
}

type batch struct {
	events []model.Event
	msgs   []kafka.Message
}

func (b *batch) reset() {
	b.events = b.events[:0]
	b.msgs = b.msgs[:0]
}

// Run blocks until ctx is cancelled, flushing what it holds on the way out.
func (a *AnalyticsIngestor) Run(ctx context.Context) error {
	if a.BatchSize <= 0 {
		a.BatchSize = 500
	}
	if a.BatchWait <= 0 {
		a.BatchWait = time.Second
	}

	in := make(chan kafka.Message, a.BatchSize)
	go func() {
		defer close(in)
		for {
			m, err := a.Source.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				a.Log.Warn("kafka fetch", zap.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(200 * time.Millisecond):
				}
				continue
			}
			select {
			case in <- m:
			case <-ctx.Done():
				return
			}
		}
	}()

	tick := time.NewTicker(a.BatchWait)
	defer tick.Stop()

	var b batch
	for {
		select {
		case m, ok := <-in:
			if !ok {
				a.flush(context.WithoutCancel(ctx), &b)
				return nil
			}
			a.add(&b, m)
			if len(b.msgs) >= a.BatchSize {
				a.flush(ctx, &b)
			}
		case <-tick.C:
			a.flush(ctx, &b)
		}
	}
}

func (a *AnalyticsIngestor) add(b *batch, m kafka.Message) {
	b.msgs = append(b.msgs, m)
	var ev model.Event
	if err := json.Unmarshal(m.Value, &ev); err != nil || ev.ID == "" || ev.Type == "" {
		// poison: committed with the batch, never stored
		a.Log.Warn("skip malformed event", zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}
	b.events = append(b.events, ev)
}

// flush keeps the batch when the insert fails so the next tick retries it.
func (a *AnalyticsIngestor) flush(ctx context.Context, b *batch) {
	if len(b.msgs) == 0 {
		return
	}
	if err := a.Store.InsertBatch(ctx, b.events); err != nil {
		a.Log.Error("clickhouse insert", zap.Int("events", len(b.events)), zap.Error(err))
		return
	}
	if err := a.Source.Commit(ctx, b.msgs...); err != nil {
		a.Log.Warn("kafka commit", zap.Error(err))
	}
	metrics.AnalyticsIngested.Add(float64(len(b.events)))
	b.reset()
}
