// Package events writes domain events into the transactional outbox.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/repository"
	"github.com/artverse/nova/internal/util"
	"github.com/jmoiron/sqlx"
)

const DefaultTopic = "artverse.events"

// Emitter stamps events with a ULID and appends them to the outbox inside the caller's tx.
type Emitter struct {
	outbox repository.OutboxRepository
	topic  string
}

func NewEmitter(outbox repository.OutboxRepository, topic string) *Emitter {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Emitter{outbox: outbox, topic: topic}
}

// Emit persists ev; aggregate names the entity kind and aggregateID keys the Kafka message.
func (e *Emitter) Emit(ctx context.Context, tx *sqlx.Tx, aggregate string, aggregateID int64, ev model.Event) error {
	if e == nil {
		return nil
	}
	if ev.ID == "" {
		ev.ID = util.New()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = repository.Now()
	}
	if ev.SubjectID == "" {
		ev.SubjectID = strconv.FormatInt(aggregateID, 10)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := e.outbox.Insert(ctx, tx, aggregate, strconv.FormatInt(aggregateID, 10), e.topic, payload); err != nil {
		return fmt.Errorf("insert outbox: %w", err)
	}
	return nil
}
