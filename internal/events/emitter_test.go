package events_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/artverse/nova/internal/db/dbtest"
	"github.com/artverse/nova/internal/events"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitWritesOutboxRow(t *testing.T) {
	ctx := context.Background()
	dbx := dbtest.New(t)
	outbox := repository.NewOutboxRepository(dbx)
	em := events.NewEmitter(outbox, "")

	require.NoError(t, em.Emit(ctx, nil, "post", 42, model.Event{
		Type: model.EventPostCreated, ActorID: 7, OwnerID: 7,
	}))

	rows, err := outbox.FetchUnpublished(ctx, 10, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "post", rows[0].Aggregate)
	assert.Equal(t, "42", rows[0].AggregateID)
	assert.Equal(t, events.DefaultTopic, rows[0].Topic)

	var ev model.Event
	require.NoError(t, json.Unmarshal(rows[0].Payload, &ev))
	assert.Equal(t, model.EventPostCreated, ev.Type)
	assert.Equal(t, "42", ev.SubjectID)
	assert.Len(t, ev.ID, 26)
	assert.False(t, ev.OccurredAt.IsZero())
}

func TestNilEmitterIsNoop(t *testing.T) {
	var em *events.Emitter
	assert.NoError(t, em.Emit(context.Background(), nil, "post", 1, model.Event{}))
}
