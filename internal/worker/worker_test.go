package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/artverse/nova/internal/db/dbtest"
	"github.com/artverse/nova/internal/events"
	"github.com/artverse/nova/internal/kafka"
	"github.com/artverse/nova/internal/model"
	"github.com/artverse/nova/internal/repository"
	"github.com/artverse/nova/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	mu   sync.Mutex
	err  error
	sent []kafka.Message
}

func (p *fakePublisher) Publish(_ context.Context, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msgs...)
	return nil
}

func TestOutboxRelay(t *testing.T) {
	ctx := context.Background()
	dbx := dbtest.New(t)
	outbox := repository.NewOutboxRepository(dbx)
	em := events.NewEmitter(outbox, "")
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, em.Emit(ctx, nil, "post", i, model.Event{Type: model.EventPostCreated, ActorID: 1, OwnerID: 1}))
	}

	pub := &fakePublisher{err: errors.New("broker down")}
	relay := worker.NewOutboxRelay(outbox, pub, nil)
	relay.MaxAttempts = 2

	_, err := relay.RelayOnce(ctx)
	require.Error(t, err)
	rows, err := outbox.FetchUnpublished(ctx, 10, 2)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 1, rows[0].Attempts)

	pub.err = nil
	n, err := relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, pub.sent, 3)
	assert.Equal(t, "1", string(pub.sent[0].Key))
	assert.Equal(t, "3", string(pub.sent[2].Key))
	assert.Equal(t, events.DefaultTopic, pub.sent[0].Topic)

	var ev model.Event
	require.NoError(t, json.Unmarshal(pub.sent[1].Value, &ev))
	assert.Equal(t, model.EventPostCreated, ev.Type)

	n, err = relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOutboxRelayGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	dbx := dbtest.New(t)
	outbox := repository.NewOutboxRepository(dbx)
	require.NoError(t, events.NewEmitter(outbox, "").Emit(ctx, nil, "post", 1, model.Event{Type: model.EventPostLiked}))

	relay := worker.NewOutboxRelay(outbox, &fakePublisher{err: errors.New("nope")}, nil)
	relay.MaxAttempts = 1
	_, err := relay.RelayOnce(ctx)
	require.Error(t, err)

	n, err := relay.RelayOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

type chanSource struct {
	in        chan kafka.Message
	mu        sync.Mutex
	committed []kafka.Message
}

func (s *chanSource) Fetch(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-s.in:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (s *chanSource) Commit(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, msgs...)
	return nil
}

func (s *chanSource) commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.committed)
}

type memStore struct {
	mu     sync.Mutex
	fail   bool
	events []model.Event
}

func (m *memStore) EnsureSchema(context.Context) error { return nil }

func (m *memStore) InsertBatch(_ context.Context, evs []model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("clickhouse unavailable")
	}
	m.events = append(m.events, evs...)
	return nil
}

func (m *memStore) CountsByOwner(context.Context, int64, time.Time) ([]model.EventCount, error) {
	return nil, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func msg(t *testing.T, offset int64, ev model.Event) kafka.Message {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: b}
}

func TestAnalyticsIngestorBatchesAndCommits(t *testing.T) {
	src := &chanSource{in: make(chan kafka.Message, 10)}
	store := &memStore{}
	ing := worker.NewAnalyticsIngestor(src, store, nil)
	ing.BatchSize = 3
	ing.BatchWait = 20 * time.Millisecond

	src.in <- msg(t, 1, model.Event{ID: "01A", Type: model.EventPostCreated, OwnerID: 7})
	src.in <- kafka.Message{Offset: 2, Value: []byte("not json")}
	src.in <- msg(t, 3, model.Event{ID: "01B", Type: model.EventPostLiked, OwnerID: 7})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Run(ctx) }()

	require.Eventually(t, func() bool { return src.commits() == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, store.count())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ingestor did not stop")
	}
}

func TestAnalyticsIngestorRetriesFailedInsert(t *testing.T) {
	src := &chanSource{in: make(chan kafka.Message, 10)}
	store := &memStore{fail: true}
	ing := worker.NewAnalyticsIngestor(src, store, nil)
	ing.BatchSize = 10
	ing.BatchWait = 10 * time.Millisecond

	src.in <- msg(t, 1, model.Event{ID: "01A", Type: model.EventTipCompleted, OwnerID: 3})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = ing.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, src.commits())

	store.mu.Lock()
	store.fail = false
	store.mu.Unlock()

	require.Eventually(t, func() bool { return src.commits() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, store.count())
}
