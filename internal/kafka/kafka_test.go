package kafka

import (
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiresBrokers(t *testing.T) {
	_, err := NewConsumer(Config{Topic: "t"})
	assert.ErrorIs(t, err, ErrNoBrokers)
	_, err = NewProducer(Config{Topic: "t"})
	assert.ErrorIs(t, err, ErrNoBrokers)
}

func TestProducerHashesByKey(t *testing.T) {
	p, err := NewProducer(Config{Brokers: []string{"localhost:9092"}, Topic: "artverse.events"})
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, "artverse.events", p.w.Topic)
	_, ok := p.w.Balancer.(*kafkago.Hash)
	assert.True(t, ok)
}
