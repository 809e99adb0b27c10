// Package kafka wraps segmentio/kafka-go for the event relay and the analytics consumer.
package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

var ErrNoBrokers = errors.New("kafka: no brokers configured")

type Config struct {
	Brokers        []string
	Topic          string
	GroupID        string
	MinBytes       int
	MaxBytes       int
	CommitInterval time.Duration // 0 commits synchronously
	MaxWait        time.Duration
}

type Message = kafka.Message

// Consumer reads one topic as a member of a consumer group.
type Consumer struct {
	r *kafka.Reader
}

func NewConsumer(c Config) (*Consumer, error) {
	if len(c.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	minBytes := c.MinBytes
	if minBytes <= 0 {
		minBytes = 1 << 10
	}
	maxBytes := c.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	wait := c.MaxWait
	if wait <= 0 {
		wait = 500 * time.Millisecond
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          c.Topic,
		MinBytes:       minBytes,
		MaxBytes:       maxBytes,
		CommitInterval: c.CommitInterval,
		MaxWait:        wait,
	})
	return &Consumer{r: r}, nil
}

func (c *Consumer) Fetch(ctx context.Context) (Message, error) {
	return c.r.FetchMessage(ctx)
}

func (c *Consumer) Commit(ctx context.Context, msgs ...Message) error {
	return c.r.CommitMessages(ctx, msgs...)
}

func (c *Consumer) Close() error { return c.r.Close() }
