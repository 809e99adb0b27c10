package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/artverse/nova/internal/db"
	"github.com/artverse/nova/internal/kafka"
	"github.com/artverse/nova/internal/logger"
	"github.com/artverse/nova/internal/repository"
	"github.com/artverse/nova/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Relay outbox rows to Kafka",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := load(cmd)
		if err != nil {
			return err
		}
		log := logger.Log.Named("outbox")

		dbx, err := db.OpenSQL(cfg.Database)
		if err != nil {
			return fmt.Errorf("%s connect: %w", cfg.Database.Driver, err)
		}
		defer dbx.Close()

		// no writer topic: every message carries the topic stored on its outbox row
		producer, err := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
		if err != nil {
			return err
		}
		defer func() { _ = producer.Close() }()

		relay := worker.NewOutboxRelay(repository.NewOutboxRepository(dbx), producer, log)
		if cfg.Outbox.PollInterval > 0 {
			relay.Interval = cfg.Outbox.PollInterval
		}
		if cfg.Outbox.BatchSize > 0 {
			relay.BatchSize = cfg.Outbox.BatchSize
		}
		if cfg.Outbox.MaxAttempts > 0 {
			relay.MaxAttempts = cfg.Outbox.MaxAttempts
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("outbox relay started",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.Duration("interval", relay.Interval),
			zap.Int("batch_size", relay.BatchSize),
		)
		return relay.Run(ctx)
	},
}
