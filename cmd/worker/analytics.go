package worker

import (
	"context"
	"errors"
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

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Consume domain events from Kafka into ClickHouse",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := load(cmd)
		if err != nil {
			return err
		}
		log := logger.Log.Named("analytics")

		chDB, err := db.OpenClickHouse(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		if chDB == nil {
			return errors.New("clickhouse.dsn is required for the analytics worker")
		}
		defer func() { _ = chDB.Close() }()

		store := repository.NewCHEventsRepository(chDB)
		if err := store.EnsureSchema(cmd.Context()); err != nil {
			return fmt.Errorf("clickhouse schema: %w", err)
		}

		consumer, err := kafka.NewConsumer(kafka.Config{
			Brokers:        cfg.Kafka.Brokers,
			Topic:          cfg.Kafka.Topic,
			GroupID:        cfg.Kafka.GroupID,
			MinBytes:       cfg.Kafka.MinBytes,
			MaxBytes:       cfg.Kafka.MaxBytes,
			CommitInterval: ms(cfg.Kafka.CommitInterval),
		})
		if err != nil {
			return err
		}
		defer func() { _ = consumer.Close() }()

		ing := worker.NewAnalyticsIngestor(consumer, store, log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("analytics ingestor started",
			zap.String("topic", cfg.Kafka.Topic),
			zap.String("group", cfg.Kafka.GroupID),
			zap.Int("batch_size", ing.BatchSize),
		)
		return ing.Run(ctx)
	},
}
