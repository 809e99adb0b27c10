package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/artverse/nova/internal/caption"
	"github.com/artverse/nova/internal/config"
	"github.com/artverse/nova/internal/db"
	"github.com/artverse/nova/internal/db/migrations"
	"github.com/artverse/nova/internal/dispatcher"
	"github.com/artverse/nova/internal/email"
	httpSrv "github.com/artverse/nova/internal/http"
	"github.com/artverse/nova/internal/logger"
	"github.com/artverse/nova/internal/payments"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level, cfg.Log.Encoding)
		defer func() { _ = logger.Log.Sync() }()
		log := logger.Log

		sqlDB, err := db.OpenSQL(cfg.Database)
		if err != nil {
			return fmt.Errorf("%s connect: %w", cfg.Database.Driver, err)
		}
		defer sqlDB.Close()

		if err := migrations.Up(sqlDB, cfg.Database.Driver); err != nil {
			return err
		}

		redisClient, err := db.OpenRedis(cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		if redisClient != nil {
			defer func() { _ = redisClient.Close() }()
		} else {
			log.Info("redis not configured, agent rate limiting disabled")
		}

		chDB, err := db.OpenClickHouse(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		if chDB != nil {
			defer func() { _ = chDB.Close() }()
		}

		ext, err := externals(cfg, log)
		if err != nil {
			return err
		}

		server, err := httpSrv.NewServer(cfg, sqlDB, chDB, redisClient, ext, log)
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("starting http", zap.String("addr", cfg.HTTP.Addr))
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server exited", zap.Error(err))
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}

// externals builds the third-party clients; missing credentials leave a client unconfigured.
func externals(cfg config.Config, log *zap.Logger) (httpSrv.Externals, error) {
	mailer, err := email.New(cfg.Email, cfg.Auth.VerificationTTL, log.Named("email"))
	if err != nil {
		return httpSrv.Externals{}, err
	}
	ext := httpSrv.Externals{
		Payments:  payments.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Stripe.Currency),
		Captioner: caption.NewOpenAICaptioner(cfg.OpenAI.APIKey, cfg.OpenAI.Model, ""),
		Mailer:    mailer,
	}

	if cfg.Replicate.APIToken == "" {
		log.Warn("replicate api token not set, generation disabled")
		return ext, nil
	}
	rp := cfg.Replicate
	prov, err := dispatcher.NewReplicateProvider(rp.APIToken, rp.Timeout, rp.Breaker.FailThreshold, rp.Breaker.OpenForMs)
	if err != nil {
		return httpSrv.Externals{}, err
	}
	ext.Generator = dispatcher.NewDispatcher([]dispatcher.Provider{prov}, rp.MaxAttempts)
	return ext, nil
}
