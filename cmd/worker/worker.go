package worker

import (
	"fmt"
	"time"

	"github.com/artverse/nova/internal/config"
	"github.com/artverse/nova/internal/logger"
	"github.com/artverse/nova/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// NewWorkerCmd returns the parent "worker" command.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run background workers",
	}
	// attach subcommands
	cmd.AddCommand(outboxCmd)
	cmd.AddCommand(analyticsCmd)

	return cmd
}

func load(cmd *cobra.Command) (config.Config, error) {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Encoding)
	metrics.MustRegister(prometheus.DefaultRegisterer)
	return cfg, nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
