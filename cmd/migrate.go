package cmd

import (
	"fmt"

	"github.com/artverse/nova/internal/config"
	"github.com/artverse/nova/internal/db"
	"github.com/artverse/nova/internal/db/migrations"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the embedded schema migrations",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"up", "down"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.OpenSQL(cfg.Database)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sqlDB.Close()

		direction := "up"
		if len(args) == 1 {
			direction = args[0]
		}
		switch direction {
		case "down":
			err = migrations.Down(sqlDB, cfg.Database.Driver)
		default:
			err = migrations.Up(sqlDB, cfg.Database.Driver)
		}
		if err != nil {
			return err
		}

		version, dirty, ok, err := migrations.Version(sqlDB, cfg.Database.Driver)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println(">> Migrations rolled back, schema is empty")
			return nil
		}
		fmt.Printf(">> Migration %s complete, version=%d dirty=%t\n", direction, version, dirty)
		return nil
	},
}
