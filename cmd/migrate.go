package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/visit-scheduler/internal/config"
	"github.com/example/visit-scheduler/internal/db"
	"github.com/example/visit-scheduler/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := migrate.Up(ctx, d); err != nil {
				return err
			}
			fmt.Println("migrations applied")
			return nil
		},
	}
}
