package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/visit-scheduler/internal/config"
	"github.com/example/visit-scheduler/internal/db"
	"github.com/example/visit-scheduler/internal/migrate"
	"github.com/example/visit-scheduler/internal/scheduling"
	"github.com/example/visit-scheduler/internal/visits"
	"github.com/example/visit-scheduler/internal/worker"
)

func newWorkerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the visit scheduling worker loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if cfg.SchedEndpoint == "" {
				return fmt.Errorf("SCHED_ENDPOINT is required")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}

			if migrateUp {
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
			}

			client := scheduling.New(cfg.SchedEndpoint)
			if err := client.Ping(ctx); err != nil {
				log.Printf("worker: scheduling service ping failed: %v", err)
			}

			w := &worker.Worker{
				Store:           visits.NewRepo(d),
				Client:          client,
				Interval:        cfg.PollInterval,
				BatchSize:       cfg.BatchSize,
				Concurrency:     cfg.VisitConcurrency,
				DefaultTimezone: cfg.DefaultTimezone,
			}

			log.Printf("worker: polling every %s (batch=%d)", cfg.PollInterval, cfg.BatchSize)
			if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
