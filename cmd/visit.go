package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/visit-scheduler/internal/config"
	"github.com/example/visit-scheduler/internal/db"
	"github.com/example/visit-scheduler/internal/migrate"
	"github.com/example/visit-scheduler/internal/visits"
)

func newVisitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "visit",
		Short: "Manage visit requests (non-UI)",
	}
	cmd.AddCommand(newVisitCreateCmd())
	cmd.AddCommand(newVisitListCmd())
	return cmd
}

func newVisitCreateCmd() *cobra.Command {
	var (
		email       string
		label       string
		startTime   string
		timezone    string
		roomID      string
		agentID     string
		externalKey string
		duration    int
		noVideo     bool
	)

	c := &cobra.Command{
		Use:   "create",
		Short: "Queue a visit for the scheduling worker",
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

			v := visits.Visit{
				Email:           email,
				Label:           label,
				Timezone:        timezone,
				RoomID:          roomID,
				AgentID:         agentID,
				ExternalKey:     externalKey,
				DurationMinutes: duration,
				WantsVideoLink:  !noVideo,
			}
			if startTime != "" {
				st, err := time.Parse(time.RFC3339, startTime)
				if err != nil {
					return fmt.Errorf("invalid --start-time (want RFC3339): %w", err)
				}
				v.StartTime = &st
			}

			id, err := visits.NewRepo(d).Create(ctx, v)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created visit id=%s status=pending\n", id)
			return nil
		},
	}

	c.Flags().StringVar(&email, "email", "", "attendee email (required)")
	c.Flags().StringVar(&label, "label", "", "free-text time expression, e.g. \"Wednesday afternoon\"")
	c.Flags().StringVar(&startTime, "start-time", "", "concrete start instant (RFC3339); overrides --label")
	c.Flags().StringVar(&timezone, "timezone", "", "IANA timezone (defaults to DEFAULT_TIMEZONE)")
	c.Flags().StringVar(&roomID, "room-id", "", "room correlation id")
	c.Flags().StringVar(&agentID, "agent-id", "", "agent correlation id")
	c.Flags().StringVar(&externalKey, "external-key", "", "idempotency token (derived from room+time if empty)")
	c.Flags().IntVar(&duration, "duration-minutes", visits.DefaultDurationMinutes, "appointment length, 15-240")
	c.Flags().BoolVar(&noVideo, "no-video-link", false, "skip creating a video link")
	_ = c.MarkFlagRequired("email")

	return c
}

func newVisitListCmd() *cobra.Command {
	var (
		status string
		limit  int
	)

	c := &cobra.Command{
		Use:   "list",
		Short: "List visits and their outcomes",
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

			vs, err := visits.NewRepo(d).List(ctx, status, limit)
			if err != nil {
				return err
			}
			for _, v := range vs {
				when := v.Label
				if v.StartTime != nil {
					when = v.StartTime.Format(time.RFC3339)
				}
				line := fmt.Sprintf("%s  %-10s  %-24s  %s", v.ID, v.Status, v.Email, when)
				if v.WhenText != nil {
					line += "  -> " + *v.WhenText
				}
				if v.FailReason != nil {
					line += "  !! " + *v.FailReason
				}
				fmt.Fprintln(os.Stdout, line)
			}
			return nil
		},
	}

	c.Flags().StringVar(&status, "status", "", "filter by status (pending|processing|scheduled|failed)")
	c.Flags().IntVar(&limit, "limit", 50, "max rows")
	return c
}
