package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"MOTION_CAPTURE/go-backend/internal/config"
	"MOTION_CAPTURE/go-backend/internal/database"
)

func HistoryCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent extraction jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			if !cfg.HistoryEnabled() {
				return fmt.Errorf("job history is disabled (DB_DRIVER=%q)", cfg.DBDriver)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			store, err := database.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			jobs, err := store.ListJobs(ctx, limit)
			if err != nil {
				return fmt.Errorf("failed to list jobs: %w", err)
			}
			if len(jobs) == 0 {
				fmt.Println("No jobs recorded yet.")
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSOURCE\tSTATE\tFRAMES\tDETECTED\tSTARTED\tOUTPUT / MESSAGE")
			for _, j := range jobs {
				detail := j.OutputFile
				if detail == "" {
					detail = j.Message
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
					j.ID, j.SourceName, j.State, j.FramesProcessed, j.FramesDetected,
					j.StartedAt.Local().Format(time.DateTime), detail)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum number of jobs to show")
	return cmd
}
