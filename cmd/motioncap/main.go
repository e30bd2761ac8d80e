package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"MOTION_CAPTURE/go-backend/internal/config"
)

const version = "1.0.0"

func main() {
	cfg := config.LoadConfig()
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	rootCmd := &cobra.Command{
		Use:           "motioncap",
		Short:         "Extract pose landmark motion data from videos",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(ServeCmd(cfg, logger))
	rootCmd.AddCommand(ExtractCmd(cfg, logger))
	rootCmd.AddCommand(SampleCmd(cfg))
	rootCmd.AddCommand(AnalyzeCmd())
	rootCmd.AddCommand(HistoryCmd(cfg, logger))
	rootCmd.AddCommand(HashTokenCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
