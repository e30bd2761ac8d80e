package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"MOTION_CAPTURE/go-backend/internal/config"
	"MOTION_CAPTURE/go-backend/internal/models"
	"MOTION_CAPTURE/go-backend/internal/services"
)

const barTemplate = `{{ string . "prefix" }} {{counters . "%s/%s" "%s/?"}} {{bar . }} {{percent . "%.01f%%" "?"}} {{etime . "%s elapsed"}} {{rtime . "%s remain" "%s total" "???"}}`

func ExtractCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract pose landmarks from a video file",
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")
			output, _ := cmd.Flags().GetString("output")
			detectorURL, _ := cmd.Flags().GetString("detector")

			if _, err := os.Stat(input); err != nil {
				return fmt.Errorf("input file %q does not exist", input)
			}
			if output == "" {
				output = filepath.Join(cfg.OutputDir, services.OutputName(input))
			}
			if detectorURL == "" {
				detectorURL = cfg.DetectorURL
			}

			return extract(cmd.Context(), cfg, logger, input, output, detectorURL)
		},
	}
	cmd.Flags().StringP("input", "i", "", "Input video file path")
	cmd.Flags().StringP("output", "o", "", "Output JSON file path (default output/<name>_motion.json)")
	cmd.Flags().String("detector", "", "Landmark detector gRPC address (overrides DETECTOR_URL)")
	cmd.MarkFlagRequired("input")
	return cmd
}

func extract(ctx context.Context, cfg *config.Config, logger *slog.Logger, input, output, detectorURL string) (err error) {
	detector, err := services.NewLandmarkClient(detectorURL, cfg.DetectorTimeout)
	if err != nil {
		return err
	}
	defer detector.Close()

	if !detector.HealthCheck() {
		return fmt.Errorf("landmark detector at %s is not serving", detectorURL)
	}

	reader := services.NewFFmpegReader(cfg.FFmpegPath, cfg.FFprobePath)
	stream, err := reader.Open(ctx, input)
	if err != nil {
		return err
	}
	defer stream.Close()

	meta := stream.Metadata()
	fmt.Printf("Processing video: %s\n", input)
	fmt.Printf("FPS: %.2f, Frames: %d, Resolution: %dx%d\n", meta.FPS, meta.FrameCount, meta.Width, meta.Height)

	bar := pb.ProgressBarTemplate(barTemplate).Start(meta.FrameCount)
	bar.Set("prefix", filepath.Base(input))

	metrics := services.NewMetrics()
	doc, stats, err := services.NewRunner(metrics, logger).Run(ctx, &barStream{FrameStream: stream, bar: bar}, detector, nil)
	bar.Finish()
	if err != nil {
		if errors.Is(err, services.ErrSourceUnavailable) {
			return fmt.Errorf("cannot read video file %s: %w", input, err)
		}
		return err
	}

	fmt.Printf("\nSaving motion data to %s\n", output)
	if err := services.WriteDocument(output, doc); err != nil {
		return err
	}

	fmt.Printf("✓ Successfully extracted %d frames (%d with a pose, avg detector latency %.1fms)\n",
		stats.FramesProcessed, stats.FramesDetected, metrics.GetAvgLatency())
	fmt.Printf("✓ Motion data saved to %s\n", output)
	return nil
}

// barStream advances the progress bar once per decoded frame.
type barStream struct {
	services.FrameStream
	bar *pb.ProgressBar
}

func (s *barStream) Next(ctx context.Context) (models.Frame, error) {
	frame, err := s.FrameStream.Next(ctx)
	if err == nil {
		s.bar.Increment()
	}
	return frame, err
}
