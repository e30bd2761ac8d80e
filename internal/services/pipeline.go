package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"MOTION_CAPTURE/go-backend/internal/models"
)

// FrameStream is an opened video: metadata plus frames in decode order.
// Next returns io.EOF once the stream is exhausted.
type FrameStream interface {
	Metadata() models.Metadata
	Next(ctx context.Context) (models.Frame, error)
	Close() error
}

// FrameReader opens video files. Open fails with ErrSourceUnavailable when
// the file cannot be decoded at all.
type FrameReader interface {
	Open(ctx context.Context, path string) (FrameStream, error)
}

// LandmarkSource detects pose landmarks in a single frame. A nil detection
// or one without 2D landmarks means nobody was found.
type LandmarkSource interface {
	Detect(ctx context.Context, frame models.Frame) (*models.Detection, error)
}

// ProgressFunc receives non-decreasing percentages in [0,100].
type ProgressFunc func(percent int, message string)

type RunStats struct {
	FramesProcessed int
	FramesDetected  int
}

const logEveryFrames = 30

// Runner builds a MotionDocument from a frame stream, one frame at a time.
type Runner struct {
	metrics *Metrics
	logger  *slog.Logger
}

func NewRunner(metrics *Metrics, logger *slog.Logger) *Runner {
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		metrics: metrics,
		logger:  logger.With("component", "pipeline"),
	}
}

// Run consumes the stream until it is exhausted. Frames are requested
// strictly one after another, so frame numbers are gap-free and ordered.
//
// Per-frame detector failures are recorded as undetected frames. A read error
// before the first frame is ErrSourceUnavailable; after that it is treated
// as a truncated source and ends the run normally.
func (r *Runner) Run(ctx context.Context, stream FrameStream, source LandmarkSource, onProgress ProgressFunc) (*models.MotionDocument, RunStats, error) {
	var stats RunStats
	if onProgress == nil {
		onProgress = func(int, string) {}
	}

	meta := stream.Metadata()
	if meta.FPS <= 0 {
		return nil, stats, fmt.Errorf("%w: invalid frame rate %v", ErrSourceUnavailable, meta.FPS)
	}

	doc := models.NewMotionDocument(meta)
	expected := meta.FrameCount
	lastPercent := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		frame, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, stats, ctxErr
			}
			if stats.FramesProcessed == 0 {
				return nil, stats, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
			}
			r.logger.Warn("Frame stream ended early, keeping decoded frames",
				"source", meta.SourceVideo, "frames", stats.FramesProcessed, "expected", expected, "error", err)
			break
		}

		frameNumber := stats.FramesProcessed
		det, err := r.detect(ctx, source, frame)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, stats, ctxErr
			}
			r.metrics.IncrementDetectorErrors()
			r.logger.Debug("Detection failed, recording frame as undetected", "frame", frameNumber, "error", err)
			det = nil
		}

		rec := ToFrameRecord(frameNumber, float64(frameNumber)/meta.FPS, det)
		if err := doc.Append(rec); err != nil {
			return nil, stats, err
		}

		stats.FramesProcessed++
		r.metrics.IncrementFrames()
		if rec.Detected() {
			stats.FramesDetected++
		} else {
			r.metrics.IncrementMisses()
		}

		percent := progressPercent(stats.FramesProcessed, expected)
		if percent < lastPercent {
			percent = lastPercent
		}
		lastPercent = percent
		onProgress(percent, progressMessage(stats.FramesProcessed, expected))

		if stats.FramesProcessed%logEveryFrames == 0 {
			r.logger.Info("Processed frames", "frames", stats.FramesProcessed, "expected", expected)
		}
	}

	onProgress(100, "Processing complete!")
	r.logger.Info("Extraction finished",
		"source", meta.SourceVideo, "frames", stats.FramesProcessed, "detected", stats.FramesDetected)

	return doc, stats, nil
}

func (r *Runner) detect(ctx context.Context, source LandmarkSource, frame models.Frame) (*models.Detection, error) {
	start := time.Now()
	det, err := source.Detect(ctx, frame)
	r.metrics.RecordLatency(time.Since(start))
	return det, err
}

// progressPercent is floor(processed/expected*100), held below 100 until the
// stream is known to be exhausted. An unknown frame count reports 0.
func progressPercent(processed, expected int) int {
	if expected <= 0 || processed <= 0 {
		return 0
	}
	return min(processed*100/expected, 99)
}

func progressMessage(processed, expected int) string {
	if expected <= 0 {
		return fmt.Sprintf("Processing frame %d", processed)
	}
	return fmt.Sprintf("Processing frame %d/%d", processed, expected)
}
