package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"MOTION_CAPTURE/go-backend/internal/models"
)

// JobRecorder persists job history. Failures are logged and never affect
// the job itself.
type JobRecorder interface {
	JobStarted(ctx context.Context, rec models.JobRecord) error
	JobFinished(ctx context.Context, rec models.JobRecord) error
}

type JobControllerConfig struct {
	Reader  FrameReader
	Source  LandmarkSource
	Docs    *DocumentStore
	Board   *StatusBoard
	History JobRecorder
	Metrics *Metrics
	Logger  *slog.Logger
}

// JobController runs at most one extraction job at a time in a background
// goroutine and publishes its progress on a StatusBoard.
type JobController struct {
	reader  FrameReader
	source  LandmarkSource
	docs    *DocumentStore
	board   *StatusBoard
	history JobRecorder
	metrics *Metrics
	runner  *Runner
	logger  *slog.Logger

	mu     sync.Mutex
	active bool
	cancel context.CancelFunc
	done   chan struct{}
}

func NewJobController(cfg JobControllerConfig) (*JobController, error) {
	if cfg.Reader == nil || cfg.Source == nil || cfg.Docs == nil {
		return nil, fmt.Errorf("job controller: reader, source and document store are required")
	}
	if cfg.Board == nil {
		cfg.Board = NewStatusBoard()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &JobController{
		reader:  cfg.Reader,
		source:  cfg.Source,
		docs:    cfg.Docs,
		board:   cfg.Board,
		history: cfg.History,
		metrics: cfg.Metrics,
		runner:  NewRunner(cfg.Metrics, cfg.Logger),
		logger:  cfg.Logger.With("component", "jobs"),
	}, nil
}

// Status returns the current status snapshot without blocking.
func (c *JobController) Status() models.JobStatus {
	return c.board.Snapshot()
}

// Submit starts processing videoPath in the background. sourceName is the
// user-facing file name used for metadata and the output name. Returns
// ErrJobAlreadyActive while another job is queued or processing.
func (c *JobController) Submit(videoPath, sourceName string) (models.JobStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active {
		c.metrics.IncrementJobsRejected()
		return c.board.Snapshot(), ErrJobAlreadyActive
	}

	if sourceName == "" {
		sourceName = filepath.Base(videoPath)
	}

	jobID := uuid.New().String()
	queued := models.JobStatus{
		JobID:    jobID,
		State:    models.StateQueued,
		Progress: 0,
		Message:  "accepted",
	}
	c.board.Reset(queued)

	ctx, cancel := context.WithCancel(context.Background())
	c.active = true
	c.cancel = cancel
	c.done = make(chan struct{})

	go c.run(ctx, jobID, videoPath, sourceName, c.done)

	c.logger.Info("Job accepted", "job_id", jobID, "source", sourceName)
	return queued, nil
}

// Wait blocks until the current job, if any, has finished.
func (c *JobController) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Shutdown cancels the running job and waits for the worker to exit.
func (c *JobController) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *JobController) run(ctx context.Context, jobID, videoPath, sourceName string, done chan struct{}) {
	defer close(done)
	logger := c.logger.With("job_id", jobID, "source", sourceName)

	record := models.JobRecord{
		ID:         jobID,
		SourceName: sourceName,
		State:      models.StateProcessing,
		StartedAt:  time.Now().UTC(),
	}

	c.board.Update(func(st models.JobStatus) models.JobStatus {
		st.State = models.StateProcessing
		st.Message = "Starting video processing..."
		return st
	})
	c.recordStarted(record, logger)

	start := time.Now()
	doc, stats, err := c.extract(ctx, videoPath, sourceName)
	record.FramesProcessed = stats.FramesProcessed
	record.FramesDetected = stats.FramesDetected
	if doc != nil {
		record.FrameCount = doc.Metadata.FrameCount
		record.FPS = doc.Metadata.FPS
	}
	if err != nil {
		c.fail(record, err, logger)
		return
	}

	name := OutputName(sourceName)
	path, err := c.docs.Save(name, doc)
	if err != nil {
		c.fail(record, err, logger)
		return
	}

	record.OutputFile = name
	record.State = models.StateCompleted
	record.Message = "Processing complete!"
	c.finish(models.JobStatus{
		JobID:      jobID,
		State:      models.StateCompleted,
		Progress:   100,
		Message:    record.Message,
		OutputFile: &name,
	}, record, logger)
	c.metrics.IncrementJobsCompleted()

	logger.Info("Job completed", "output", path, "frames", stats.FramesProcessed,
		"detected", stats.FramesDetected, "duration", time.Since(start))
}

func (c *JobController) extract(ctx context.Context, videoPath, sourceName string) (*models.MotionDocument, RunStats, error) {
	stream, err := c.reader.Open(ctx, videoPath)
	if err != nil {
		return nil, RunStats{}, err
	}
	defer func() {
		if err := stream.Close(); err != nil {
			c.logger.Debug("Frame stream close error", "error", err)
		}
	}()

	meta := stream.Metadata()
	c.logger.Info("Video opened", "source", sourceName, "fps", meta.FPS,
		"frames", meta.FrameCount, "width", meta.Width, "height", meta.Height)

	doc, stats, err := c.runner.Run(ctx, &namedStream{FrameStream: stream, name: sourceName}, c.source, c.reportProgress)
	return doc, stats, err
}

// reportProgress holds progress below 100 until the document is saved.
func (c *JobController) reportProgress(percent int, message string) {
	if percent >= 100 {
		percent = 99
		message = "Saving motion data..."
	}
	c.board.Update(func(st models.JobStatus) models.JobStatus {
		st.Progress = percent
		st.Message = message
		return st
	})
}

func (c *JobController) fail(record models.JobRecord, err error, logger *slog.Logger) {
	message := err.Error()
	if errors.Is(err, context.Canceled) {
		message = "Processing cancelled"
	}

	record.State = models.StateFailed
	record.Message = message

	snapshot := c.board.Snapshot()
	c.finish(models.JobStatus{
		JobID:    record.ID,
		State:    models.StateFailed,
		Progress: snapshot.Progress,
		Message:  message,
	}, record, logger)
	c.metrics.IncrementJobsFailed()

	logger.Error("Job failed", "error", err, "frames", record.FramesProcessed)
}

// finish publishes the terminal status and frees the slot in one step, so a
// poller that sees a terminal state can submit right away.
func (c *JobController) finish(st models.JobStatus, record models.JobRecord, logger *slog.Logger) {
	c.mu.Lock()
	c.board.Update(func(models.JobStatus) models.JobStatus { return st })
	c.active = false
	c.cancel = nil
	c.mu.Unlock()

	now := time.Now().UTC()
	record.FinishedAt = &now
	c.recordFinished(record, logger)
}

func (c *JobController) recordStarted(record models.JobRecord, logger *slog.Logger) {
	if c.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.history.JobStarted(ctx, record); err != nil {
		logger.Warn("Failed to record job start", "error", err)
	}
}

func (c *JobController) recordFinished(record models.JobRecord, logger *slog.Logger) {
	if c.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.history.JobFinished(ctx, record); err != nil {
		logger.Warn("Failed to record job result", "error", err)
	}
}

// namedStream reports the user-facing file name instead of the upload path.
type namedStream struct {
	FrameStream
	name string
}

func (s *namedStream) Metadata() models.Metadata {
	meta := s.FrameStream.Metadata()
	meta.SourceVideo = s.name
	return meta
}
