package models

import "time"

type JobState string

const (
	StateIdle       JobState = "idle"
	StateQueued     JobState = "queued"
	StateProcessing JobState = "processing"
	StateCompleted  JobState = "completed"
	StateFailed     JobState = "failed"
)

// Active reports whether a job in this state still owns the worker.
func (s JobState) Active() bool {
	return s == StateQueued || s == StateProcessing
}

// Terminal reports whether the state ends a job.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// JobStatus is the polled view of the current job. Values are snapshots and
// must not be mutated after publication.
type JobStatus struct {
	JobID      string   `json:"job_id,omitempty"`
	State      JobState `json:"status"`
	Progress   int      `json:"progress"`
	Message    string   `json:"message"`
	OutputFile *string  `json:"output_file"`
}

// IdleStatus is the status before any submission.
func IdleStatus() JobStatus {
	return JobStatus{State: StateIdle, Message: ""}
}

// JobRecord is a row of the job history.
type JobRecord struct {
	ID              string     `json:"id"`
	SourceName      string     `json:"source_name"`
	OutputFile      string     `json:"output_file,omitempty"`
	State           JobState   `json:"state"`
	Message         string     `json:"message,omitempty"`
	FramesProcessed int        `json:"frames_processed"`
	FramesDetected  int        `json:"frames_detected"`
	FrameCount      int        `json:"frame_count"`
	FPS             float64    `json:"fps"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
}
