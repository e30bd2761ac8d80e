package services

import (
	"sync/atomic"

	"MOTION_CAPTURE/go-backend/internal/models"
)

// StatusBoard holds the current job status as an immutable snapshot.
// Readers never block and always see a whole status value.
type StatusBoard struct {
	current atomic.Pointer[models.JobStatus]
}

func NewStatusBoard() *StatusBoard {
	b := &StatusBoard{}
	idle := models.IdleStatus()
	b.current.Store(&idle)
	return b
}

func (b *StatusBoard) Snapshot() models.JobStatus {
	return *b.current.Load()
}

// Reset publishes the first status of a new job.
func (b *StatusBoard) Reset(st models.JobStatus) {
	b.current.Store(&st)
}

// Update applies fn to the current snapshot and publishes the result.
// Within one job the published progress never goes down.
func (b *StatusBoard) Update(fn func(models.JobStatus) models.JobStatus) models.JobStatus {
	for {
		old := b.current.Load()
		next := fn(*old)
		if next.JobID == old.JobID && next.Progress < old.Progress {
			next.Progress = old.Progress
		}
		if b.current.CompareAndSwap(old, &next) {
			return next
		}
	}
}
