package services

import "errors"

var (
	// ErrSourceUnavailable means the input video could not be opened or decoded at all.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrJobAlreadyActive is returned by Submit while a job is queued or processing.
	ErrJobAlreadyActive = errors.New("a job is already active")
	// ErrStorageFailure means the finalized document could not be written.
	ErrStorageFailure = errors.New("storage failure")

	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidName      = errors.New("invalid document name")
)
