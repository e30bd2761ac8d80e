package services

import (
	"context"
	"errors"
	"io"
	"sync"

	"MOTION_CAPTURE/go-backend/internal/models"
)

func fullDetection(offset float64) *models.Detection {
	det := &models.Detection{
		Landmarks2D: make([]*models.RawLandmark, models.NumLandmarks),
		Landmarks3D: make([]*models.RawLandmark, models.NumLandmarks),
	}
	for i := 0; i < models.NumLandmarks; i++ {
		det.Landmarks2D[i] = &models.RawLandmark{X: offset + float64(i)/100, Y: 0.5, Z: -0.1, Visibility: 0.9}
		det.Landmarks3D[i] = &models.RawLandmark{X: offset + float64(i)/10, Y: 0.2, Z: 0.3, Visibility: 0.8}
	}
	return det
}

// fakeStream yields n small frames, optionally failing on a given read.
type fakeStream struct {
	meta    models.Metadata
	n       int
	failAt  int // read index that returns readErr; -1 disables
	readErr error
	gate    chan struct{}

	mu     sync.Mutex
	reads  int
	closed bool
}

func newFakeStream(meta models.Metadata, n int) *fakeStream {
	return &fakeStream{meta: meta, n: n, failAt: -1}
}

func (s *fakeStream) Metadata() models.Metadata { return s.meta }

func (s *fakeStream) Next(ctx context.Context) (models.Frame, error) {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return models.Frame{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reads == s.failAt {
		s.reads++
		return models.Frame{}, s.readErr
	}
	if s.reads >= s.n {
		return models.Frame{}, io.EOF
	}
	idx := s.reads
	s.reads++
	return models.Frame{Index: idx, Width: 2, Height: 2, Data: make([]byte, 12)}, nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeReader struct {
	stream  *fakeStream
	openErr error
}

func (r *fakeReader) Open(ctx context.Context, path string) (FrameStream, error) {
	if r.openErr != nil {
		return nil, r.openErr
	}
	return r.stream, nil
}

// scriptedSource returns detections per frame index; missing entries mean
// nobody was found.
type scriptedSource struct {
	detections map[int]*models.Detection
	errs       map[int]error

	mu    sync.Mutex
	calls []int
}

func (s *scriptedSource) Detect(ctx context.Context, frame models.Frame) (*models.Detection, error) {
	s.mu.Lock()
	s.calls = append(s.calls, frame.Index)
	s.mu.Unlock()

	if err, ok := s.errs[frame.Index]; ok {
		return nil, err
	}
	return s.detections[frame.Index], nil
}

type alwaysDetect struct{}

func (alwaysDetect) Detect(ctx context.Context, frame models.Frame) (*models.Detection, error) {
	return fullDetection(float64(frame.Index)), nil
}

type fakeHistory struct {
	mu       sync.Mutex
	started  []models.JobRecord
	finished []models.JobRecord
	err      error
}

func (h *fakeHistory) JobStarted(ctx context.Context, rec models.JobRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.started = append(h.started, rec)
	return h.err
}

func (h *fakeHistory) JobFinished(ctx context.Context, rec models.JobRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.finished = append(h.finished, rec)
	return h.err
}

var errDecode = errors.New("decode error")
