package services

import (
	"sync/atomic"
	"time"
)

type Metrics struct {
	totalFrames     atomic.Int64
	detectionMisses atomic.Int64
	detectorErrors  atomic.Int64
	totalLatency    atomic.Int64
	lastFrameTime   atomic.Int64

	jobsCompleted atomic.Int64
	jobsFailed    atomic.Int64
	jobsRejected  atomic.Int64

	wsConnections atomic.Int64
	wsMessages    atomic.Int64
	wsErrors      atomic.Int64

	started time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{started: time.Now()}
}

func (m *Metrics) IncrementFrames() {
	m.totalFrames.Add(1)
	m.lastFrameTime.Store(time.Now().Unix())
}

func (m *Metrics) IncrementMisses() {
	m.detectionMisses.Add(1)
}

func (m *Metrics) IncrementDetectorErrors() {
	m.detectorErrors.Add(1)
}

func (m *Metrics) RecordLatency(duration time.Duration) {
	m.totalLatency.Add(duration.Microseconds())
}

func (m *Metrics) IncrementJobsCompleted() { m.jobsCompleted.Add(1) }
func (m *Metrics) IncrementJobsFailed()    { m.jobsFailed.Add(1) }
func (m *Metrics) IncrementJobsRejected()  { m.jobsRejected.Add(1) }

func (m *Metrics) GetTotalFrames() int64 {
	return m.totalFrames.Load()
}

func (m *Metrics) GetDetectionMisses() int64 {
	return m.detectionMisses.Load()
}

func (m *Metrics) GetDetectorErrors() int64 {
	return m.detectorErrors.Load()
}

// GetAvgLatency returns the mean detect latency in milliseconds.
func (m *Metrics) GetAvgLatency() float64 {
	frames := m.totalFrames.Load()
	if frames == 0 {
		return 0
	}
	return float64(m.totalLatency.Load()) / float64(frames) / 1000
}

func (m *Metrics) GetLastFrameTime() int64 {
	return m.lastFrameTime.Load()
}

func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.started)
}

func (m *Metrics) IncrementWebSocketConnections() {
	m.wsConnections.Add(1)
}

func (m *Metrics) DecrementWebSocketConnections() {
	m.wsConnections.Add(-1)
}

func (m *Metrics) GetWebSocketConnections() int64 {
	return m.wsConnections.Load()
}

func (m *Metrics) IncrementWebSocketMessages() {
	m.wsMessages.Add(1)
}

func (m *Metrics) IncrementWebSocketErrors() {
	m.wsErrors.Add(1)
}

// Snapshot returns all counters for the metrics endpoint.
func (m *Metrics) Snapshot() map[string]interface{} {
	frames := m.GetTotalFrames()
	misses := m.GetDetectionMisses()
	detectionRate := 0.0
	if frames > 0 {
		detectionRate = float64(frames-misses) / float64(frames)
	}

	return map[string]interface{}{
		"total_frames":      frames,
		"detection_misses":  misses,
		"detector_errors":   m.GetDetectorErrors(),
		"detection_rate":    detectionRate,
		"avg_latency_ms":    m.GetAvgLatency(),
		"last_frame_time":   m.GetLastFrameTime(),
		"jobs_completed":    m.jobsCompleted.Load(),
		"jobs_failed":       m.jobsFailed.Load(),
		"jobs_rejected":     m.jobsRejected.Load(),
		"ws_connections":    m.GetWebSocketConnections(),
		"ws_messages":       m.wsMessages.Load(),
		"ws_errors":         m.wsErrors.Load(),
		"system_uptime_sec": int64(m.Uptime().Seconds()),
	}
}
