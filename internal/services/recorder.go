package services

import (
	"math"

	"MOTION_CAPTURE/go-backend/internal/models"
)

// ToFrameRecord maps a raw detection onto the fixed landmark taxonomy.
//
// A sequence is kept only when all 33 landmarks are present; a short or
// partially empty sequence is dropped as a whole, as is one with non-finite
// coordinates. Without a 2D set the frame is recorded as undetected and any
// 3D set is dropped with it.
func ToFrameRecord(frameNumber int, timestamp float64, det *models.Detection) models.FrameRecord {
	rec := models.FrameRecord{
		FrameNumber: frameNumber,
		Timestamp:   timestamp,
	}
	if det == nil {
		return rec
	}

	rec.Landmarks2D = toPose(det.Landmarks2D)
	if rec.Landmarks2D == nil {
		return rec
	}
	rec.Landmarks3D = toPose(det.Landmarks3D)
	return rec
}

func toPose(raw []*models.RawLandmark) *models.Pose {
	if len(raw) != models.NumLandmarks {
		return nil
	}

	var p models.Pose
	for i, l := range raw {
		if l == nil || !finite(l.X, l.Y, l.Z) {
			return nil
		}
		p[i] = models.Landmark{
			X:          l.X,
			Y:          l.Y,
			Z:          l.Z,
			Visibility: clamp01(l.Visibility),
		}
	}
	return &p
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
