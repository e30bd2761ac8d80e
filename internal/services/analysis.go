package services

import "MOTION_CAPTURE/go-backend/internal/models"

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func sub(a, b models.Landmark) Vec3 {
	return Vec3{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z}
}

type LegDirections struct {
	HipToKnee   Vec3 `json:"hip_to_knee"`
	KneeToAnkle Vec3 `json:"knee_to_ankle"`
}

// LegFrame is the leg report for one frame of 3D landmarks.
type LegFrame struct {
	FrameNumber int           `json:"frame_number"`
	Timestamp   float64       `json:"timestamp"`
	Left        LegDirections `json:"left"`
	Right       LegDirections `json:"right"`
	// Y changes of the right leg joints since the previous analysed frame.
	HasPrevious bool    `json:"has_previous"`
	HipDeltaY   float64 `json:"hip_delta_y"`
	KneeDeltaY  float64 `json:"knee_delta_y"`
	AnkleDeltaY float64 `json:"ankle_delta_y"`
}

// LegsPointDown reports whether both thighs point down. In the detector's
// world frame positive Y is down.
func (f LegFrame) LegsPointDown() bool {
	return f.Left.HipToKnee.Y > 0 && f.Right.HipToKnee.Y > 0
}

// AnalyzeLegs reports leg directions for up to limit frames that carry 3D
// landmarks. Frames without 3D landmarks are skipped.
func AnalyzeLegs(doc *models.MotionDocument, limit int) []LegFrame {
	var out []LegFrame
	var prev *models.Pose

	for _, f := range doc.Frames {
		if limit > 0 && len(out) >= limit {
			break
		}
		p := f.Landmarks3D
		if p == nil {
			continue
		}

		lf := LegFrame{
			FrameNumber: f.FrameNumber,
			Timestamp:   f.Timestamp,
			Left: LegDirections{
				HipToKnee:   sub(p[models.LeftKnee], p[models.LeftHip]),
				KneeToAnkle: sub(p[models.LeftAnkle], p[models.LeftKnee]),
			},
			Right: LegDirections{
				HipToKnee:   sub(p[models.RightKnee], p[models.RightHip]),
				KneeToAnkle: sub(p[models.RightAnkle], p[models.RightKnee]),
			},
		}
		if prev != nil {
			lf.HasPrevious = true
			lf.HipDeltaY = p[models.RightHip].Y - prev[models.RightHip].Y
			lf.KneeDeltaY = p[models.RightKnee].Y - prev[models.RightKnee].Y
			lf.AnkleDeltaY = p[models.RightAnkle].Y - prev[models.RightAnkle].Y
		}

		out = append(out, lf)
		prev = p
	}
	return out
}
