package services

import (
	"math"

	"MOTION_CAPTURE/go-backend/internal/models"
)

const (
	sampleFPS      = 30
	sampleSeconds  = 3
	sampleSource   = "sample_animation.generated"
	sampleJump     = 0.3
	sampleArmSwing = 0.3
)

// basePose is a standing T-pose in metres, indexed by the landmark taxonomy.
var basePose = models.Pose{
	{X: 0.0, Y: 1.6, Z: 0.0, Visibility: 1},
	{X: -0.02, Y: 1.62, Z: 0.0, Visibility: 1},
	{X: -0.04, Y: 1.62, Z: 0.0, Visibility: 1},
	{X: -0.06, Y: 1.62, Z: 0.0, Visibility: 1},
	{X: 0.02, Y: 1.62, Z: 0.0, Visibility: 1},
	{X: 0.04, Y: 1.62, Z: 0.0, Visibility: 1},
	{X: 0.06, Y: 1.62, Z: 0.0, Visibility: 1},
	{X: -0.08, Y: 1.6, Z: 0.0, Visibility: 1},
	{X: 0.08, Y: 1.6, Z: 0.0, Visibility: 1},
	{X: -0.03, Y: 1.55, Z: 0.0, Visibility: 1},
	{X: 0.03, Y: 1.55, Z: 0.0, Visibility: 1},
	{X: 0.2, Y: 1.4, Z: 0.0, Visibility: 1},
	{X: -0.2, Y: 1.4, Z: 0.0, Visibility: 1},
	{X: 0.4, Y: 1.4, Z: 0.0, Visibility: 1},
	{X: -0.4, Y: 1.4, Z: 0.0, Visibility: 1},
	{X: 0.6, Y: 1.4, Z: 0.0, Visibility: 1},
	{X: -0.6, Y: 1.4, Z: 0.0, Visibility: 1},
	{X: 0.65, Y: 1.35, Z: 0.0, Visibility: 1},
	{X: -0.65, Y: 1.35, Z: 0.0, Visibility: 1},
	{X: 0.68, Y: 1.4, Z: 0.0, Visibility: 1},
	{X: -0.68, Y: 1.4, Z: 0.0, Visibility: 1},
	{X: 0.62, Y: 1.38, Z: 0.0, Visibility: 1},
	{X: -0.62, Y: 1.38, Z: 0.0, Visibility: 1},
	{X: 0.1, Y: 1.0, Z: 0.0, Visibility: 1},
	{X: -0.1, Y: 1.0, Z: 0.0, Visibility: 1},
	{X: 0.1, Y: 0.5, Z: 0.0, Visibility: 1},
	{X: -0.1, Y: 0.5, Z: 0.0, Visibility: 1},
	{X: 0.1, Y: 0.05, Z: 0.0, Visibility: 1},
	{X: -0.1, Y: 0.05, Z: 0.0, Visibility: 1},
	{X: 0.1, Y: 0.0, Z: 0.05, Visibility: 1},
	{X: -0.1, Y: 0.0, Z: 0.05, Visibility: 1},
	{X: 0.1, Y: 0.0, Z: 0.15, Visibility: 1},
	{X: -0.1, Y: 0.0, Z: 0.15, Visibility: 1},
}

// SampleDocument builds a synthetic jump and arm-wave animation for trying
// out consumers without a detector.
func SampleDocument() *models.MotionDocument {
	total := sampleFPS * sampleSeconds
	doc := models.NewMotionDocument(models.Metadata{
		FPS:         sampleFPS,
		FrameCount:  total,
		Width:       1920,
		Height:      1080,
		SourceVideo: sampleSource,
	})

	for n := 0; n < total; n++ {
		t := float64(n) / sampleFPS
		jump := math.Abs(math.Sin(t*math.Pi*2)) * sampleJump
		arm := math.Sin(t*math.Pi*4) * sampleArmSwing

		pose := basePose
		for i := range pose {
			pose[i].Y += jump
		}
		pose[13].Y += arm
		pose[14].Y -= arm
		pose[15].Y += arm * 1.5
		pose[16].Y -= arm * 1.5

		pose2d, pose3d := pose, pose
		doc.Frames = append(doc.Frames, models.FrameRecord{
			FrameNumber: n,
			Timestamp:   t,
			Landmarks2D: &pose2d,
			Landmarks3D: &pose3d,
		})
	}
	return doc
}
