package services

import (
	"math"
	"testing"

	"MOTION_CAPTURE/go-backend/internal/models"
)

func TestSampleDocument(t *testing.T) {
	doc := SampleDocument()

	if err := doc.Validate(); err != nil {
		t.Fatalf("sample document invalid: %v", err)
	}
	if doc.Metadata.FPS != 30 || doc.Metadata.FrameCount != 90 || len(doc.Frames) != 90 {
		t.Errorf("unexpected sample metadata %+v with %d frames", doc.Metadata, len(doc.Frames))
	}
	if doc.DetectedFrames() != 90 {
		t.Errorf("every sample frame should be detected")
	}

	// frames at whole seconds have no jump offset
	if y := doc.Frames[30].Landmarks3D[0].Y; math.Abs(y-basePose[0].Y) > 1e-9 {
		t.Errorf("nose y at t=1s = %v, want %v", y, basePose[0].Y)
	}
	// a quarter second in the body is at the top of the jump
	if y := doc.Frames[7].Landmarks3D[models.LeftAnkle].Y; y <= basePose[models.LeftAnkle].Y {
		t.Errorf("ankle did not rise: %v", y)
	}
	// the base pose is not mutated between frames
	if basePose[0].Y != 1.6 {
		t.Errorf("base pose changed: %v", basePose[0].Y)
	}
}

func TestAnalyzeLegs(t *testing.T) {
	doc := models.NewMotionDocument(models.Metadata{FPS: 30})
	doc.Append(ToFrameRecord(0, 0, fullDetection(0)))
	doc.Append(ToFrameRecord(1, 1.0/30, nil))

	moved := fullDetection(0)
	moved.Landmarks3D[models.RightKnee].Y += 0.5
	doc.Append(ToFrameRecord(2, 2.0/30, moved))
	doc.Append(ToFrameRecord(3, 3.0/30, fullDetection(0)))

	report := AnalyzeLegs(doc, 2)
	if len(report) != 2 {
		t.Fatalf("expected 2 analysed frames, got %d", len(report))
	}
	if report[0].FrameNumber != 0 || report[1].FrameNumber != 2 {
		t.Errorf("undetected frame not skipped: %d, %d", report[0].FrameNumber, report[1].FrameNumber)
	}
	if report[0].HasPrevious {
		t.Error("first frame has no previous frame")
	}
	if !report[1].HasPrevious || math.Abs(report[1].KneeDeltaY-0.5) > 1e-9 || report[1].HipDeltaY != 0 {
		t.Errorf("unexpected deltas %+v", report[1])
	}

	if got := len(AnalyzeLegs(doc, 0)); got != 3 {
		t.Errorf("no limit should analyse all 3 detected frames, got %d", got)
	}
}

func TestLegsPointDown(t *testing.T) {
	report := AnalyzeLegs(SampleDocument(), 1)
	if len(report) != 1 {
		t.Fatal("expected one frame")
	}
	// the sample uses an upward Y axis, so thighs point to negative Y
	if report[0].LegsPointDown() {
		t.Error("sample thighs should not point toward +Y")
	}
	if report[0].Left.HipToKnee.Y >= 0 {
		t.Errorf("left thigh y = %v", report[0].Left.HipToKnee.Y)
	}
}
