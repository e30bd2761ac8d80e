package services

import (
	"math"
	"testing"

	"MOTION_CAPTURE/go-backend/internal/models"
)

func TestToFrameRecord(t *testing.T) {
	full := fullDetection(0)

	missingOne := fullDetection(0)
	missingOne.Landmarks2D[7] = nil

	only2D := fullDetection(0)
	only2D.Landmarks3D = nil

	short3D := fullDetection(0)
	short3D.Landmarks3D = short3D.Landmarks3D[:10]

	only3D := fullDetection(0)
	only3D.Landmarks2D = nil

	nan2D := fullDetection(0)
	nan2D.Landmarks2D[3] = &models.RawLandmark{X: math.NaN()}

	tests := []struct {
		name   string
		det    *models.Detection
		want2D bool
		want3D bool
	}{
		{name: "nil detection", det: nil},
		{name: "full detection", det: full, want2D: true, want3D: true},
		{name: "2D missing a landmark", det: missingOne},
		{name: "2D without 3D", det: only2D, want2D: true},
		{name: "short 3D set", det: short3D, want2D: true},
		{name: "3D without 2D", det: only3D},
		{name: "non-finite 2D", det: nan2D},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ToFrameRecord(4, 0.4, tt.det)

			if rec.FrameNumber != 4 || rec.Timestamp != 0.4 {
				t.Errorf("unexpected numbering %d / %v", rec.FrameNumber, rec.Timestamp)
			}
			if (rec.Landmarks2D != nil) != tt.want2D {
				t.Errorf("2D present = %v, want %v", rec.Landmarks2D != nil, tt.want2D)
			}
			if (rec.Landmarks3D != nil) != tt.want3D {
				t.Errorf("3D present = %v, want %v", rec.Landmarks3D != nil, tt.want3D)
			}
		})
	}
}

func TestToFrameRecordKeepsSlotOrder(t *testing.T) {
	det := fullDetection(1)
	rec := ToFrameRecord(0, 0, det)

	for i := 0; i < models.NumLandmarks; i++ {
		if rec.Landmarks2D[i].X != det.Landmarks2D[i].X {
			t.Fatalf("2D slot %d moved: got %v want %v", i, rec.Landmarks2D[i].X, det.Landmarks2D[i].X)
		}
		if rec.Landmarks3D[i].X != det.Landmarks3D[i].X {
			t.Fatalf("3D slot %d moved", i)
		}
	}
}

func TestToFrameRecordClampsVisibility(t *testing.T) {
	det := fullDetection(0)
	det.Landmarks2D[0].Visibility = 1.7
	det.Landmarks2D[1].Visibility = -0.2

	rec := ToFrameRecord(0, 0, det)
	if got := rec.Landmarks2D[0].Visibility; got != 1 {
		t.Errorf("visibility = %v, want 1", got)
	}
	if got := rec.Landmarks2D[1].Visibility; got != 0 {
		t.Errorf("visibility = %v, want 0", got)
	}
}
