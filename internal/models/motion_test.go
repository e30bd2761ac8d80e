package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func testPose(offset float64) *Pose {
	var p Pose
	for i := range p {
		p[i] = Landmark{X: offset + float64(i), Y: float64(i) / 10, Z: -float64(i) / 100, Visibility: 0.5}
	}
	return &p
}

func TestFrameRecordEmptyLandmarksSerializeAsEmptyArrays(t *testing.T) {
	data, err := json.Marshal(FrameRecord{FrameNumber: 1, Timestamp: 0.5})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	got := string(data)
	if !strings.Contains(got, `"landmarks_2d":[]`) || !strings.Contains(got, `"landmarks_3d":[]`) {
		t.Errorf("expected empty arrays, got %s", got)
	}
}

func TestMotionDocumentRoundTrip(t *testing.T) {
	doc := NewMotionDocument(Metadata{FPS: 30, FrameCount: 3, Width: 640, Height: 480, SourceVideo: "clip.mp4"})
	doc.Frames = append(doc.Frames,
		FrameRecord{FrameNumber: 0, Timestamp: 0, Landmarks2D: testPose(0), Landmarks3D: testPose(1)},
		FrameRecord{FrameNumber: 1, Timestamp: 1.0 / 30},
		FrameRecord{FrameNumber: 2, Timestamp: 2.0 / 30, Landmarks2D: testPose(2)},
	)

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var parsed MotionDocument
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(*doc, parsed) {
		t.Errorf("round trip mismatch:\nwant %+v\ngot  %+v", *doc, parsed)
	}
}

func TestMetadataFieldNames(t *testing.T) {
	data, err := json.Marshal(MotionDocument{Metadata: Metadata{FPS: 25, SourceVideo: "a.mp4"}, Frames: []FrameRecord{}})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var generic map[string]json.RawMessage
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if string(generic["frames"]) != "[]" {
		t.Errorf("frames = %s, want []", generic["frames"])
	}

	var metadata map[string]any
	if err := json.Unmarshal(generic["metadata"], &metadata); err != nil {
		t.Fatalf("Unmarshal metadata failed: %v", err)
	}
	for _, key := range []string{"fps", "frame_count", "width", "height", "source_video"} {
		if _, ok := metadata[key]; !ok {
			t.Errorf("metadata is missing %q", key)
		}
	}
}

func TestFrameRecordRejectsPartialSets(t *testing.T) {
	input := `{"frame_number":0,"timestamp":0,"landmarks_2d":[{"x":1,"y":2,"z":3,"visibility":1}],"landmarks_3d":[]}`

	var rec FrameRecord
	err := json.Unmarshal([]byte(input), &rec)
	if err == nil {
		t.Fatal("expected error for a 1-landmark set")
	}
	if !strings.Contains(err.Error(), "expected 0 or 33") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAppendEnforcesOrder(t *testing.T) {
	doc := NewMotionDocument(Metadata{FPS: 30})
	if err := doc.Append(FrameRecord{FrameNumber: 0}); err != nil {
		t.Fatalf("Append(0) failed: %v", err)
	}
	if err := doc.Append(FrameRecord{FrameNumber: 2}); err == nil {
		t.Error("expected error for a gap in frame numbers")
	}
	if err := doc.Append(FrameRecord{FrameNumber: 1}); err != nil {
		t.Errorf("Append(1) failed: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		doc     MotionDocument
		wantErr bool
	}{
		{
			name: "valid",
			doc: MotionDocument{
				Metadata: Metadata{FPS: 30},
				Frames:   []FrameRecord{{FrameNumber: 0}, {FrameNumber: 1, Landmarks2D: testPose(0)}},
			},
		},
		{
			name:    "zero fps",
			doc:     MotionDocument{Metadata: Metadata{FPS: 0}},
			wantErr: true,
		},
		{
			name: "gap",
			doc: MotionDocument{
				Metadata: Metadata{FPS: 30},
				Frames:   []FrameRecord{{FrameNumber: 0}, {FrameNumber: 2}},
			},
			wantErr: true,
		},
		{
			name: "3d without 2d",
			doc: MotionDocument{
				Metadata: Metadata{FPS: 30},
				Frames:   []FrameRecord{{FrameNumber: 0, Landmarks3D: testPose(0)}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.doc.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLandmarkName(t *testing.T) {
	if got := LandmarkName(0); got != "nose" {
		t.Errorf("LandmarkName(0) = %q", got)
	}
	if got := LandmarkName(LeftHip); got != "left_hip" {
		t.Errorf("LandmarkName(LeftHip) = %q", got)
	}
	if got := LandmarkName(NumLandmarks); got != "" {
		t.Errorf("LandmarkName(out of range) = %q", got)
	}
}
