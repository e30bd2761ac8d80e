package models

import (
	"encoding/json"
	"fmt"
)

// NumLandmarks is the size of the body-joint taxonomy produced by the detector.
const NumLandmarks = 33

var landmarkNames = [NumLandmarks]string{
	"nose",
	"left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear",
	"mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_pinky", "right_pinky",
	"left_index", "right_index",
	"left_thumb", "right_thumb",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
	"left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

// Indices used by the leg analysis.
const (
	LeftHip    = 23
	RightHip   = 24
	LeftKnee   = 25
	RightKnee  = 26
	LeftAnkle  = 27
	RightAnkle = 28
)

// LandmarkName returns the joint name for slot i, or "" if i is out of range.
func LandmarkName(i int) string {
	if i < 0 || i >= NumLandmarks {
		return ""
	}
	return landmarkNames[i]
}

type Landmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Pose is a fully detected landmark set. Slot order is fixed by the taxonomy.
type Pose [NumLandmarks]Landmark

type Metadata struct {
	FPS         float64 `json:"fps"`
	FrameCount  int     `json:"frame_count"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	SourceVideo string  `json:"source_video"`
}

// FrameRecord holds the landmarks of one decoded frame. A nil pose means the
// set was not detected and is serialized as an empty array.
type FrameRecord struct {
	FrameNumber int     `json:"frame_number"`
	Timestamp   float64 `json:"timestamp"`
	Landmarks2D *Pose   `json:"landmarks_2d"`
	Landmarks3D *Pose   `json:"landmarks_3d"`
}

// Detected reports whether the frame carries a 2D landmark set.
func (f FrameRecord) Detected() bool {
	return f.Landmarks2D != nil
}

type frameRecordJSON struct {
	FrameNumber int        `json:"frame_number"`
	Timestamp   float64    `json:"timestamp"`
	Landmarks2D []Landmark `json:"landmarks_2d"`
	Landmarks3D []Landmark `json:"landmarks_3d"`
}

func poseSlice(p *Pose) []Landmark {
	if p == nil {
		return []Landmark{}
	}
	return p[:]
}

func sliceToPose(field string, ls []Landmark) (*Pose, error) {
	switch len(ls) {
	case 0:
		return nil, nil
	case NumLandmarks:
		var p Pose
		copy(p[:], ls)
		return &p, nil
	default:
		return nil, fmt.Errorf("%s: expected 0 or %d landmarks, got %d", field, NumLandmarks, len(ls))
	}
}

func (f FrameRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(frameRecordJSON{
		FrameNumber: f.FrameNumber,
		Timestamp:   f.Timestamp,
		Landmarks2D: poseSlice(f.Landmarks2D),
		Landmarks3D: poseSlice(f.Landmarks3D),
	})
}

func (f *FrameRecord) UnmarshalJSON(data []byte) error {
	var raw frameRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	l2d, err := sliceToPose("landmarks_2d", raw.Landmarks2D)
	if err != nil {
		return fmt.Errorf("frame %d: %w", raw.FrameNumber, err)
	}
	l3d, err := sliceToPose("landmarks_3d", raw.Landmarks3D)
	if err != nil {
		return fmt.Errorf("frame %d: %w", raw.FrameNumber, err)
	}

	*f = FrameRecord{
		FrameNumber: raw.FrameNumber,
		Timestamp:   raw.Timestamp,
		Landmarks2D: l2d,
		Landmarks3D: l3d,
	}
	return nil
}

// MotionDocument is the persisted motion-capture record of one video.
type MotionDocument struct {
	Metadata Metadata      `json:"metadata"`
	Frames   []FrameRecord `json:"frames"`
}

// NewMotionDocument returns an empty document ready for appending.
func NewMotionDocument(meta Metadata) *MotionDocument {
	return &MotionDocument{
		Metadata: meta,
		Frames:   make([]FrameRecord, 0, max(meta.FrameCount, 0)),
	}
}

// Append adds the next frame. Frame numbers must continue the sequence.
func (d *MotionDocument) Append(rec FrameRecord) error {
	if rec.FrameNumber != len(d.Frames) {
		return fmt.Errorf("frame %d appended out of order, expected %d", rec.FrameNumber, len(d.Frames))
	}
	d.Frames = append(d.Frames, rec)
	return nil
}

// DetectedFrames counts frames with a 2D landmark set.
func (d *MotionDocument) DetectedFrames() int {
	n := 0
	for _, f := range d.Frames {
		if f.Detected() {
			n++
		}
	}
	return n
}

func (d *MotionDocument) Validate() error {
	if d.Metadata.FPS <= 0 {
		return fmt.Errorf("invalid fps %v", d.Metadata.FPS)
	}
	for i, f := range d.Frames {
		if f.FrameNumber != i {
			return fmt.Errorf("frame at index %d has frame_number %d", i, f.FrameNumber)
		}
		if f.Landmarks2D == nil && f.Landmarks3D != nil {
			return fmt.Errorf("frame %d has 3D landmarks without 2D landmarks", i)
		}
	}
	return nil
}
