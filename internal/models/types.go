package models

// RawLandmark is a single point as returned by the landmark detector.
type RawLandmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

// Detection is the detector output for one frame. A nil entry inside a
// sequence means that landmark was not returned.
type Detection struct {
	Landmarks2D []*RawLandmark `json:"pose_landmarks,omitempty"`
	Landmarks3D []*RawLandmark `json:"pose_world_landmarks,omitempty"`
}

// Frame is one decoded video frame in packed RGB24.
type Frame struct {
	Index  int
	Width  int
	Height int
	Data   []byte
}

type ErrorResponse struct {
	Error     string `json:"error"`
	Timestamp int64  `json:"timestamp"`
	Code      string `json:"code,omitempty"`
}

type UploadResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Filename string `json:"filename"`
	JobID    string `json:"job_id"`
}

type HealthStatus struct {
	Status          string `json:"status"`
	DetectorService bool   `json:"detector_service"`
	HistoryStore    bool   `json:"history_store"`
	WSClients       int    `json:"ws_clients"`
	UptimeSec       int64  `json:"uptime_sec"`
	Version         string `json:"version,omitempty"`
}
