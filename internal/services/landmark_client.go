package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"MOTION_CAPTURE/go-backend/internal/models"
)

const (
	// DetectMethod is the unary RPC served by the pose landmark sidecar. The
	// request is a JPEG frame, the response a struct with "pose_landmarks" and
	// "pose_world_landmarks" lists.
	DetectMethod = "/motioncap.v1.PoseLandmarker/Detect"

	maxMessageSize = 50 * 1024 * 1024
	jpegQuality    = 90
)

// LandmarkClient talks to the external pose landmark detector over gRPC.
type LandmarkClient struct {
	conn    *grpc.ClientConn
	health  grpc_health_v1.HealthClient
	url     string
	timeout time.Duration
}

func NewLandmarkClient(url string, timeout time.Duration, extra ...grpc.DialOption) (*LandmarkClient, error) {
	slog.Info("Connecting to landmark detector", "url", url)

	opts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(maxMessageSize),
			grpc.MaxCallSendMsgSize(maxMessageSize),
		),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                10 * time.Second,
			Timeout:             3 * time.Second,
			PermitWithoutStream: true,
		}),
	}
	opts = append(opts, extra...)

	conn, err := grpc.NewClient(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not connect to landmark detector at %s: %w", url, err)
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &LandmarkClient{
		conn:    conn,
		health:  grpc_health_v1.NewHealthClient(conn),
		url:     url,
		timeout: timeout,
	}, nil
}

func (lc *LandmarkClient) Detect(ctx context.Context, frame models.Frame) (*models.Detection, error) {
	payload, err := EncodeJPEG(frame)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, lc.timeout)
	defer cancel()

	resp := &structpb.Struct{}
	if err := lc.conn.Invoke(ctx, DetectMethod, wrapperspb.Bytes(payload), resp); err != nil {
		return nil, fmt.Errorf("could not detect landmarks: %w", err)
	}
	return DetectionFromStruct(resp)
}

func (lc *LandmarkClient) HealthCheck() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := lc.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	return err == nil && resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING
}

func (lc *LandmarkClient) Close() error {
	if lc.conn != nil {
		return lc.conn.Close()
	}
	return nil
}

// EncodeJPEG converts a packed RGB24 frame to JPEG.
func EncodeJPEG(frame models.Frame) ([]byte, error) {
	if frame.Width <= 0 || frame.Height <= 0 || len(frame.Data) < frame.Width*frame.Height*3 {
		return nil, fmt.Errorf("frame %d: invalid %dx%d buffer of %d bytes", frame.Index, frame.Width, frame.Height, len(frame.Data))
	}

	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))
	for i, j := 0, 0; i < frame.Width*frame.Height; i, j = i+1, j+3 {
		img.Pix[i*4] = frame.Data[j]
		img.Pix[i*4+1] = frame.Data[j+1]
		img.Pix[i*4+2] = frame.Data[j+2]
		img.Pix[i*4+3] = 0xff
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("frame %d: jpeg encode: %w", frame.Index, err)
	}
	return buf.Bytes(), nil
}

// DetectionFromStruct reads the detector response. Missing lists mean no
// detection; null list entries become nil landmarks.
func DetectionFromStruct(s *structpb.Struct) (*models.Detection, error) {
	l2d, err := landmarksFromValue(s.GetFields()["pose_landmarks"])
	if err != nil {
		return nil, fmt.Errorf("pose_landmarks: %w", err)
	}
	l3d, err := landmarksFromValue(s.GetFields()["pose_world_landmarks"])
	if err != nil {
		return nil, fmt.Errorf("pose_world_landmarks: %w", err)
	}
	return &models.Detection{Landmarks2D: l2d, Landmarks3D: l3d}, nil
}

// DetectionToStruct is the inverse of DetectionFromStruct, used by detector
// implementations and tests.
func DetectionToStruct(det *models.Detection) (*structpb.Struct, error) {
	fields := map[string]interface{}{}
	if det != nil {
		if det.Landmarks2D != nil {
			fields["pose_landmarks"] = landmarksToList(det.Landmarks2D)
		}
		if det.Landmarks3D != nil {
			fields["pose_world_landmarks"] = landmarksToList(det.Landmarks3D)
		}
	}
	return structpb.NewStruct(fields)
}

func landmarksToList(ls []*models.RawLandmark) []interface{} {
	out := make([]interface{}, len(ls))
	for i, l := range ls {
		if l == nil {
			continue
		}
		out[i] = map[string]interface{}{
			"x":          l.X,
			"y":          l.Y,
			"z":          l.Z,
			"visibility": l.Visibility,
		}
	}
	return out
}

func landmarksFromValue(v *structpb.Value) ([]*models.RawLandmark, error) {
	if v == nil {
		return nil, nil
	}
	if _, isNull := v.GetKind().(*structpb.Value_NullValue); isNull {
		return nil, nil
	}
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("expected a list")
	}

	out := make([]*models.RawLandmark, len(list.GetValues()))
	for i, item := range list.GetValues() {
		obj := item.GetStructValue()
		if obj == nil {
			continue
		}
		f := obj.GetFields()
		out[i] = &models.RawLandmark{
			X:          f["x"].GetNumberValue(),
			Y:          f["y"].GetNumberValue(),
			Z:          f["z"].GetNumberValue(),
			Visibility: f["visibility"].GetNumberValue(),
		}
	}
	return out, nil
}
