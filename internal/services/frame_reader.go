package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/multierr"

	"MOTION_CAPTURE/go-backend/internal/models"
)

// FFProbeStream is a single stream in the ffprobe output.
type FFProbeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
	NbFrames     string `json:"nb_frames"`

	Tags         map[string]string `json:"tags,omitempty"`
	SideDataList []FFProbeSideData `json:"side_data_list,omitempty"`
}

type FFProbeSideData struct {
	SideDataType string  `json:"side_data_type"`
	Rotation     float64 `json:"rotation"`
}

// rotation returns the display rotation in degrees. ffmpeg applies it while
// decoding unless -noautorotate is given.
func (s FFProbeStream) rotation() int {
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			return int(sd.Rotation)
		}
	}
	if r, err := strconv.Atoi(s.Tags["rotate"]); err == nil {
		return r
	}
	return 0
}

type FFProbeOutput struct {
	Streams []FFProbeStream `json:"streams"`
}

// FFmpegReader decodes videos with the ffmpeg command line tools.
type FFmpegReader struct {
	FFmpegPath  string
	FFprobePath string
}

func NewFFmpegReader(ffmpegPath, ffprobePath string) *FFmpegReader {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegReader{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

func (r *FFmpegReader) Open(ctx context.Context, path string) (FrameStream, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: cannot open video file %s: %v", ErrSourceUnavailable, path, err)
	}

	meta, err := r.probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	cmd := exec.CommandContext(ctx, r.FFmpegPath,
		"-v", "error",
		"-nostdin",
		"-i", path,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: failed to start ffmpeg: %v", ErrSourceUnavailable, err)
	}

	return &ffmpegStream{
		meta:      meta,
		cmd:       cmd,
		stdout:    stdout,
		reader:    bufio.NewReaderSize(stdout, 1<<20),
		stderr:    &stderr,
		frameSize: meta.Width * meta.Height * 3,
	}, nil
}

func (r *FFmpegReader) probe(ctx context.Context, path string) (models.Metadata, error) {
	cmd := exec.CommandContext(ctx, r.FFprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,codec_type,avg_frame_rate,r_frame_rate,nb_frames:stream_tags=rotate:stream_side_data=rotation",
		"-of", "json",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return models.Metadata{}, fmt.Errorf("ffprobe command failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseProbeOutput(stdout.Bytes(), filepath.Base(path))
}

func parseProbeOutput(data []byte, sourceName string) (models.Metadata, error) {
	var result FFProbeOutput
	if err := json.Unmarshal(data, &result); err != nil {
		return models.Metadata{}, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	for _, stream := range result.Streams {
		if stream.CodecType != "video" {
			continue
		}
		if stream.Width <= 0 || stream.Height <= 0 {
			return models.Metadata{}, fmt.Errorf("could not detect video resolution for %s", sourceName)
		}

		fps := parseFrameRate(stream.AvgFrameRate)
		if fps <= 0 {
			fps = parseFrameRate(stream.RFrameRate)
		}
		if fps <= 0 {
			return models.Metadata{}, fmt.Errorf("could not detect frame rate for %s", sourceName)
		}

		// nb_frames is absent for some containers; an unknown count is 0
		frameCount, _ := strconv.Atoi(stream.NbFrames)

		// decoded frames are upright, so quarter turns swap the dimensions
		width, height := stream.Width, stream.Height
		if rot := ((stream.rotation() % 360) + 360) % 360; rot == 90 || rot == 270 {
			width, height = height, width
		}

		return models.Metadata{
			FPS:         fps,
			FrameCount:  max(frameCount, 0),
			Width:       width,
			Height:      height,
			SourceVideo: sourceName,
		}, nil
	}

	return models.Metadata{}, fmt.Errorf("no video stream found in %s", sourceName)
}

// parseFrameRate parses ffprobe rates such as "30000/1001" or "25".
func parseFrameRate(rate string) float64 {
	num, den, found := strings.Cut(strings.TrimSpace(rate), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !found {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}

type ffmpegStream struct {
	meta      models.Metadata
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	reader    *bufio.Reader
	stderr    *bytes.Buffer
	frameSize int
	index     int
	closed    bool
}

func (s *ffmpegStream) Metadata() models.Metadata {
	return s.meta
}

func (s *ffmpegStream) Next(ctx context.Context) (models.Frame, error) {
	if err := ctx.Err(); err != nil {
		return models.Frame{}, err
	}

	buf := make([]byte, s.frameSize)
	_, err := io.ReadFull(s.reader, buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return models.Frame{}, s.finish()
	case errors.Is(err, io.ErrUnexpectedEOF):
		return models.Frame{}, fmt.Errorf("truncated frame %d: %w", s.index, err)
	default:
		return models.Frame{}, err
	}

	frame := models.Frame{
		Index:  s.index,
		Width:  s.meta.Width,
		Height: s.meta.Height,
		Data:   buf,
	}
	s.index++
	return frame, nil
}

// finish waits for ffmpeg once stdout is drained. A clean exit is io.EOF.
func (s *ffmpegStream) finish() error {
	if s.closed {
		return io.EOF
	}
	s.closed = true
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg exited with %w: %s", err, strings.TrimSpace(s.stderr.String()))
	}
	return io.EOF
}

func (s *ffmpegStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.stdout.Close()
	if s.cmd.Process != nil {
		// already exited processes report os.ErrProcessDone
		if killErr := s.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			err = multierr.Append(err, killErr)
		}
	}
	if waitErr := s.cmd.Wait(); waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			err = multierr.Append(err, waitErr)
		}
	}
	return err
}
