package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"MOTION_CAPTURE/go-backend/internal/models"
	"MOTION_CAPTURE/go-backend/internal/services"
)

const defaultJobsLimit = 20

// JobSubmitter is the part of the job controller the HTTP layer needs.
type JobSubmitter interface {
	Submit(videoPath, sourceName string) (models.JobStatus, error)
	Status() models.JobStatus
}

type HistoryLister interface {
	ListJobs(ctx context.Context, limit int) ([]models.JobRecord, error)
	Ping(ctx context.Context) error
}

type HealthChecker interface {
	HealthCheck() bool
}

type Options struct {
	UploadDir       string
	StaticDir       string
	CORSOrigins     string
	MaxUploadBytes  int64
	UploadTokenHash string
	WSPollInterval  time.Duration
	Version         string
}

type Server struct {
	jobs     JobSubmitter
	docs     *services.DocumentStore
	history  HistoryLister
	detector HealthChecker
	metrics  *services.Metrics
	clients  *WebSocketClients
	opts     Options
	origins  []string
	logger   *slog.Logger
}

// NewServer wires the HTTP API. history and detector may be nil.
func NewServer(jobs JobSubmitter, docs *services.DocumentStore, history HistoryLister, detector HealthChecker,
	metrics *services.Metrics, opts Options, logger *slog.Logger) (*Server, error) {
	if jobs == nil || docs == nil {
		return nil, errors.New("handlers: job controller and document store are required")
	}
	if metrics == nil {
		metrics = services.NewMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "sample_videos"
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 500 << 20
	}
	if opts.WSPollInterval <= 0 {
		opts.WSPollInterval = 500 * time.Millisecond
	}
	if err := os.MkdirAll(opts.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}

	var origins []string
	for _, o := range strings.Split(opts.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return &Server{
		jobs:     jobs,
		docs:     docs,
		history:  history,
		detector: detector,
		metrics:  metrics,
		clients:  NewWebSocketClients(),
		opts:     opts,
		origins:  origins,
		logger:   logger.With("component", "http"),
	}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/upload", s.handleUpload)
	mux.HandleFunc("/progress", s.handleProgress)
	mux.HandleFunc("/output/", s.handleOutput)

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("/api/jobs", s.handleJobs)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/metrics", s.handleMetrics)

	if s.opts.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.opts.StaticDir)))
	} else {
		mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "Not found")
		})
	}

	return s.withCORS(mux)
}

// Clients exposes the websocket registry for shutdown.
func (s *Server) Clients() *WebSocketClients {
	return s.clients
}

func (s *Server) allowedOrigin(origin string) string {
	for _, o := range s.origins {
		if o == "*" {
			return "*"
		}
		if strings.EqualFold(o, origin) {
			return origin
		}
	}
	return ""
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := s.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Upload-Token")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{
		Error:     message,
		Timestamp: time.Now().Unix(),
	})
}

func (s *Server) authorizeUpload(r *http.Request) bool {
	if s.opts.UploadTokenHash == "" {
		return true
	}
	token := r.Header.Get("X-Upload-Token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(s.opts.UploadTokenHash), []byte(token)) == nil
}

// sanitizeFilename keeps only the base name of a client supplied file name.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return strings.TrimLeft(name, ".")
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if !s.authorizeUpload(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	s.clearWriteDeadline(w)
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		writeError(w, http.StatusBadRequest, "No video file provided")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No video file provided")
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if filename == "" {
		writeError(w, http.StatusBadRequest, "No file selected")
		return
	}

	// uploads get a unique prefix so a rejected upload never replaces the
	// file of the running job
	path := filepath.Join(s.opts.UploadDir, uuid.NewString()[:8]+"_"+filename)
	if err := saveUpload(path, file); err != nil {
		s.logger.Error("Failed to save upload", "filename", filename, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save video")
		return
	}

	status, err := s.jobs.Submit(path, filename)
	if errors.Is(err, services.ErrJobAlreadyActive) {
		os.Remove(path)
		s.logger.Info("Upload rejected, job already active", "filename", filename, "active_job", status.JobID)
		writeError(w, http.StatusConflict, "A video is already being processed")
		return
	}
	if err != nil {
		os.Remove(path)
		s.logger.Error("Failed to submit job", "filename", filename, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to start processing")
		return
	}

	s.logger.Info("Video uploaded", "filename", filename, "job_id", status.JobID, "bytes", header.Size)
	writeJSON(w, http.StatusAccepted, models.UploadResponse{
		Success:  true,
		Message:  "Video uploaded successfully",
		Filename: filename,
		JobID:    status.JobID,
	})
}

func saveUpload(path string, src io.Reader) (err error) {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	_, err = io.Copy(dst, src)
	return err
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.jobs.Status())
}

func (s *Server) handleOutput(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/output/")
	f, err := s.docs.Open(name)
	switch {
	case errors.Is(err, services.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "Invalid file name")
		return
	case errors.Is(err, services.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, "File not found")
		return
	case err != nil:
		s.logger.Error("Failed to open output", "name", name, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.clearWriteDeadline(w)
	w.Header().Set("Content-Type", "application/json")
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// clearWriteDeadline lifts the server WriteTimeout for routes whose request
// or response body is bounded by size rather than time.
func (s *Server) clearWriteDeadline(w http.ResponseWriter) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		s.logger.Debug("Failed to clear write deadline", "error", err)
	}
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "Job history is disabled")
		return
	}

	limit := defaultJobsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = min(n, 500)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	jobs, err := s.history.ListJobs(ctx, limit)
	if err != nil {
		s.logger.Error("Failed to list jobs", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch jobs")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	detectorHealthy := s.detector != nil && s.detector.HealthCheck()

	historyHealthy := false
	if s.history != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		historyHealthy = s.history.Ping(ctx) == nil
		cancel()
	}

	status := "healthy"
	if !detectorHealthy {
		status = "degraded"
	}

	s.logger.Debug("Health check", "detector", detectorHealthy, "history", historyHealthy)
	writeJSON(w, http.StatusOK, models.HealthStatus{
		Status:          status,
		DetectorService: detectorHealthy,
		HistoryStore:    historyHealthy,
		WSClients:       s.clients.Count(),
		UptimeSec:       int64(s.metrics.Uptime().Seconds()),
		Version:         s.opts.Version,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	snapshot := s.metrics.Snapshot()
	snapshot["active_clients"] = s.clients.Count()
	snapshot["timestamp"] = time.Now().Format(time.RFC3339)
	writeJSON(w, http.StatusOK, snapshot)
}
