package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"MOTION_CAPTURE/go-backend/internal/config"
	"MOTION_CAPTURE/go-backend/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	cfg := &config.Config{
		DBDriver: DriverSQLite,
		DBPath:   filepath.Join(t.TempDir(), "data", "history.db"),
	}
	s, err := Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestJobLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := models.JobRecord{
		ID:         "job-1",
		SourceName: "dance.mp4",
		State:      models.StateProcessing,
		StartedAt:  started,
	}
	if err := s.JobStarted(ctx, rec); err != nil {
		t.Fatalf("JobStarted failed: %v", err)
	}

	jobs, err := s.ListJobs(ctx, 10)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 1 || jobs[0].State != models.StateProcessing || jobs[0].FinishedAt != nil {
		t.Fatalf("unexpected jobs after start: %+v", jobs)
	}

	finished := started.Add(42 * time.Second)
	rec.State = models.StateCompleted
	rec.Message = "Processing complete!"
	rec.OutputFile = "dance_motion.json"
	rec.FramesProcessed = 90
	rec.FramesDetected = 85
	rec.FrameCount = 90
	rec.FPS = 30
	rec.FinishedAt = &finished
	if err := s.JobFinished(ctx, rec); err != nil {
		t.Fatalf("JobFinished failed: %v", err)
	}

	jobs, err = s.ListJobs(ctx, 10)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	got := jobs[0]
	if got.State != models.StateCompleted || got.OutputFile != "dance_motion.json" ||
		got.FramesProcessed != 90 || got.FramesDetected != 85 || got.FPS != 30 {
		t.Errorf("unexpected job %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("started_at = %v, want %v", got.StartedAt, started)
	}
	if got.FinishedAt == nil || !got.FinishedAt.Equal(finished) {
		t.Errorf("finished_at = %v, want %v", got.FinishedAt, finished)
	}
}

func TestJobFinishedWithoutStart(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	rec := models.JobRecord{
		ID:         "orphan",
		SourceName: "x.mp4",
		State:      models.StateFailed,
		Message:    "source unavailable",
		StartedAt:  now,
		FinishedAt: &now,
	}
	if err := s.JobFinished(ctx, rec); err != nil {
		t.Fatalf("JobFinished failed: %v", err)
	}

	jobs, err := s.ListJobs(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 || jobs[0].ID != "orphan" || jobs[0].State != models.StateFailed {
		t.Errorf("unexpected jobs %+v", jobs)
	}
}

func TestListJobsNewestFirstWithLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		rec := models.JobRecord{ID: id, SourceName: id + ".mp4", State: models.StateQueued, StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.JobStarted(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	jobs, err := s.ListJobs(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 2 || jobs[0].ID != "c" || jobs[1].ID != "b" {
		t.Errorf("unexpected order %+v", jobs)
	}
}

func TestListJobsEmpty(t *testing.T) {
	s := openTestStore(t)

	jobs, err := s.ListJobs(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if jobs == nil || len(jobs) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", jobs)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	cfg := &config.Config{DBDriver: DriverSQLite, DBPath: path}
	ctx := context.Background()

	s, err := Open(ctx, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.JobStarted(ctx, models.JobRecord{ID: "1", SourceName: "a.mp4", State: models.StateProcessing, StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// migrations are already applied, a second open must not fail
	s, err = Open(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	jobs, err := s.ListJobs(ctx, 10)
	if err != nil || len(jobs) != 1 {
		t.Errorf("expected 1 job after reopen, got %d (%v)", len(jobs), err)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), &config.Config{DBDriver: "mysql"}, nil); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	if got := pg.rebind("SELECT ? , ? FROM t WHERE x = ?"); got != "SELECT $1 , $2 FROM t WHERE x = $3" {
		t.Errorf("postgres rebind = %q", got)
	}
	lite := &Store{driver: DriverSQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind = %q", got)
	}
}
