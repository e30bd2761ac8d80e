package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"MOTION_CAPTURE/go-backend/internal/config"
	"MOTION_CAPTURE/go-backend/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"

	pingAttempts = 5
)

// Store keeps the job history in SQLite or PostgreSQL.
type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// Open connects to the configured database and applies pending migrations.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "history")

	var dsn string
	switch cfg.DBDriver {
	case DriverSQLite:
		if dir := filepath.Dir(cfg.DBPath); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = cfg.DBPath + "?_busy_timeout=5000&_journal_mode=WAL"
		logger.Info("Opening SQLite database", "path", cfg.DBPath)
	case DriverPostgres:
		dsn = cfg.DSN()
		logger.Info("Opening PostgreSQL database", "dsn", cfg.DSNForLog())
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := sql.Open(cfg.DBDriver, dsn)
	if err != nil {
		return nil, err
	}

	if cfg.DBDriver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	s := &Store{db: db, driver: cfg.DBDriver, logger: logger}
	if err := s.connect(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Job history database initialized", "driver", cfg.DBDriver)
	return s, nil
}

// connect pings with exponential backoff; the database may still be
// starting when the server comes up.
func (s *Store) connect(ctx context.Context) error {
	backoff := retry.WithMaxRetries(pingAttempts, retry.NewExponential(200*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("Database not reachable yet", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not connect to database: %w", err)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	dialect := goose.DialectSQLite3
	if s.driver == DriverPostgres {
		dialect = goose.DialectPostgres
	}

	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(dialect, s.db, fsys)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		s.logger.Info("Applied migration", "version", r.Source.Version, "duration", r.Duration)
	}
	return nil
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) JobStarted(ctx context.Context, rec models.JobRecord) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO jobs (id, source_name, state, message, started_at)
		VALUES (?, ?, ?, ?, ?)`),
		rec.ID, rec.SourceName, string(rec.State), rec.Message, rec.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert job %s: %w", rec.ID, err)
	}
	return nil
}

// JobFinished stores the final state of a job. A job whose start was never
// recorded is inserted whole.
func (s *Store) JobFinished(ctx context.Context, rec models.JobRecord) error {
	var finished interface{}
	if rec.FinishedAt != nil {
		finished = rec.FinishedAt.UTC()
	}

	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE jobs SET output_file = ?, state = ?, message = ?, frames_processed = ?,
			frames_detected = ?, frame_count = ?, fps = ?, finished_at = ?
		WHERE id = ?`),
		rec.OutputFile, string(rec.State), rec.Message, rec.FramesProcessed,
		rec.FramesDetected, rec.FrameCount, rec.FPS, finished, rec.ID)
	if err != nil {
		return fmt.Errorf("update job %s: %w", rec.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO jobs (id, source_name, output_file, state, message, frames_processed,
			frames_detected, frame_count, fps, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.SourceName, rec.OutputFile, string(rec.State), rec.Message, rec.FramesProcessed,
		rec.FramesDetected, rec.FrameCount, rec.FPS, rec.StartedAt.UTC(), finished)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", rec.ID, err)
	}
	return nil
}

// ListJobs returns the most recent jobs first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]models.JobRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, source_name, output_file, state, message, frames_processed,
			frames_detected, frame_count, fps, started_at, finished_at
		FROM jobs
		ORDER BY started_at DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := []models.JobRecord{}
	for rows.Next() {
		var rec models.JobRecord
		var state string
		var finished sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.SourceName, &rec.OutputFile, &state, &rec.Message,
			&rec.FramesProcessed, &rec.FramesDetected, &rec.FrameCount, &rec.FPS,
			&rec.StartedAt, &finished); err != nil {
			return nil, err
		}
		rec.State = models.JobState(state)
		if finished.Valid {
			t := finished.Time
			rec.FinishedAt = &t
		}
		jobs = append(jobs, rec)
	}
	return jobs, rows.Err()
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	err := s.db.Close()
	if err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	s.logger.Info("Database closed")
	return nil
}

// rebind rewrites ? placeholders to $N for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
