package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort        string
	DetectorURL     string
	DetectorTimeout time.Duration
	CORSOrigins     string

	MaxUploadSizeMB int
	LogLevel        string
	Environment     string

	UploadDir   string
	OutputDir   string
	StaticDir   string
	FFmpegPath  string
	FFprobePath string

	WSPollInterval  time.Duration
	UploadTokenHash string

	DBDriver   string
	DBPath     string
	DBName     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

func (p *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.DBHost, p.DBPort, p.DBUser, p.DBPassword, p.DBName, p.DBSSLMode)
}

// DSNForLog hides the password.
func (p *Config) DSNForLog() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=*** dbname=%s sslmode=%s",
		p.DBHost, p.DBPort, p.DBUser, p.DBName, p.DBSSLMode)
}

func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}

// HistoryEnabled reports whether a job history database is configured.
func (c *Config) HistoryEnabled() bool {
	return c.DBDriver != "" && c.DBDriver != "none"
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger: text output in dev, JSON otherwise.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.IsDev() {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func LoadConfig() *Config {
	// .env is optional, system environment variables still apply
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, using system environment variables")
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "5000"),
		DetectorURL:     getEnv("DETECTOR_URL", "localhost:9000"),
		DetectorTimeout: time.Duration(getEnvInt("DETECTOR_TIMEOUT_MS", 5000)) * time.Millisecond,
		CORSOrigins:     getEnv("CORS_ORIGINS", "*"),
		MaxUploadSizeMB: getEnvInt("MAX_UPLOAD_SIZE_MB", 500),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		Environment:     getEnv("ENVIRONMENT", "production"),
		UploadDir:       getEnv("UPLOAD_DIR", "sample_videos"),
		OutputDir:       getEnv("OUTPUT_DIR", "output"),
		StaticDir:       getEnv("STATIC_DIR", ""),
		FFmpegPath:      getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:     getEnv("FFPROBE_PATH", "ffprobe"),
		WSPollInterval:  time.Duration(getEnvInt("WS_POLL_INTERVAL_MS", 500)) * time.Millisecond,
		UploadTokenHash: getEnv("UPLOAD_TOKEN_HASH", ""),
		DBDriver:        getEnv("DB_DRIVER", "sqlite3"),
		DBPath:          getEnv("DB_PATH", "data/motioncap.db"),
		DBHost:          getEnv("DB_HOST", "localhost"),
		DBPort:          getEnv("DB_PORT", "5432"),
		DBUser:          getEnv("DB_USER", "postgres"),
		DBPassword:      getEnv("DB_PASSWORD", ""),
		DBName:          getEnv("DB_NAME", "motioncap"),
		DBSSLMode:       getEnv("DB_SSLMODE", "disable"),
	}

	if cfg.DBDriver == "pgx" && cfg.DBPassword == "" {
		slog.Warn("DB_PASSWORD is not set")
	}
	if cfg.MaxUploadSizeMB <= 0 {
		slog.Warn("MAX_UPLOAD_SIZE_MB must be positive, using default", "value", cfg.MaxUploadSizeMB)
		cfg.MaxUploadSizeMB = 500
	}
	if cfg.WSPollInterval <= 0 {
		cfg.WSPollInterval = 500 * time.Millisecond
	}

	return cfg
}

func getEnv(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}
