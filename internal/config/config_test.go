package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("OUTPUT_DIR", "")

	cfg := LoadConfig()

	if cfg.HTTPPort != "5000" {
		t.Errorf("HTTPPort = %q, want 5000", cfg.HTTPPort)
	}
	if cfg.OutputDir != "output" {
		t.Errorf("OutputDir = %q, want output", cfg.OutputDir)
	}
	if cfg.DBDriver != "sqlite3" {
		t.Errorf("DBDriver = %q, want sqlite3", cfg.DBDriver)
	}
	if !cfg.HistoryEnabled() {
		t.Error("history should be enabled by default")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "8088")
	t.Setenv("DETECTOR_TIMEOUT_MS", "1500")
	t.Setenv("MAX_UPLOAD_SIZE_MB", "-4")
	t.Setenv("WS_POLL_INTERVAL_MS", "not-a-number")
	t.Setenv("DB_DRIVER", "none")

	cfg := LoadConfig()

	if cfg.HTTPPort != "8088" {
		t.Errorf("HTTPPort = %q", cfg.HTTPPort)
	}
	if cfg.DetectorTimeout != 1500*time.Millisecond {
		t.Errorf("DetectorTimeout = %v", cfg.DetectorTimeout)
	}
	if cfg.MaxUploadSizeMB != 500 {
		t.Errorf("MaxUploadSizeMB = %d, want fallback 500", cfg.MaxUploadSizeMB)
	}
	if cfg.WSPollInterval != 500*time.Millisecond {
		t.Errorf("WSPollInterval = %v", cfg.WSPollInterval)
	}
	if cfg.HistoryEnabled() {
		t.Error("history should be disabled for DB_DRIVER=none")
	}
}

func TestDSNForLogHidesPassword(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "secret", DBName: "n", DBSSLMode: "disable"}

	if got := cfg.DSNForLog(); got != "host=db port=5432 user=u password=*** dbname=n sslmode=disable" {
		t.Errorf("DSNForLog() = %q", got)
	}
	if got := cfg.DSN(); got != "host=db port=5432 user=u password=secret dbname=n sslmode=disable" {
		t.Errorf("DSN() = %q", got)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		cfg := &Config{LogLevel: in}
		if got := cfg.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
