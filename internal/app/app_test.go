package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/hitoshi/valuetrainer/internal/logger"
)

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg == nil {
		t.Fatal("expected non-nil config")
	}

	if cfg.DatabaseURL != testDatabaseURL {
		t.Errorf("DatabaseURL = %q, want %q", cfg.DatabaseURL, testDatabaseURL)
	}

	// グローバルロガーがJSON出力に設定されていることを確認する
	slog.Default().Info("init test")
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestInit_AppliesLogLevel(t *testing.T) {
	setTestEnv(t)
	t.Setenv("LOG_LEVEL", "warn")
	t.Cleanup(func() { _ = logger.SetLevel("info") })

	var buf bytes.Buffer
	if _, err := Init(&buf); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	slog.Default().Info("should be filtered")
	if buf.Len() != 0 {
		t.Errorf("info log should be filtered at warn level, got %s", buf.String())
	}
}

func TestInit_InvalidLogLevel_ReturnsError(t *testing.T) {
	setTestEnv(t)
	t.Setenv("LOG_LEVEL", "verbose")
	t.Cleanup(func() { _ = logger.SetLevel("info") })

	var buf bytes.Buffer
	if _, err := Init(&buf); err == nil {
		t.Fatal("expected error for unknown LOG_LEVEL")
	}
}

func TestInit_WithMissingConfig_ReturnsError(t *testing.T) {
	clearRequiredEnv(t)

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err == nil {
		t.Fatal("expected error for missing required env vars, got nil")
	}
	if cfg != nil {
		t.Error("expected nil config on error")
	}
}

func TestMaskDatabaseURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "credentials and query are hidden",
			raw:  "postgres://user:secret@db:5432/valuetrainer?sslmode=disable",
			want: "postgres://***@db:5432/valuetrainer",
		},
		{
			name: "no credentials",
			raw:  "postgres://db:5432/valuetrainer",
			want: "postgres://db:5432/valuetrainer",
		},
		{
			name: "unparseable",
			raw:  "not a url",
			want: "***",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := maskDatabaseURL(tt.raw)
			if got != tt.want {
				t.Errorf("maskDatabaseURL(%q) = %q, want %q", tt.raw, got, tt.want)
			}
			if strings.Contains(got, "secret") {
				t.Errorf("masked URL must not contain the password: %q", got)
			}
		})
	}
}
