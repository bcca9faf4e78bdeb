package env

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestGet(t *testing.T) {
	t.Setenv("ENV_TEST_VALUE", "")
	if got := Get("ENV_TEST_VALUE", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}

	t.Setenv("ENV_TEST_VALUE", "set")
	if got := Get("ENV_TEST_VALUE", "fallback"); got != "set" {
		t.Errorf("expected set, got %q", got)
	}
}

func TestGetInt(t *testing.T) {
	t.Setenv("ENV_TEST_INT", "")
	v, err := GetInt("ENV_TEST_INT", 3)
	if err != nil || v != 3 {
		t.Errorf("expected default 3, got %d (err %v)", v, err)
	}

	t.Setenv("ENV_TEST_INT", "7")
	v, err = GetInt("ENV_TEST_INT", 3)
	if err != nil || v != 7 {
		t.Errorf("expected 7, got %d (err %v)", v, err)
	}

	t.Setenv("ENV_TEST_INT", "seven")
	if _, err := GetInt("ENV_TEST_INT", 3); err == nil {
		t.Error("expected error for non-integer value")
	}
}

func TestGetFloat(t *testing.T) {
	t.Setenv("ENV_TEST_FLOAT", "2.5")
	v, err := GetFloat("ENV_TEST_FLOAT", 1)
	if err != nil || v != 2.5 {
		t.Errorf("expected 2.5, got %v (err %v)", v, err)
	}

	t.Setenv("ENV_TEST_FLOAT", "abc")
	if _, err := GetFloat("ENV_TEST_FLOAT", 1); err == nil {
		t.Error("expected error for non-numeric value")
	}
}

func TestGetDuration(t *testing.T) {
	t.Setenv("ENV_TEST_DURATION", "")
	v, err := GetDuration("ENV_TEST_DURATION", 2*time.Second)
	if err != nil || v != 2*time.Second {
		t.Errorf("expected default 2s, got %v (err %v)", v, err)
	}

	t.Setenv("ENV_TEST_DURATION", "250ms")
	v, err = GetDuration("ENV_TEST_DURATION", 2*time.Second)
	if err != nil || v != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v (err %v)", v, err)
	}

	t.Setenv("ENV_TEST_DURATION", "soon")
	if _, err := GetDuration("ENV_TEST_DURATION", time.Second); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestRequire(t *testing.T) {
	t.Setenv("ENV_TEST_REQUIRED", "")
	if _, err := Require("ENV_TEST_REQUIRED"); err == nil {
		t.Error("expected error for unset variable")
	}

	t.Setenv("ENV_TEST_REQUIRED", "x")
	if v, err := Require("ENV_TEST_REQUIRED"); err != nil || v != "x" {
		t.Errorf("expected x, got %q (err %v)", v, err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("ENV_TEST_FROM_FILE=loaded\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("ENV_TEST_FROM_FILE", "")
	os.Unsetenv("ENV_TEST_FROM_FILE")

	if err := Load(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("ENV_TEST_FROM_FILE"); got != "loaded" {
		t.Errorf("expected loaded, got %q", got)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		raw  string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.raw)
			if got := ParseLogLevel(slog.LevelInfo); got != tt.want {
				t.Errorf("ParseLogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewLogger_Format(t *testing.T) {
	var buf bytes.Buffer

	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("LOG_FORMAT", "json")
	NewLogger(&buf, slog.LevelInfo).Info("hello", "key", "value")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Errorf("expected JSON output, got %q", buf.String())
	}

	buf.Reset()
	t.Setenv("LOG_FORMAT", "")
	NewLogger(&buf, slog.LevelInfo).Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected debug to be filtered at info level, got %q", buf.String())
	}
}
