package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"skyroute/pkg/config"
	"skyroute/pkg/model"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	requestLog := filepath.Join(tempDir, "requests.log")
	telemetryLog := filepath.Join(tempDir, "telemetry.log")

	cfg := &config.LogConfig{
		Server: config.LogSettings{
			Path:  serverLog,
			Level: "DEBUG",
		},
		Requests: config.LogSettings{
			Path:  requestLog,
			Level: "INFO",
		},
		Telemetry: config.LogSettings{
			Path:  telemetryLog,
			Level: "INFO",
		},
		Events: config.LogSettings{
			Path: filepath.Join(tempDir, "events.log"),
		},
	}

	cleanup, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer cleanup()

	// Verify Files Created
	if _, err := os.Stat(serverLog); os.IsNotExist(err) {
		t.Error("Server log file not created")
	}
	if _, err := os.Stat(requestLog); os.IsNotExist(err) {
		t.Error("Request log file not created")
	}
	if _, err := os.Stat(telemetryLog); os.IsNotExist(err) {
		t.Error("Telemetry log file not created")
	}

	// Verify Loggers are set
	if RequestLogger == nil {
		t.Error("RequestLogger was not initialized")
	}
	if TelemetryLogger == nil {
		t.Error("TelemetryLogger was not initialized")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRotate(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "server.log")
	if err := os.WriteFile(path, []byte("previous run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rotatePaths(path)

	old, err := os.ReadFile(path + ".old")
	if err != nil {
		t.Fatalf("rotated file missing: %v", err)
	}
	if string(old) != "previous run\n" {
		t.Errorf("rotated content mismatch: %q", old)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("original path should be gone after rotation")
	}
}

func TestLogEvent(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "events.log")
	SetEventLogPath(path)
	defer SetEventLogPath("")

	ts := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	LogEvent(&model.FleetEvent{
		Type:      "dispatch",
		Title:     "ORD-11223344 assigned to DRN-02",
		Summary:   "2.8km, est 4.9min",
		Timestamp: ts,
	})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("event log missing: %v", err)
	}
	line := string(data)
	if !strings.Contains(line, "[2026-03-14 10:30:00]") {
		t.Errorf("timestamp missing: %q", line)
	}
	if !strings.Contains(line, "[dispatch] ORD-11223344 assigned to DRN-02 - 2.8km, est 4.9min") {
		t.Errorf("event format mismatch: %q", line)
	}

	if got := GlobalEventCapture.GetLastLine(); !strings.Contains(got, "ORD-11223344") {
		t.Errorf("event capture mismatch: %q", got)
	}
}

func TestCaptureWriter(t *testing.T) {
	w := &CaptureWriter{}
	if got := w.GetLastLine(); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
	if got := w.Recent(5); len(got) != 0 {
		t.Errorf("Recent on empty writer = %v", got)
	}
	if _, err := w.Write([]byte("first")); err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("second")); err != nil {
		t.Fatal(err)
	}
	if got := w.GetLastLine(); got != "second" {
		t.Errorf("expected last line, got %q", got)
	}
	if got := w.Recent(1); len(got) != 1 || got[0] != "second" {
		t.Errorf("Recent(1) = %v", got)
	}
	if got := w.Recent(10); len(got) != 2 || got[0] != "first" {
		t.Errorf("Recent(10) = %v, want oldest first", got)
	}
}

func TestCaptureWriterBounded(t *testing.T) {
	w := &CaptureWriter{}
	for i := 0; i < captureLines+5; i++ {
		if _, err := w.Write([]byte{byte('a' + i)}); err != nil {
			t.Fatal(err)
		}
	}
	got := w.Recent(0)
	if len(got) != captureLines {
		t.Fatalf("ring holds %d lines, want %d", len(got), captureLines)
	}
	if got[0] != "f" {
		t.Errorf("oldest kept line = %q, want the 6th write", got[0])
	}
}
