package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerWithWriter_Formats(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelInfo, "text", &buf)
	logger.Info("launch complete", "submitted", 3)
	if out := buf.String(); !strings.Contains(out, "submitted=3") {
		t.Errorf("text format missing attr, got: %s", out)
	}

	buf.Reset()
	logger = NewLoggerWithWriter(slog.LevelInfo, "json", &buf)
	logger.Info("launch complete", "submitted", 3)
	if out := buf.String(); !strings.Contains(out, `"submitted":3`) {
		t.Errorf("json format missing attr, got: %s", out)
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelWarn, "text", &buf)

	logger.Info("quiet")
	logger.Warn("loud")

	out := buf.String()
	if strings.Contains(out, "quiet") {
		t.Errorf("INFO should be filtered at WARN level, got: %s", out)
	}
	if !strings.Contains(out, "loud") {
		t.Errorf("WARN should pass at WARN level, got: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
