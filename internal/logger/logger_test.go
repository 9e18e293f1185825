package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer

	log := NewWithWriter(&buf, "info", FormatJSON)
	log.With("job", "sync").Info("Sync complete", "files", 3)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON log line, got %q: %v", buf.String(), err)
	}

	if entry["job"] != "sync" || entry["msg"] != "Sync complete" {
		t.Errorf("Unexpected entry: %v", entry)
	}
}

func TestWith_KeepsLevel(t *testing.T) {
	var buf bytes.Buffer

	child := NewWithWriter(&buf, "warn", FormatText).With("job", "report")

	child.Info("hidden")
	child.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "visible") || !strings.Contains(out, "job=report") {
		t.Errorf("Unexpected output %q", out)
	}
}
