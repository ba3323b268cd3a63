package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleOutput(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := Console(&buf, slog.LevelInfo)
	log.Info("converting model", "model", "gramformer")

	output := buf.String()
	if !strings.Contains(output, "converting model") {
		t.Fatalf("expected message in output, got: %s", output)
	}
	if !strings.Contains(output, "model=gramformer") {
		t.Fatalf("expected 'model=gramformer' in output, got: %s", output)
	}
}

func TestConsoleLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := Console(&buf, slog.LevelWarn)
	log.Info("should not appear")
	log.Debug("also should not appear")

	if buf.Len() > 0 {
		t.Fatalf("expected no output for info/debug at warn level, got: %s", buf.String())
	}

	log.Warn("should appear")
	if !strings.Contains(buf.String(), "should appear") {
		t.Fatalf("expected warn message in output, got: %s", buf.String())
	}
}

func TestJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo)
	log.Info("hello", "key", "value")

	output := buf.String()
	if !strings.Contains(output, `"key":"value"`) {
		t.Fatalf("expected key=value in JSON output, got: %s", output)
	}
	if !strings.Contains(output, `"level":"INFO"`) {
		t.Fatalf("expected level INFO in output, got: %s", output)
	}
}

func TestWith(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo)
	childLog := log.With("component", "export")
	childLog.Info("child message")

	output := buf.String()
	if !strings.Contains(output, `"component":"export"`) {
		t.Fatalf("expected component=export in output, got: %s", output)
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	log := Discard()
	// Should not panic
	log.Error("dropped")
}

func TestConsoleQuotesStringsWithSpaces(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewConsoleHandler(&buf, slog.LevelInfo)
	slog.New(h).Info("test", "msg", "hello world")

	if !strings.Contains(buf.String(), `msg="hello world"`) {
		t.Fatalf("expected quoted string with spaces, got: %s", buf.String())
	}
}

func TestConsoleHandlerWithAttrs(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewConsoleHandler(&buf, slog.LevelInfo)

	h2 := h.WithAttrs([]slog.Attr{slog.String("stage", "encoder")})
	slog.New(h2).Info("with attrs")

	if !strings.Contains(buf.String(), "stage=encoder") {
		t.Fatalf("expected 'stage=encoder' in output, got: %s", buf.String())
	}
}

func TestConsoleHandlerEnabled(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	h := NewConsoleHandler(&buf, slog.LevelWarn)

	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected info to be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("expected error to be enabled at warn level")
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tc := range tests {
		if result := ParseLevel(tc.input); result != tc.expected {
			t.Errorf("ParseLevel(%q): expected %v, got %v", tc.input, tc.expected, result)
		}
	}
}
