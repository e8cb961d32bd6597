package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"vidsweep/internal/services"
)

func TestPrettyHandlerFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl))

	logger.Info("sample started",
		String(FieldComponent, "executor"),
		String(FieldSampleID, "ball_drop_01"),
		Int("row", 3),
	)

	line := buf.String()
	if !strings.Contains(line, "INFO executor: sample started") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "sample_id=ball_drop_01") || !strings.Contains(line, "row=3") {
		t.Fatalf("missing attrs in line: %q", line)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl))

	logger.Info("prompt", String("text", "a ball drops"))
	if !strings.Contains(buf.String(), `text="a ball drops"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsSliceFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl))

	ctx := services.WithSlice(context.Background(), "wan21", "physics_iq", "t2v")
	ctx = services.WithRunID(ctx, "run-7")
	WithContext(ctx, logger).Info("slice started")

	line := buf.String()
	for _, want := range []string{"model=wan21", "dataset=physics_iq", "task=t2v", "run_id=run-7"} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %q in line %q", want, line)
		}
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	logger.Info("should not panic")
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("noop logger should never be enabled")
	}
}
