package services

import (
	"context"
	"errors"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	err := Wrap(ErrExternalTool, "executor", "run sample", "backend exited non-zero", errors.New("exit status 1"))
	if !errors.Is(err, ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
	details := Details(err)
	if details.Marker != ErrExternalTool {
		t.Fatalf("expected external tool marker, got %v", details.Marker)
	}
	if details.Message == "" {
		t.Fatal("expected non-empty message")
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "layout", "materialize", "", errors.New("boom"))
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestDetailsStripsMarkerPrefix(t *testing.T) {
	err := Wrap(ErrNotFound, "backends", "checkpoint probe", "checkpoint directory empty", nil)
	details := Details(err)
	if details.Marker != ErrNotFound {
		t.Fatalf("expected not found marker, got %v", details.Marker)
	}
	if got, want := details.Message, "backends: checkpoint probe: checkpoint directory empty"; got != want {
		t.Fatalf("message = %q, want %q", got, want)
	}
}

func TestIsFatalConfig(t *testing.T) {
	if !IsFatalConfig(Wrap(ErrConfiguration, "config", "validate", "bad enum", nil)) {
		t.Fatal("expected configuration error to be fatal")
	}
	if IsFatalConfig(Wrap(ErrExternalTool, "executor", "run", "", nil)) {
		t.Fatal("external tool failures are not fatal config errors")
	}
}

func TestContextRoundTrips(t *testing.T) {
	ctx := context.Background()
	ctx = WithRunID(ctx, "run-1")
	ctx = WithSlice(ctx, "wan22", "physics_iq", "i2v")
	ctx = WithSampleID(ctx, "ball_drop_01")
	ctx = WithJobID(ctx, "12345")

	if id, ok := RunIDFromContext(ctx); !ok || id != "run-1" {
		t.Fatalf("run id = %q, %v", id, ok)
	}
	model, dataset, task := SliceFromContext(ctx)
	if model != "wan22" || dataset != "physics_iq" || task != "i2v" {
		t.Fatalf("slice = %s/%s/%s", model, dataset, task)
	}
	if id, ok := SampleIDFromContext(ctx); !ok || id != "ball_drop_01" {
		t.Fatalf("sample id = %q, %v", id, ok)
	}
	if id, ok := JobIDFromContext(ctx); !ok || id != "12345" {
		t.Fatalf("job id = %q, %v", id, ok)
	}
}
