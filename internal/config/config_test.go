package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.normalize(); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestLoadAppliesFileValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
runs_dir = "` + filepath.Join(dir, "runs") + `"

[backends.wan22]
checkpoint_dir = "` + filepath.Join(dir, "ckpt") + `"

[execution]
max_samples = 5
missing_checkpoint_action = "SKIP"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved=%q exists=%v", resolved, exists)
	}
	if cfg.Execution.MaxSamples != 5 {
		t.Fatalf("max_samples = %d", cfg.Execution.MaxSamples)
	}
	if cfg.Execution.MissingCheckpoint != "skip" {
		t.Fatalf("missing_checkpoint_action = %q", cfg.Execution.MissingCheckpoint)
	}
	if cfg.Backends.Wan22.PythonBin != "python" {
		t.Fatalf("wan22 python_bin default missing: %q", cfg.Backends.Wan22.PythonBin)
	}
}

func TestLoadRejectsBadEnum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[execution]
missing_checkpoint_action = "retry"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := Load(path); err == nil {
		t.Fatal("expected validation error for bad enum")
	} else if !strings.Contains(err.Error(), "missing_checkpoint_action") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBackendFor(t *testing.T) {
	cfg := Default()
	for _, model := range []string{"wan22", "wan21", "lvp"} {
		if _, ok := cfg.BackendFor(model); !ok {
			t.Fatalf("missing backend for %s", model)
		}
	}
	if _, ok := cfg.BackendFor("sora"); ok {
		t.Fatal("unexpected backend for unknown model")
	}
}

func TestExpandPathTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := ExpandPath("~/runs")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(home, "runs") {
		t.Fatalf("expand = %q", got)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "config.toml")
	if err := CreateSample(target); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := Load(target); err != nil {
		t.Fatalf("sample config should load cleanly: %v", err)
	}
}
