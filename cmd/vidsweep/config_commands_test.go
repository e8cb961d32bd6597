package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, target) {
		t.Fatalf("output = %q", out)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "[backends.wan22]") {
		t.Fatalf("sample config missing backend section:\n%s", data)
	}

	// Second init without --overwrite refuses.
	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error for existing config")
	}
	if _, err := runCommand(t, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatal(err)
	}
}

func TestConfigValidateAcceptsSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if _, err := runCommand(t, "config", "init", "--path", target); err != nil {
		t.Fatal(err)
	}
	out, err := runCommand(t, "config", "validate", "--path", target)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "is valid") {
		t.Fatalf("output = %q", out)
	}
}

func TestConfigValidateRejectsBadFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("[execution]\nmissing_checkpoint_action = \"retry\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCommand(t, "config", "validate", "--path", target); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestConfigShowPrintsResolvedValues(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(target, []byte("[scheduler]\npartition = \"gpu-long\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := runCommand(t, "config", "show", "--path", target)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "gpu-long") {
		t.Fatalf("output missing file value:\n%s", out)
	}
}
