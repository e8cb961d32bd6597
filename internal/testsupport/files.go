// Package testsupport provides shared fixtures for package tests: fake media
// files, canonical manifests, and stub backend scripts.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"vidsweep/internal/manifest"
)

// WriteFile writes content at path, creating parent directories.
func WriteFile(t testing.TB, path, content string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// FakeVideo writes a small non-empty stand-in for a video file.
func FakeVideo(t testing.TB, path string) string {
	t.Helper()
	return WriteFile(t, path, "fake-mp4-bytes")
}

// CanonicalManifest writes a canonical manifest with one fake ground-truth
// video per id and returns its path.
func CanonicalManifest(t testing.TB, dir string, ids ...string) string {
	t.Helper()
	records := make([]manifest.Record, 0, len(ids))
	for _, id := range ids {
		video := FakeVideo(t, filepath.Join(dir, "videos", id+".mp4"))
		records = append(records, manifest.Record{
			SampleID:         id,
			Prompt:           "prompt for " + id,
			GroundTruthVideo: video,
		})
	}
	path := filepath.Join(dir, "manifest.jsonl")
	if err := manifest.WriteRecords(path, records); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

// CheckpointDir creates a directory with one entry so checkpoint probes pass.
func CheckpointDir(t testing.TB, dir string) string {
	t.Helper()
	WriteFile(t, filepath.Join(dir, "model.safetensors"), "weights")
	return dir
}
