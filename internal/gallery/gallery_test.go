package gallery

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vidsweep/internal/manifest"
	"vidsweep/internal/runs"
	"vidsweep/internal/testsupport"
)

func seedRun(t *testing.T, root string) {
	t.Helper()
	run := runs.New("", root)
	for _, model := range []string{"wan22", "lvp"} {
		slice := runs.Slice{Model: model, Dataset: "ds", Task: runs.TaskT2V}
		output := run.OutputPath(slice, "a")
		if model == "wan22" {
			testsupport.FakeVideo(t, output) // only wan22 finished
		}
		rows := []manifest.TaskRow{{
			SampleID:         "a",
			Task:             "t2v",
			Prompt:           "a ball drops",
			GroundTruthVideo: testsupport.FakeVideo(t, filepath.Join(root, model, "ds", "t2v", "ground_truth", "a.mp4")),
			OutputVideo:      output,
		}}
		if err := manifest.WriteTaskRows(run.TaskManifestPath(slice), rows); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCollectMergesModels(t *testing.T) {
	root := t.TempDir()
	seedRun(t, root)

	builder := &Builder{
		RunRoots: []string{root},
		Models:   []string{"wan22", "lvp"},
		OutDir:   filepath.Join(t.TempDir(), "gallery"),
	}
	entries, err := builder.Collect()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %+v", entries)
	}
	entry := entries[0]
	if entry.Dataset != "ds" || entry.Task != "t2v" || entry.SampleID != "a" {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.Prompt != "a ball drops" {
		t.Fatalf("prompt = %q", entry.Prompt)
	}
	if _, ok := entry.outputPaths["wan22"]; !ok {
		t.Fatal("wan22 output not collected")
	}
	if _, ok := entry.outputPaths["lvp"]; ok {
		t.Fatal("missing lvp output should not be collected")
	}
}

func TestBuildWritesIndexAndMedia(t *testing.T) {
	root := t.TempDir()
	seedRun(t, root)

	builder := &Builder{
		RunRoots: []string{root},
		Models:   []string{"wan22", "lvp"},
		OutDir:   filepath.Join(t.TempDir(), "gallery"),
	}
	entries, err := builder.Collect()
	if err != nil {
		t.Fatal(err)
	}
	indexPath, err := builder.Build(entries)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(indexPath)
	if err != nil {
		t.Fatal(err)
	}
	page := string(data)
	for _, want := range []string{"a ball drops", "media/ds_t2v_a_gt.mp4", "media/ds_t2v_a_wan22.mp4", "missing"} {
		if !strings.Contains(page, want) {
			t.Errorf("index missing %q", want)
		}
	}

	link := filepath.Join(builder.OutDir, "media", "ds_t2v_a_wan22.mp4")
	if info, err := os.Lstat(link); err != nil || info.Mode()&os.ModeSymlink == 0 {
		t.Fatalf("expected symlinked media at %s: %v", link, err)
	}
}

func TestBuildRejectsEmptyCollection(t *testing.T) {
	builder := &Builder{OutDir: t.TempDir()}
	if _, err := builder.Build(nil); err == nil {
		t.Fatal("expected error for empty gallery")
	}
}
