package backends

import (
	"context"
	"encoding/csv"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"vidsweep/internal/config"
	"vidsweep/internal/manifest"
	"vidsweep/internal/runs"
	"vidsweep/internal/testsupport"
)

func TestParseKind(t *testing.T) {
	for _, kind := range Kinds() {
		got, err := ParseKind(" " + string(kind) + " ")
		if err != nil || got != kind {
			t.Errorf("ParseKind(%q) = %v, %v", kind, got, err)
		}
	}
	if _, err := ParseKind("sora"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestCheckpointPresent(t *testing.T) {
	if CheckpointPresent("") {
		t.Error("empty dir should not count as a checkpoint")
	}
	if CheckpointPresent(filepath.Join(t.TempDir(), "missing")) {
		t.Error("missing dir should not count as a checkpoint")
	}

	empty := t.TempDir()
	if CheckpointPresent(empty) {
		t.Error("empty dir should not count as a checkpoint")
	}

	flat := testsupport.CheckpointDir(t, t.TempDir())
	if !CheckpointPresent(flat) {
		t.Error("dir with a weight file should count")
	}

	nested := t.TempDir()
	testsupport.CheckpointDir(t, filepath.Join(nested, "low_noise_model"))
	if !CheckpointPresent(nested) {
		t.Error("dir with populated subdirectory should count")
	}

	hollow := t.TempDir()
	if err := os.MkdirAll(filepath.Join(hollow, "empty_sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if CheckpointPresent(hollow) {
		t.Error("dir with only empty subdirectories should not count")
	}
}

func TestWanTaskVariants(t *testing.T) {
	wan22 := newWan(KindWan22, config.Backend{})
	wan21 := newWan(KindWan21, config.Backend{})
	cases := []struct {
		backend *wanBackend
		task    runs.Task
		want    string
	}{
		{wan22, runs.TaskT2V, "t2v-A14B"},
		{wan22, runs.TaskI2V, "i2v-A14B"},
		{wan21, runs.TaskT2V, "t2v-14B"},
		{wan21, runs.TaskI2V, "i2v-14B"},
	}
	for _, c := range cases {
		if got := c.backend.taskVariant(c.task); got != c.want {
			t.Errorf("%s %s variant = %q, want %q", c.backend.kind, c.task, got, c.want)
		}
	}
}

// fakeGenerate replaces the subprocess with a shell snippet that records its
// arguments and writes the requested output file.
func fakeGenerate(t *testing.T, script string) func() {
	t.Helper()
	saved := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", append([]string{"-c", script, name}, args...)...)
	}
	return func() { commandContext = saved }
}

func TestWanRunSampleWritesOutputAndLog(t *testing.T) {
	dir := t.TempDir()
	argsPath := filepath.Join(dir, "args.txt")
	output := filepath.Join(dir, "outputs", "a.mp4")

	restore := fakeGenerate(t, `printf '%s\n' "$@" > `+argsPath+`
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--save_file" ]; then out="$2"; fi
  shift
done
echo generating
printf video > "$out"`)
	defer restore()

	backend := newWan(KindWan22, config.Backend{
		PythonBin:     "python3",
		Script:        "generate.py",
		CheckpointDir: "/ckpts/wan22",
		Size:          "1280*720",
		SampleSteps:   40,
	})
	inv := Invocation{
		Sample: manifest.TaskRow{
			SampleID:    "a",
			Prompt:      "a ball drops",
			OutputVideo: output,
		},
		Slice:   runs.Slice{Model: "wan22", Dataset: "ds", Task: runs.TaskT2V},
		LogPath: filepath.Join(dir, "logs", "a.log"),
	}
	if err := backend.RunSample(context.Background(), inv); err != nil {
		t.Fatal(err)
	}

	args, err := os.ReadFile(argsPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"generate.py", "--task\nt2v-A14B", "--size\n1280*720", "--ckpt_dir\n/ckpts/wan22", "--sample_steps\n40"} {
		if !contains(string(args), want) {
			t.Errorf("invocation missing %q:\n%s", want, args)
		}
	}
	if contains(string(args), "--image") {
		t.Error("t2v invocation should not pass --image")
	}

	logData, err := os.ReadFile(inv.LogPath)
	if err != nil {
		t.Fatal(err)
	}
	if !contains(string(logData), "generating") {
		t.Errorf("log missing subprocess output: %q", logData)
	}
}

func TestWanRunSampleNonZeroExitFails(t *testing.T) {
	dir := t.TempDir()
	restore := fakeGenerate(t, "echo boom >&2; exit 3")
	defer restore()

	backend := newWan(KindWan21, config.Backend{PythonBin: "python3", Script: "generate.py"})
	inv := Invocation{
		Sample:  manifest.TaskRow{SampleID: "a", OutputVideo: filepath.Join(dir, "a.mp4")},
		Slice:   runs.Slice{Model: "wan21", Dataset: "ds", Task: runs.TaskT2V},
		LogPath: filepath.Join(dir, "a.log"),
	}
	if err := backend.RunSample(context.Background(), inv); err == nil {
		t.Fatal("expected error for non-zero exit")
	}
}

func TestWanRunSampleCleanExitWithoutOutputSucceeds(t *testing.T) {
	dir := t.TempDir()
	restore := fakeGenerate(t, "exit 0")
	defer restore()

	// Output drift on a clean exit is recorded downstream, not failed here.
	backend := newWan(KindWan21, config.Backend{PythonBin: "python3", Script: "generate.py"})
	inv := Invocation{
		Sample:  manifest.TaskRow{SampleID: "a", OutputVideo: filepath.Join(dir, "a.mp4")},
		Slice:   runs.Slice{Model: "wan21", Dataset: "ds", Task: runs.TaskT2V},
		LogPath: filepath.Join(dir, "a.log"),
	}
	if err := backend.RunSample(context.Background(), inv); err != nil {
		t.Fatalf("clean exit without output should not be an error: %v", err)
	}
}

func TestLVPRunSliceBatchTableAndMissing(t *testing.T) {
	dir := t.TempDir()
	run := runs.New("test", dir)
	slice := runs.Slice{Model: "lvp", Dataset: "ds", Task: runs.TaskI2V}

	// Produce only the first row's output so the second is reported missing.
	restore := fakeGenerate(t, `printf video > `+run.OutputPath(slice, "a"))
	defer restore()

	backend := newLVP(config.Backend{
		PythonBin:        "python3",
		Script:           "batch_generate.py",
		Width:            1280,
		Height:           720,
		NumFrames:        81,
		FPS:              16,
		GuidanceScale:    5.0,
		ImageGuidanceI2V: 3.0,
		ImageGuidanceT2V: 0.0,
	}, run)

	invs := []Invocation{
		{
			Sample: manifest.TaskRow{SampleID: "a", Prompt: "p1", ImagePath: "/img/a.png", OutputVideo: run.OutputPath(slice, "a")},
			Slice:  slice,
		},
		{
			Sample: manifest.TaskRow{SampleID: "b", Prompt: "p2", ImagePath: "/img/b.png", OutputVideo: run.OutputPath(slice, "b")},
			Slice:  slice,
		},
	}
	missing, err := backend.RunSlice(context.Background(), invs)
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 1 || missing[0] != "b" {
		t.Fatalf("missing = %v, want [b]", missing)
	}

	file, err := os.Open(run.BatchTablePath(slice))
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("batch table rows = %d, want header + 2", len(rows))
	}
	first := rows[1]
	if first[0] != "a" || first[1] != "/img/a.png" || first[4] != "1280" || first[6] != "81" || first[9] != "3" {
		t.Fatalf("unexpected batch row: %v", first)
	}
}

func TestLVPGuidanceByTask(t *testing.T) {
	backend := newLVP(config.Backend{ImageGuidanceI2V: 3.0, ImageGuidanceT2V: 0.0}, runs.Run{})
	if g := backend.imageGuidance(runs.TaskI2V); g != 3.0 {
		t.Errorf("i2v guidance = %v", g)
	}
	if g := backend.imageGuidance(runs.TaskT2V); g != 0.0 {
		t.Errorf("t2v guidance = %v", g)
	}
}

func TestForRejectsUnknownKind(t *testing.T) {
	cfg := config.Default()
	if _, err := For(Kind("sora"), &cfg, runs.Run{}); err == nil {
		t.Fatal("expected error")
	}
	backend, err := For(KindLVP, &cfg, runs.Run{})
	if err != nil {
		t.Fatal(err)
	}
	if backend.Granularity() != PerSlice {
		t.Error("lvp should be a per-slice backend")
	}
}

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
