package runs

import (
	"path/filepath"
	"testing"
)

func TestLayoutPaths(t *testing.T) {
	run := New("eval1", "/scratch/eval1")
	s := Slice{Model: "wan22", Dataset: "physics_iq", Task: TaskI2V}

	if got, want := run.OutputPath(s, "ball_drop"), filepath.Join("/scratch/eval1", "wan22", "physics_iq", "i2v", "outputs", "ball_drop.mp4"); got != want {
		t.Fatalf("output path = %q, want %q", got, want)
	}
	if got, want := run.TaskManifestPath(s), filepath.Join("/scratch/eval1", "wan22", "physics_iq", "i2v", "inputs", "manifest.jsonl"); got != want {
		t.Fatalf("manifest path = %q, want %q", got, want)
	}
	if got, want := run.SampleDir("physics_iq", "ball_drop"), filepath.Join("/scratch/eval1", "datasets", "physics_iq", "samples", "ball_drop"); got != want {
		t.Fatalf("sample dir = %q, want %q", got, want)
	}
	if got, want := run.ProgressLogPath("42"), filepath.Join("/scratch/eval1", "progress_42.log"); got != want {
		t.Fatalf("progress path = %q, want %q", got, want)
	}
}

func TestRunIDDefaultsToRootBase(t *testing.T) {
	run := New("", "/scratch/results/eval2")
	if run.ID != "eval2" {
		t.Fatalf("run id = %q", run.ID)
	}
}

func TestSlicesEnumeration(t *testing.T) {
	slices := Slices([]string{"wan22", "wan21", "lvp"}, []string{"ds"}, Tasks())
	if len(slices) != 6 {
		t.Fatalf("expected 6 slices, got %d", len(slices))
	}
	seen := map[string]bool{}
	for _, s := range slices {
		if seen[s.String()] {
			t.Fatalf("duplicate slice %s", s)
		}
		seen[s.String()] = true
	}
}

func TestParseTask(t *testing.T) {
	if task, err := ParseTask(" T2V "); err != nil || task != TaskT2V {
		t.Fatalf("parse t2v: %v %v", task, err)
	}
	if _, err := ParseTask("v2v"); err == nil {
		t.Fatal("expected error for unsupported task")
	}
}

func TestJobName(t *testing.T) {
	s := Slice{Model: "lvp", Dataset: "wisa80k", Task: TaskT2V}
	if got := s.JobName("vidsweep"); got != "vidsweep_lvp_wisa80k_t2v" {
		t.Fatalf("job name = %q", got)
	}
}
