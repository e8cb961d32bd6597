package executor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vidsweep/internal/backends"
	"vidsweep/internal/fileutil"
	"vidsweep/internal/manifest"
	"vidsweep/internal/progress"
	"vidsweep/internal/runs"
	"vidsweep/internal/testsupport"
)

// fakeBackend records invocations and writes outputs for every sample not
// listed in fail/missing.
type fakeBackend struct {
	granularity backends.Granularity
	ckpt        string
	fail        map[string]bool
	missing     []string
	ran         []string
}

func (f *fakeBackend) Kind() backends.Kind               { return backends.KindWan22 }
func (f *fakeBackend) CheckpointDir() string             { return f.ckpt }
func (f *fakeBackend) Granularity() backends.Granularity { return f.granularity }

func (f *fakeBackend) RunSample(ctx context.Context, inv backends.Invocation) error {
	f.ran = append(f.ran, inv.Sample.SampleID)
	if f.fail[inv.Sample.SampleID] {
		return context.DeadlineExceeded
	}
	return fileutil.WriteText(inv.Sample.OutputVideo, "video")
}

func (f *fakeBackend) RunSlice(ctx context.Context, invs []backends.Invocation) ([]string, error) {
	missingSet := map[string]bool{}
	for _, id := range f.missing {
		missingSet[id] = true
	}
	for _, inv := range invs {
		f.ran = append(f.ran, inv.Sample.SampleID)
		if missingSet[inv.Sample.SampleID] {
			continue
		}
		if err := fileutil.WriteText(inv.Sample.OutputVideo, "video"); err != nil {
			return nil, err
		}
	}
	return f.missing, nil
}

type harness struct {
	run     runs.Run
	slice   runs.Slice
	backend *fakeBackend
	writer  *progress.Writer
}

func newHarness(t *testing.T, granularity backends.Granularity, ids ...string) *harness {
	t.Helper()
	run := runs.New("test", t.TempDir())
	slice := runs.Slice{Model: "wan22", Dataset: "ds", Task: runs.TaskT2V}

	rows := make([]manifest.TaskRow, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, manifest.TaskRow{
			SampleID:    id,
			Task:        string(slice.Task),
			Prompt:      "prompt for " + id,
			OutputVideo: run.OutputPath(slice, id),
		})
	}
	if err := manifest.WriteTaskRows(run.TaskManifestPath(slice), rows); err != nil {
		t.Fatal(err)
	}

	writer, err := progress.NewWriter(run.ProgressLogPath("job1"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { writer.Close() })

	return &harness{
		run:   run,
		slice: slice,
		backend: &fakeBackend{
			granularity: granularity,
			ckpt:        testsupport.CheckpointDir(t, filepath.Join(t.TempDir(), "ckpt")),
		},
		writer: writer,
	}
}

func (h *harness) executor(policy Policy) *Executor {
	return &Executor{Run: h.run, Backend: h.backend, Policy: policy, Progress: h.writer}
}

func (h *harness) counters(t *testing.T) progress.Counters {
	t.Helper()
	got, err := progress.Replay(h.writer.Path())
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func TestExecuteAllSamples(t *testing.T) {
	h := newHarness(t, backends.PerSample, "a", "b", "c")
	outcome, err := h.executor(Policy{SkipExisting: true, ContinueOnError: true}).Execute(context.Background(), h.slice)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Attempted != 3 || outcome.Done != 3 || outcome.Failed != 0 {
		t.Fatalf("outcome = %+v", outcome)
	}
	counters := h.counters(t)
	if counters.Attempted != 3 || counters.Done != 3 {
		t.Fatalf("replayed counters = %+v", counters)
	}
}

func TestExecuteFailFastHalts(t *testing.T) {
	h := newHarness(t, backends.PerSample, "a", "b", "c")
	h.backend.fail = map[string]bool{"a": true}

	_, err := h.executor(Policy{}).Execute(context.Background(), h.slice)
	if err == nil {
		t.Fatal("expected fail-fast error")
	}
	if len(h.backend.ran) != 1 {
		t.Fatalf("ran %v, want only the failing sample", h.backend.ran)
	}
}

func TestExecuteContinueOnErrorAttemptsAll(t *testing.T) {
	h := newHarness(t, backends.PerSample, "a", "b", "c")
	h.backend.fail = map[string]bool{"b": true}

	outcome, err := h.executor(Policy{ContinueOnError: true}).Execute(context.Background(), h.slice)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Attempted != 3 || outcome.Done != 2 || outcome.Failed != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestExecuteSkipsExistingOutputs(t *testing.T) {
	h := newHarness(t, backends.PerSample, "a", "b")
	testsupport.FakeVideo(t, h.run.OutputPath(h.slice, "a"))

	outcome, err := h.executor(Policy{SkipExisting: true}).Execute(context.Background(), h.slice)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.SkippedExisting != 1 || outcome.Attempted != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if len(h.backend.ran) != 1 || h.backend.ran[0] != "b" {
		t.Fatalf("ran %v, want [b]", h.backend.ran)
	}
}

func TestExecuteResumePicksUpRemainder(t *testing.T) {
	h := newHarness(t, backends.PerSample, "a", "b", "c")
	h.backend.fail = map[string]bool{"c": true}
	policy := Policy{SkipExisting: true, ContinueOnError: true}

	if _, err := h.executor(policy).Execute(context.Background(), h.slice); err != nil {
		t.Fatal(err)
	}

	// Second job over the same slice: a and b are done, only c reruns.
	h.backend.fail = nil
	h.backend.ran = nil
	outcome, err := h.executor(policy).Execute(context.Background(), h.slice)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.SkippedExisting != 2 || outcome.Done != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if len(h.backend.ran) != 1 || h.backend.ran[0] != "c" {
		t.Fatalf("ran %v, want [c]", h.backend.ran)
	}
}

func TestExecuteMaxSamplesCap(t *testing.T) {
	h := newHarness(t, backends.PerSample, "a", "b", "c", "d")
	outcome, err := h.executor(Policy{MaxSamples: 2}).Execute(context.Background(), h.slice)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Rows != 2 || outcome.Attempted != 2 {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestExecuteMissingImageForI2V(t *testing.T) {
	setup := func(t *testing.T) *harness {
		h := newHarness(t, backends.PerSample, "a")
		h.slice.Task = runs.TaskI2V
		image := filepath.Join(h.run.Root, "first_frame.png")
		testsupport.FakeVideo(t, image)
		rows := []manifest.TaskRow{
			{SampleID: "a", Task: "i2v", Prompt: "p", OutputVideo: h.run.OutputPath(h.slice, "a")},
			{SampleID: "b", Task: "i2v", Prompt: "p", ImagePath: image, OutputVideo: h.run.OutputPath(h.slice, "b")},
		}
		if err := manifest.WriteTaskRows(h.run.TaskManifestPath(h.slice), rows); err != nil {
			t.Fatal(err)
		}
		return h
	}

	// With continue_on_error the row is recorded and skipped.
	h := setup(t)
	outcome, err := h.executor(Policy{ContinueOnError: true}).Execute(context.Background(), h.slice)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.SkippedMissingInput != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}

	// Without it the missing image is fatal and halts the slice before
	// later rows run.
	h = setup(t)
	outcome, err = h.executor(Policy{}).Execute(context.Background(), h.slice)
	if err == nil {
		t.Fatal("expected fatal error for missing conditioning image")
	}
	if outcome.SkippedMissingInput != 1 || len(h.backend.ran) != 0 {
		t.Fatalf("outcome = %+v, ran %v", outcome, h.backend.ran)
	}
}

func TestExecuteMissingCheckpoint(t *testing.T) {
	h := newHarness(t, backends.PerSample, "a")
	h.backend.ckpt = filepath.Join(t.TempDir(), "absent")

	if _, err := h.executor(Policy{MissingCheckpoint: ActionFail}).Execute(context.Background(), h.slice); err == nil {
		t.Fatal("expected failure for missing checkpoint under fail action")
	}

	outcome, err := h.executor(Policy{MissingCheckpoint: ActionSkip}).Execute(context.Background(), h.slice)
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.CheckpointSkipped || outcome.Attempted != 0 {
		t.Fatalf("outcome = %+v", outcome)
	}

	// continue_on_error downgrades fail to a recorded skip.
	outcome, err = h.executor(Policy{MissingCheckpoint: ActionFail, ContinueOnError: true}).Execute(context.Background(), h.slice)
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.CheckpointSkipped {
		t.Fatalf("outcome = %+v", outcome)
	}
}

func TestExecuteBatchReportsMissingOutputs(t *testing.T) {
	h := newHarness(t, backends.PerSlice, "a", "b", "c")
	h.backend.missing = []string{"b"}

	outcome, err := h.executor(Policy{ContinueOnError: true}).Execute(context.Background(), h.slice)
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Done != 2 || outcome.MissingOutputs != 1 {
		t.Fatalf("outcome = %+v", outcome)
	}
	if len(h.backend.ran) != 3 {
		t.Fatalf("batch ran %v, want all three in one invocation", h.backend.ran)
	}

	// Without continue_on_error the missing output fails the slice.
	h2 := newHarness(t, backends.PerSlice, "a", "b")
	h2.backend.missing = []string{"a"}
	if _, err := h2.executor(Policy{}).Execute(context.Background(), h2.slice); err == nil {
		t.Fatal("expected error for missing batch output")
	}
}

func TestExecuteEmitsHeartbeats(t *testing.T) {
	h := newHarness(t, backends.PerSample, "a")
	slow := &slowBackend{fakeBackend: h.backend, delay: 30 * time.Millisecond}

	executor := &Executor{
		Run:      h.run,
		Backend:  slow,
		Policy:   Policy{HeartbeatInterval: 10 * time.Millisecond},
		Progress: h.writer,
	}
	if _, err := executor.Execute(context.Background(), h.slice); err != nil {
		t.Fatal(err)
	}
	if counters := h.counters(t); counters.Heartbeats == 0 {
		t.Fatal("expected at least one heartbeat event")
	}
}

type slowBackend struct {
	*fakeBackend
	delay time.Duration
}

func (s *slowBackend) RunSample(ctx context.Context, inv backends.Invocation) error {
	time.Sleep(s.delay)
	return s.fakeBackend.RunSample(ctx, inv)
}

func TestParseAction(t *testing.T) {
	if _, err := ParseAction("retry"); err == nil {
		t.Error("expected error for unknown action")
	}
	action, err := ParseAction(" Fail ")
	if err != nil || action != ActionFail {
		t.Errorf("ParseAction = %v, %v", action, err)
	}
}
