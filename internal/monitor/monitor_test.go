package monitor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"vidsweep/internal/config"
	"vidsweep/internal/manifest"
	"vidsweep/internal/progress"
	"vidsweep/internal/reconcile"
	"vidsweep/internal/runs"
	"vidsweep/internal/scheduler"
	"vidsweep/internal/testsupport"
)

type fakeScheduler struct {
	jobs []scheduler.JobStatus
	err  error
}

func (f *fakeScheduler) Submit(ctx context.Context, req scheduler.Request) (scheduler.Job, error) {
	return scheduler.Job{}, errors.New("not implemented")
}

func (f *fakeScheduler) Queue(ctx context.Context, filter scheduler.Filter) ([]scheduler.JobStatus, error) {
	return f.jobs, f.err
}

func newMonitor(t *testing.T) *Monitor {
	t.Helper()
	run := runs.New("test", t.TempDir())
	slices := []runs.Slice{
		{Model: "wan22", Dataset: "ds", Task: runs.TaskT2V},
		{Model: "lvp", Dataset: "ds", Task: runs.TaskI2V},
	}
	cfg := config.Default()
	return &Monitor{
		Run:        run,
		Slices:     slices,
		Reconciler: &reconcile.Reconciler{Run: run, Config: &cfg},
		Scheduler:  &fakeScheduler{},
	}
}

func seedSlice(t *testing.T, run runs.Run, slice runs.Slice, total, done int) {
	t.Helper()
	rows := make([]manifest.TaskRow, 0, total)
	for i := 0; i < total; i++ {
		id := string(rune('a' + i))
		rows = append(rows, manifest.TaskRow{
			SampleID:    id,
			Task:        string(slice.Task),
			Prompt:      "p",
			OutputVideo: run.OutputPath(slice, id),
		})
		if i < done {
			testsupport.FakeVideo(t, run.OutputPath(slice, id))
		}
	}
	if err := manifest.WriteTaskRows(run.TaskManifestPath(slice), rows); err != nil {
		t.Fatal(err)
	}
}

func TestSnapshotGathersStatusQueueAndErrors(t *testing.T) {
	m := newMonitor(t)
	seedSlice(t, m.Run, m.Slices[0], 2, 1)
	seedSlice(t, m.Run, m.Slices[1], 1, 1)

	m.Scheduler = &fakeScheduler{jobs: []scheduler.JobStatus{
		{ID: "101", Name: "vidsweep_wan22_ds_t2v", State: "RUNNING"},
	}}

	writer, err := progress.NewWriter(m.Run.ProgressLogPath("job1"))
	if err != nil {
		t.Fatal(err)
	}
	writer.Write(progress.Event{Event: progress.EventSliceStart, Model: "wan22"})
	writer.Close()

	testsupport.WriteFile(t, m.Run.SampleLogPath(m.Slices[0], "b"),
		"loading model\nTraceback (most recent call last):\n  ValueError: bad size\n")

	snap, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Queue) != 1 || snap.Queue[0].ID != "101" {
		t.Fatalf("queue = %+v", snap.Queue)
	}
	if len(snap.Statuses) != 2 {
		t.Fatalf("statuses = %+v", snap.Statuses)
	}
	if snap.Statuses[0].Got != 1 || snap.Statuses[0].Expected != 2 {
		t.Fatalf("first status = %+v", snap.Statuses[0])
	}
	if !snap.Statuses[1].Complete() {
		t.Fatalf("second status = %+v", snap.Statuses[1])
	}
	if snap.ProgressPath == "" || len(snap.ProgressTail) == 0 {
		t.Fatalf("progress tail = %+v", snap.ProgressTail)
	}
	if len(snap.Errors) == 0 || !strings.Contains(snap.Errors[0].Line, "Traceback") {
		t.Fatalf("errors = %+v", snap.Errors)
	}
}

func TestSnapshotSurvivesQueueFailure(t *testing.T) {
	m := newMonitor(t)
	seedSlice(t, m.Run, m.Slices[0], 1, 0)
	m.Scheduler = &fakeScheduler{err: errors.New("squeue unreachable")}

	snap, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.QueueError == nil {
		t.Fatal("expected recorded queue error")
	}
	if len(snap.Statuses) != 2 {
		t.Fatalf("statuses = %+v", snap.Statuses)
	}
}

func TestRenderTableAlignsNumericColumns(t *testing.T) {
	rendered := RenderTable(
		[]string{"MODEL", "EXPECTED"},
		[][]string{{"wan22", "7"}, {"lvp", "103"}},
		2,
	)
	if !strings.Contains(rendered, "wan22") || !strings.Contains(rendered, "103") {
		t.Fatalf("rendered table missing rows:\n%s", rendered)
	}
	for _, line := range strings.Split(rendered, "\n") {
		if !strings.Contains(line, " 7 ") {
			continue
		}
		// Right alignment pads the short count on the left.
		if !strings.Contains(line, "  7 ") {
			t.Fatalf("expected right-aligned count column:\n%s", rendered)
		}
	}
}

func TestRenderShowsSections(t *testing.T) {
	m := newMonitor(t)
	seedSlice(t, m.Run, m.Slices[0], 2, 1)

	snap, err := m.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	var out strings.Builder
	m.Render(&out, snap)
	text := out.String()
	for _, want := range []string{"Scheduler queue", "Slice completion", "Progress log", "Recent errors", "1/2", "Wan22"} {
		if !strings.Contains(text, want) {
			t.Errorf("render missing %q:\n%s", want, text)
		}
	}
}
