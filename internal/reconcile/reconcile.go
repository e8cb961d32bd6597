// Package reconcile derives slice completion from the filesystem and turns
// the gap into resubmission directives. Expected counts come from the task
// manifests, got counts from non-empty output files; no progress log or
// stored state is consulted, so reconciliation is idempotent and safe to run
// while jobs are still executing.
package reconcile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"vidsweep/internal/config"
	"vidsweep/internal/fileutil"
	"vidsweep/internal/logging"
	"vidsweep/internal/manifest"
	"vidsweep/internal/runs"
	"vidsweep/internal/scheduler"
	"vidsweep/internal/services"
)

// SliceStatus is the completion picture for one slice.
type SliceStatus struct {
	Slice    runs.Slice
	Expected int
	Got      int
	Planned  bool
}

// Complete reports whether the slice needs no further work. Unplanned slices
// are never complete.
func (s SliceStatus) Complete() bool {
	return s.Planned && s.Got >= s.Expected
}

// Directive pairs an incomplete slice with the submission that would finish
// it.
type Directive struct {
	Slice   runs.Slice
	Request scheduler.Request
}

// Report is the result of reconciling a slice set.
type Report struct {
	Statuses   []SliceStatus
	Directives []Directive
}

// Reconciler inspects one run.
type Reconciler struct {
	Run        runs.Run
	Config     *config.Config
	MaxSamples int
	Binary     string
	Logger     *slog.Logger
}

// Status computes expected/got for one slice.
func (r *Reconciler) Status(slice runs.Slice) (SliceStatus, error) {
	status := SliceStatus{Slice: slice}

	expected, err := manifest.CountRows(r.Run.TaskManifestPath(slice))
	if err != nil {
		if os.IsNotExist(err) {
			return status, nil
		}
		return status, services.Wrap(services.ErrNotFound, "reconcile", "count manifest",
			fmt.Sprintf("task manifest for %s", slice), err)
	}
	if r.MaxSamples > 0 && expected > r.MaxSamples {
		expected = r.MaxSamples
	}
	status.Planned = true
	status.Expected = expected
	status.Got = countOutputs(r.Run.OutputsDir(slice))
	return status, nil
}

func countOutputs(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mp4") {
			continue
		}
		if fileutil.NonEmptyFile(filepath.Join(dir, entry.Name())) {
			count++
		}
	}
	return count
}

// Reconcile computes statuses for every slice and a directive per incomplete
// planned slice. A complete run yields zero directives.
func (r *Reconciler) Reconcile(slices []runs.Slice) (Report, error) {
	logger := logging.NewComponentLogger(r.Logger, "reconcile")
	var report Report
	for _, slice := range slices {
		status, err := r.Status(slice)
		if err != nil {
			return Report{}, err
		}
		report.Statuses = append(report.Statuses, status)
		if !status.Planned {
			logger.Debug("slice not planned, no directive",
				logging.String(logging.FieldModel, slice.Model),
				logging.String(logging.FieldDataset, slice.Dataset),
				logging.String(logging.FieldTask, string(slice.Task)),
			)
			continue
		}
		if status.Complete() {
			continue
		}
		report.Directives = append(report.Directives, Directive{
			Slice:   slice,
			Request: r.Request(slice),
		})
	}
	logger.Info("reconciled",
		logging.Int("slices", len(report.Statuses)),
		logging.Int("directives", len(report.Directives)),
	)
	return report, nil
}

// Request builds the scheduler submission that executes one slice.
func (r *Reconciler) Request(slice runs.Slice) scheduler.Request {
	sched := r.Config.Scheduler
	binary := r.Binary
	if binary == "" {
		binary = "vidsweep"
	}
	name := slice.JobName(sched.JobPrefix)

	command := []string{
		binary, "run",
		"--run-root", r.Run.Root,
		"--model", slice.Model,
		"--dataset", slice.Dataset,
		"--task", string(slice.Task),
	}
	if r.MaxSamples > 0 {
		command = append(command, "--max-samples", fmt.Sprintf("%d", r.MaxSamples))
	}

	logDir := r.Config.Paths.LogDir
	if logDir == "" {
		logDir = r.Run.Root
	}
	return scheduler.Request{
		Name:      name,
		Partition: sched.Partition,
		Account:   sched.Account,
		Gres:      sched.Gres,
		CPUs:      sched.CPUs,
		MemoryGB:  sched.MemoryGB,
		Walltime:  sched.Walltime,
		Command:   command,
		LogPath:   filepath.Join(logDir, name+"_%j.out"),
	}
}
