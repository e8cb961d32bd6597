// Package runs defines the on-disk run layout and the slice identity used by
// every other component. A run owns a root directory; all paths under it are
// deterministic functions of (model, dataset, task, sample_id), which is what
// makes resume-by-output-existence possible.
package runs

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Task is the generation task type.
type Task string

const (
	TaskT2V Task = "t2v"
	TaskI2V Task = "i2v"
)

// Tasks returns the supported task set in canonical order.
func Tasks() []Task {
	return []Task{TaskT2V, TaskI2V}
}

// ParseTask validates a task string.
func ParseTask(raw string) (Task, error) {
	switch Task(strings.ToLower(strings.TrimSpace(raw))) {
	case TaskT2V:
		return TaskT2V, nil
	case TaskI2V:
		return TaskI2V, nil
	default:
		return "", fmt.Errorf("unsupported task %q (use t2v or i2v)", raw)
	}
}

// Slice identifies one (model, dataset, task) execution unit.
type Slice struct {
	Model   string
	Dataset string
	Task    Task
}

// String renders the slice as model/dataset/task.
func (s Slice) String() string {
	return s.Model + "/" + s.Dataset + "/" + string(s.Task)
}

// JobName derives a scheduler job name for the slice under the given prefix.
func (s Slice) JobName(prefix string) string {
	parts := []string{prefix, s.Model, s.Dataset, string(s.Task)}
	return strings.Join(parts, "_")
}

// Run is a named execution context rooted at a directory.
type Run struct {
	ID   string
	Root string
}

// New constructs a Run. The id defaults to the root basename.
func New(id, root string) Run {
	root = filepath.Clean(root)
	if strings.TrimSpace(id) == "" {
		id = filepath.Base(root)
	}
	return Run{ID: id, Root: root}
}

// SampleDir returns the shared asset directory for one sample of a dataset.
func (r Run) SampleDir(dataset, sampleID string) string {
	return filepath.Join(r.Root, "datasets", dataset, "samples", sampleID)
}

// TaskDir returns the root of one slice's tree.
func (r Run) TaskDir(s Slice) string {
	return filepath.Join(r.Root, s.Model, s.Dataset, string(s.Task))
}

// InputsDir returns the slice's inputs directory.
func (r Run) InputsDir(s Slice) string {
	return filepath.Join(r.TaskDir(s), "inputs")
}

// OutputsDir returns the slice's outputs directory.
func (r Run) OutputsDir(s Slice) string {
	return filepath.Join(r.TaskDir(s), "outputs")
}

// LogsDir returns the slice's per-sample log directory.
func (r Run) LogsDir(s Slice) string {
	return filepath.Join(r.TaskDir(s), "logs")
}

// GroundTruthDir returns the slice's mirrored ground-truth directory.
func (r Run) GroundTruthDir(s Slice) string {
	return filepath.Join(r.TaskDir(s), "ground_truth")
}

// PromptsDir returns the slice's per-sample prompt file directory.
func (r Run) PromptsDir(s Slice) string {
	return filepath.Join(r.InputsDir(s), "prompts")
}

// ImagesDir returns the slice's conditioning image directory (i2v only).
func (r Run) ImagesDir(s Slice) string {
	return filepath.Join(r.InputsDir(s), "images")
}

// TaskManifestPath returns the slice's task manifest location.
func (r Run) TaskManifestPath(s Slice) string {
	return filepath.Join(r.InputsDir(s), "manifest.jsonl")
}

// BatchTablePath returns the slice's batch metadata table location, used by
// the per-slice lvp backend.
func (r Run) BatchTablePath(s Slice) string {
	return filepath.Join(r.InputsDir(s), "lvp_batch.csv")
}

// OutputPath returns the deterministic destination for one sample's video.
func (r Run) OutputPath(s Slice, sampleID string) string {
	return filepath.Join(r.OutputsDir(s), sampleID+".mp4")
}

// SampleLogPath returns the backend log destination for one sample.
func (r Run) SampleLogPath(s Slice, sampleID string) string {
	return filepath.Join(r.LogsDir(s), sampleID+".log")
}

// SliceLogPath returns the backend log destination for a whole-slice
// invocation (batching backends).
func (r Run) SliceLogPath(s Slice) string {
	return filepath.Join(r.LogsDir(s), "batch.log")
}

// ProgressLogPath returns the append-only progress log for a job.
func (r Run) ProgressLogPath(jobID string) string {
	return filepath.Join(r.Root, "progress_"+jobID+".log")
}

// LockPath returns the planner lock file location.
func (r Run) LockPath() string {
	return filepath.Join(r.Root, ".vidsweep.lock")
}

// Slices enumerates every (model, dataset, task) combination in stable order.
func Slices(models, datasets []string, tasks []Task) []Slice {
	out := make([]Slice, 0, len(models)*len(datasets)*len(tasks))
	for _, model := range models {
		for _, dataset := range datasets {
			for _, task := range tasks {
				out = append(out, Slice{Model: model, Dataset: dataset, Task: task})
			}
		}
	}
	return out
}
