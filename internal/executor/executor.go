// Package executor runs one (model, dataset, task) slice to completion: it
// walks the task manifest in order, skips samples whose output already
// exists, dispatches the rest to the model backend, and appends lifecycle
// events to the job's progress log. Resume needs no saved state; output
// existence is the only completion marker, so concurrently scheduled jobs
// over the same slice converge without coordination.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"vidsweep/internal/backends"
	"vidsweep/internal/config"
	"vidsweep/internal/fileutil"
	"vidsweep/internal/logging"
	"vidsweep/internal/manifest"
	"vidsweep/internal/progress"
	"vidsweep/internal/runs"
	"vidsweep/internal/services"
)

// Action is the policy response to a missing checkpoint directory.
type Action string

const (
	ActionSkip Action = "skip"
	ActionFail Action = "fail"
)

// ParseAction validates a missing-checkpoint action string.
func ParseAction(raw string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(raw))) {
	case ActionSkip:
		return ActionSkip, nil
	case ActionFail:
		return ActionFail, nil
	default:
		return "", fmt.Errorf("unsupported missing-checkpoint action %q (use skip or fail)", raw)
	}
}

// Policy controls how a slice execution treats existing outputs, failures,
// and absent checkpoints.
type Policy struct {
	MaxSamples        int
	SkipExisting      bool
	ContinueOnError   bool
	MissingCheckpoint Action
	HeartbeatInterval time.Duration
}

// PolicyFromConfig builds the execution policy from its config section.
func PolicyFromConfig(section config.Execution) Policy {
	action := ActionFail
	if parsed, err := ParseAction(section.MissingCheckpoint); err == nil {
		action = parsed
	}
	return Policy{
		MaxSamples:        section.MaxSamples,
		SkipExisting:      section.SkipExisting,
		ContinueOnError:   section.ContinueOnError,
		MissingCheckpoint: action,
		HeartbeatInterval: time.Duration(section.HeartbeatInterval) * time.Second,
	}
}

// Outcome summarizes one slice execution.
type Outcome struct {
	Slice               runs.Slice
	Rows                int
	Attempted           int
	Done                int
	Failed              int
	SkippedExisting     int
	SkippedMissingInput int
	MissingOutputs      int
	CheckpointSkipped   bool
}

// Executor drives one slice against one backend.
type Executor struct {
	Run      runs.Run
	Backend  backends.Backend
	Policy   Policy
	Progress *progress.Writer
	Logger   *slog.Logger
}

func (e *Executor) emit(event progress.Event, slice runs.Slice) {
	event.RunID = e.Run.ID
	event.Model = slice.Model
	event.Dataset = slice.Dataset
	event.Task = string(slice.Task)
	if e.Progress != nil {
		if err := e.Progress.Write(event); err != nil && e.Logger != nil {
			e.Logger.Warn("progress event dropped", logging.Error(err))
		}
	}
}

// Execute runs the slice under the executor's policy. It returns a non-nil
// error only when the slice must be treated as failed: manifest problems,
// or a missing checkpoint under ActionFail, a missing sample input, or a
// sample failure, each only while continue_on_error is off.
func (e *Executor) Execute(ctx context.Context, slice runs.Slice) (Outcome, error) {
	logger := logging.NewComponentLogger(e.Logger, "executor").With(
		logging.String(logging.FieldModel, slice.Model),
		logging.String(logging.FieldDataset, slice.Dataset),
		logging.String(logging.FieldTask, string(slice.Task)),
	)
	outcome := Outcome{Slice: slice}

	rows, err := manifest.ReadTaskRows(e.Run.TaskManifestPath(slice))
	if err != nil {
		return outcome, services.Wrap(services.ErrNotFound, "executor", "read manifest",
			fmt.Sprintf("task manifest for %s", slice), err)
	}
	if len(rows) == 0 {
		return outcome, services.Wrap(services.ErrValidation, "executor", "read manifest",
			fmt.Sprintf("task manifest for %s has no rows", slice), nil)
	}
	if e.Policy.MaxSamples > 0 && len(rows) > e.Policy.MaxSamples {
		rows = rows[:e.Policy.MaxSamples]
	}
	outcome.Rows = len(rows)

	sliceStart := time.Now()
	e.emit(progress.Event{Event: progress.EventSliceStart, Detail: fmt.Sprintf("%d rows", len(rows))}, slice)
	logger.Info("slice started", logging.Int("rows", len(rows)))

	if !backends.CheckpointPresent(e.Backend.CheckpointDir()) {
		detail := fmt.Sprintf("checkpoint directory %q is missing or empty", e.Backend.CheckpointDir())
		if e.Policy.MissingCheckpoint == ActionFail && !e.Policy.ContinueOnError {
			return outcome, services.Wrap(services.ErrConfiguration, "executor", "checkpoint probe", detail, nil)
		}
		outcome.CheckpointSkipped = true
		e.emit(progress.Event{Event: progress.EventSkipMissingCheckpoint, Detail: detail}, slice)
		e.emit(progress.Event{Event: progress.EventSliceDone, ElapsedSec: time.Since(sliceStart).Seconds()}, slice)
		logger.Warn("slice skipped", logging.String("reason", detail))
		return outcome, nil
	}

	var execErr error
	switch e.Backend.Granularity() {
	case backends.PerSlice:
		execErr = e.executeBatch(ctx, slice, rows, &outcome)
	default:
		execErr = e.executeSamples(ctx, slice, rows, &outcome)
	}

	e.emit(progress.Event{Event: progress.EventSliceDone, ElapsedSec: time.Since(sliceStart).Seconds()}, slice)
	logger.Info("slice finished",
		logging.Int("attempted", outcome.Attempted),
		logging.Int("done", outcome.Done),
		logging.Int("failed", outcome.Failed),
		logging.Int("skipped_existing", outcome.SkippedExisting),
	)
	return outcome, execErr
}

// pending applies the skip policies to one row, emitting the matching skip
// event. It returns false when the row needs no backend work, and a non-nil
// error when a missing input must abort the slice (continue_on_error off).
func (e *Executor) pending(slice runs.Slice, row manifest.TaskRow, outcome *Outcome) (bool, error) {
	if e.Policy.SkipExisting && fileutil.NonEmptyFile(row.OutputVideo) {
		outcome.SkippedExisting++
		e.emit(progress.Event{Event: progress.EventSkipExisting, SampleID: row.SampleID}, slice)
		return false, nil
	}
	if reason := missingInput(slice, row); reason != "" {
		outcome.SkippedMissingInput++
		e.emit(progress.Event{Event: progress.EventSkipMissingInput, SampleID: row.SampleID, Detail: reason}, slice)
		if !e.Policy.ContinueOnError {
			return false, services.Wrap(services.ErrValidation, "executor", "check inputs",
				fmt.Sprintf("sample %s: %s (continue_on_error is disabled)", row.SampleID, reason), nil)
		}
		return false, nil
	}
	return true, nil
}

func missingInput(slice runs.Slice, row manifest.TaskRow) string {
	if strings.TrimSpace(row.Prompt) == "" {
		return "empty prompt"
	}
	if slice.Task == runs.TaskI2V && !fileutil.NonEmptyFile(row.ImagePath) {
		return fmt.Sprintf("conditioning image %q is missing or empty", row.ImagePath)
	}
	return ""
}

func (e *Executor) executeSamples(ctx context.Context, slice runs.Slice, rows []manifest.TaskRow, outcome *Outcome) error {
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrTimeout, "executor", "run slice", "execution cancelled", err)
		}
		runnable, err := e.pending(slice, row, outcome)
		if err != nil {
			return err
		}
		if !runnable {
			continue
		}

		inv := backends.Invocation{
			Sample:  row,
			Slice:   slice,
			LogPath: e.Run.SampleLogPath(slice, row.SampleID),
		}
		outcome.Attempted++
		e.emit(progress.Event{Event: progress.EventSampleStart, SampleID: row.SampleID}, slice)

		start := time.Now()
		stopHeartbeat := e.startHeartbeat(slice, row.SampleID, start)
		err = e.Backend.RunSample(ctx, inv)
		stopHeartbeat()
		elapsed := time.Since(start).Seconds()

		if err != nil {
			outcome.Failed++
			e.emit(progress.Event{
				Event:      progress.EventFailed,
				SampleID:   row.SampleID,
				ElapsedSec: elapsed,
				LogPath:    inv.LogPath,
				Detail:     err.Error(),
			}, slice)
			if !e.Policy.ContinueOnError {
				return services.Wrap(services.ErrExternalTool, "executor", "run sample",
					fmt.Sprintf("sample %s failed and continue_on_error is disabled", row.SampleID), err)
			}
			continue
		}

		outcome.Done++
		present := fileutil.NonEmptyFile(row.OutputVideo)
		e.emit(progress.Event{
			Event:         progress.EventDone,
			SampleID:      row.SampleID,
			ElapsedSec:    elapsed,
			OutputPresent: &present,
		}, slice)
	}
	return nil
}

func (e *Executor) executeBatch(ctx context.Context, slice runs.Slice, rows []manifest.TaskRow, outcome *Outcome) error {
	var invs []backends.Invocation
	for _, row := range rows {
		runnable, err := e.pending(slice, row, outcome)
		if err != nil {
			return err
		}
		if !runnable {
			continue
		}
		invs = append(invs, backends.Invocation{
			Sample:  row,
			Slice:   slice,
			LogPath: e.Run.SliceLogPath(slice),
		})
		outcome.Attempted++
		e.emit(progress.Event{Event: progress.EventSampleStart, SampleID: row.SampleID}, slice)
	}
	if len(invs) == 0 {
		return nil
	}

	start := time.Now()
	stopHeartbeat := e.startHeartbeat(slice, "", start)
	missing, err := e.Backend.RunSlice(ctx, invs)
	stopHeartbeat()
	elapsed := time.Since(start).Seconds()

	if err != nil {
		outcome.Failed += len(invs)
		e.emit(progress.Event{
			Event:      progress.EventFailed,
			ElapsedSec: elapsed,
			LogPath:    e.Run.SliceLogPath(slice),
			Detail:     err.Error(),
		}, slice)
		return services.Wrap(services.ErrExternalTool, "executor", "run batch",
			fmt.Sprintf("batch invocation for %s failed", slice), err)
	}

	missingSet := make(map[string]struct{}, len(missing))
	for _, id := range missing {
		missingSet[id] = struct{}{}
		outcome.MissingOutputs++
		e.emit(progress.Event{Event: progress.EventMissingOutput, SampleID: id, ElapsedSec: elapsed}, slice)
	}
	for _, inv := range invs {
		if _, isMissing := missingSet[inv.Sample.SampleID]; isMissing {
			continue
		}
		outcome.Done++
		present := true
		e.emit(progress.Event{
			Event:         progress.EventDone,
			SampleID:      inv.Sample.SampleID,
			ElapsedSec:    elapsed,
			OutputPresent: &present,
		}, slice)
	}

	if len(missing) > 0 && !e.Policy.ContinueOnError {
		return services.Wrap(services.ErrExternalTool, "executor", "run batch",
			fmt.Sprintf("%d sample(s) missing after batch invocation for %s", len(missing), slice), nil)
	}
	return nil
}

// startHeartbeat launches a ticker goroutine that appends heartbeat events
// while a backend invocation is in flight. The returned stop function blocks
// until the goroutine has exited.
func (e *Executor) startHeartbeat(slice runs.Slice, sampleID string, start time.Time) func() {
	if e.Policy.HeartbeatInterval <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(e.Policy.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				e.emit(progress.Event{
					Event:      progress.EventHeartbeat,
					SampleID:   sampleID,
					ElapsedSec: time.Since(start).Seconds(),
				}, slice)
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}
