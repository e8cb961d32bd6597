package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"vidsweep/internal/backends"
	"vidsweep/internal/executor"
	"vidsweep/internal/progress"
	"vidsweep/internal/runs"
)

// jobID prefers the scheduler-assigned id so progress logs from cluster jobs
// are attributable; local invocations get a fresh uuid.
func jobID() string {
	if id := os.Getenv("SLURM_JOB_ID"); id != "" {
		return id
	}
	return "local_" + uuid.NewString()
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		runRoot           string
		runID             string
		model             string
		dataset           string
		taskFlag          string
		maxSamples        int
		skipExisting      bool
		continueOnError   bool
		missingCheckpoint string
		heartbeatSeconds  int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one (model, dataset, task) slice on this node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			task, err := runs.ParseTask(taskFlag)
			if err != nil {
				return err
			}
			kind, err := backends.ParseKind(model)
			if err != nil {
				return err
			}

			run := runs.New(runID, runRoot)
			slice := runs.Slice{Model: string(kind), Dataset: dataset, Task: task}

			backend, err := backends.For(kind, cfg, run)
			if err != nil {
				return err
			}

			policy := executor.PolicyFromConfig(cfg.Execution)
			if cmd.Flags().Changed("max-samples") {
				policy.MaxSamples = maxSamples
			}
			if cmd.Flags().Changed("skip-existing") {
				policy.SkipExisting = skipExisting
			}
			if cmd.Flags().Changed("continue-on-error") {
				policy.ContinueOnError = continueOnError
			}
			if cmd.Flags().Changed("missing-checkpoint") {
				action, err := executor.ParseAction(missingCheckpoint)
				if err != nil {
					return err
				}
				policy.MissingCheckpoint = action
			}
			if cmd.Flags().Changed("heartbeat-interval") {
				policy.HeartbeatInterval = time.Duration(heartbeatSeconds) * time.Second
			}

			writer, err := progress.NewWriter(run.ProgressLogPath(jobID()))
			if err != nil {
				return err
			}
			defer writer.Close()

			exec := &executor.Executor{
				Run:      run,
				Backend:  backend,
				Policy:   policy,
				Progress: writer,
				Logger:   ctx.ensureLogger(),
			}
			outcome, err := exec.Execute(cmd.Context(), slice)
			fmt.Fprintf(cmd.OutOrStdout(),
				"%s: rows=%d attempted=%d done=%d failed=%d skipped_existing=%d skipped_missing_input=%d missing_outputs=%d\n",
				slice, outcome.Rows, outcome.Attempted, outcome.Done, outcome.Failed,
				outcome.SkippedExisting, outcome.SkippedMissingInput, outcome.MissingOutputs)
			return err
		},
	}

	cmd.Flags().StringVar(&runRoot, "run-root", "", "Run root directory")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run id (defaults to the run-root basename)")
	cmd.Flags().StringVar(&model, "model", "", "Model backend: wan22, wan21, or lvp")
	cmd.Flags().StringVar(&dataset, "dataset", "", "Dataset name")
	cmd.Flags().StringVar(&taskFlag, "task", "", "Task: t2v or i2v")
	cmd.Flags().IntVar(&maxSamples, "max-samples", 0, "Cap samples for this slice (0 = all)")
	cmd.Flags().BoolVar(&skipExisting, "skip-existing", true, "Skip samples whose output already exists")
	cmd.Flags().BoolVar(&continueOnError, "continue-on-error", true, "Keep going after a sample failure")
	cmd.Flags().StringVar(&missingCheckpoint, "missing-checkpoint", "", "Missing checkpoint action: skip or fail")
	cmd.Flags().IntVar(&heartbeatSeconds, "heartbeat-interval", 0, "Heartbeat interval in seconds")
	cmd.MarkFlagRequired("run-root")
	cmd.MarkFlagRequired("model")
	cmd.MarkFlagRequired("dataset")
	cmd.MarkFlagRequired("task")

	return cmd
}
