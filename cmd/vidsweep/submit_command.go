package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidsweep/internal/reconcile"
	"vidsweep/internal/runs"
	"vidsweep/internal/scheduler"
)

// submit queues one job per planned slice without checking completeness;
// already finished slices exit quickly on skip_existing, so over-submission
// converges instead of duplicating work.
func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		runRoot    string
		runID      string
		datasets   []string
		models     []string
		taskFlags  []string
		maxSamples int
		binary     string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit one scheduler job per planned slice",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			tasks, err := parseTasks(taskFlags)
			if err != nil {
				return err
			}

			run := runs.New(runID, runRoot)
			reconciler := &reconcile.Reconciler{
				Run:        run,
				Config:     cfg,
				MaxSamples: maxSamples,
				Binary:     binary,
				Logger:     ctx.ensureLogger(),
			}

			var client scheduler.Client
			if !dryRun {
				client = scheduler.NewSlurm(cfg.Scheduler)
			}

			submitted := 0
			for _, slice := range runs.Slices(models, datasets, tasks) {
				status, err := reconciler.Status(slice)
				if err != nil {
					return err
				}
				if !status.Planned {
					fmt.Fprintf(cmd.OutOrStdout(), "skipping %s: not planned\n", slice)
					continue
				}
				request := reconciler.Request(slice)
				if dryRun {
					fmt.Fprintf(cmd.OutOrStdout(), "would submit %s: %v\n", request.Name, request.Command)
					continue
				}
				job, err := client.Submit(cmd.Context(), request)
				if err != nil {
					return err
				}
				submitted++
				fmt.Fprintf(cmd.OutOrStdout(), "submitted %s as job %s\n", slice, job.ID)
			}
			if !dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "submitted %d job(s)\n", submitted)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runRoot, "run-root", "", "Run root directory")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run id (defaults to the run-root basename)")
	cmd.Flags().StringSliceVar(&datasets, "datasets", nil, "Datasets to submit")
	cmd.Flags().StringSliceVar(&models, "models", []string{"wan22", "wan21", "lvp"}, "Models to submit")
	cmd.Flags().StringSliceVar(&taskFlags, "tasks", nil, "Tasks to submit (default t2v,i2v)")
	cmd.Flags().IntVar(&maxSamples, "max-samples", 0, "Cap samples per slice (0 = all)")
	cmd.Flags().StringVar(&binary, "binary", "", "vidsweep binary path used in submitted commands")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print requests without submitting")
	cmd.MarkFlagRequired("run-root")
	cmd.MarkFlagRequired("datasets")

	return cmd
}
