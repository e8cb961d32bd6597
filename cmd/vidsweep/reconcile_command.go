package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidsweep/internal/monitor"
	"vidsweep/internal/reconcile"
	"vidsweep/internal/runs"
	"vidsweep/internal/scheduler"
)

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var (
		runRoot    string
		runID      string
		datasets   []string
		models     []string
		taskFlags  []string
		maxSamples int
		submit     bool
		binary     string
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare expected vs produced outputs and resubmit the gap",
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
			report, err := reconciler.Reconcile(runs.Slices(models, datasets, tasks))
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(report.Statuses))
			for _, status := range report.Statuses {
				state := "pending"
				switch {
				case !status.Planned:
					state = "unplanned"
				case status.Complete():
					state = "complete"
				}
				rows = append(rows, []string{
					status.Slice.Model,
					status.Slice.Dataset,
					string(status.Slice.Task),
					fmt.Sprintf("%d", status.Expected),
					fmt.Sprintf("%d", status.Got),
					state,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), monitor.RenderTable(
				[]string{"MODEL", "DATASET", "TASK", "EXPECTED", "GOT", "STATE"},
				rows,
				4, 5,
			))

			if len(report.Directives) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "run complete, nothing to submit")
				return nil
			}
			if !submit {
				fmt.Fprintf(cmd.OutOrStdout(), "%d incomplete slice(s); rerun with --submit to queue them\n", len(report.Directives))
				return nil
			}

			client := scheduler.NewSlurm(cfg.Scheduler)
			for _, directive := range report.Directives {
				job, err := client.Submit(cmd.Context(), directive.Request)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "submitted %s as job %s\n", directive.Slice, job.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runRoot, "run-root", "", "Run root directory")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run id (defaults to the run-root basename)")
	cmd.Flags().StringSliceVar(&datasets, "datasets", nil, "Datasets to reconcile")
	cmd.Flags().StringSliceVar(&models, "models", []string{"wan22", "wan21", "lvp"}, "Models to reconcile")
	cmd.Flags().StringSliceVar(&taskFlags, "tasks", nil, "Tasks to reconcile (default t2v,i2v)")
	cmd.Flags().IntVar(&maxSamples, "max-samples", 0, "Cap expected counts (0 = full manifests)")
	cmd.Flags().BoolVar(&submit, "submit", false, "Submit a scheduler job per incomplete slice")
	cmd.Flags().StringVar(&binary, "binary", "", "vidsweep binary path used in submitted commands")
	cmd.MarkFlagRequired("run-root")
	cmd.MarkFlagRequired("datasets")

	return cmd
}
