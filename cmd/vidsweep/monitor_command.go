package main

import (
	"time"

	"github.com/spf13/cobra"

	"vidsweep/internal/monitor"
	"vidsweep/internal/reconcile"
	"vidsweep/internal/runs"
	"vidsweep/internal/scheduler"
)

func newMonitorCommand(ctx *commandContext) *cobra.Command {
	var (
		runRoot    string
		runID      string
		datasets   []string
		models     []string
		taskFlags  []string
		maxSamples int
		interval   time.Duration
		tailLines  int
		once       bool
	)

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch queue state, slice completion, and recent errors",
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
			slices := runs.Slices(models, datasets, tasks)
			m := &monitor.Monitor{
				Run:    run,
				Slices: slices,
				Reconciler: &reconcile.Reconciler{
					Run:        run,
					Config:     cfg,
					MaxSamples: maxSamples,
					Logger:     ctx.ensureLogger(),
				},
				Scheduler: scheduler.NewSlurm(cfg.Scheduler),
				Filter: scheduler.Filter{
					NamePrefix: cfg.Scheduler.JobPrefix,
					User:       cfg.Scheduler.User,
				},
				Interval:  interval,
				TailLines: tailLines,
				Out:       cmd.OutOrStdout(),
				Logger:    ctx.ensureLogger(),
			}

			if once {
				snap, err := m.Snapshot(cmd.Context())
				if err != nil {
					return err
				}
				m.Render(cmd.OutOrStdout(), snap)
				return nil
			}
			return m.Watch(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&runRoot, "run-root", "", "Run root directory")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run id (defaults to the run-root basename)")
	cmd.Flags().StringSliceVar(&datasets, "datasets", nil, "Datasets to watch")
	cmd.Flags().StringSliceVar(&models, "models", []string{"wan22", "wan21", "lvp"}, "Models to watch")
	cmd.Flags().StringSliceVar(&taskFlags, "tasks", nil, "Tasks to watch (default t2v,i2v)")
	cmd.Flags().IntVar(&maxSamples, "max-samples", 0, "Cap expected counts (0 = full manifests)")
	cmd.Flags().DurationVar(&interval, "interval", 30*time.Second, "Refresh interval")
	cmd.Flags().IntVar(&tailLines, "tail", 10, "Progress log lines to show")
	cmd.Flags().BoolVar(&once, "once", false, "Render a single snapshot and exit")
	cmd.MarkFlagRequired("run-root")
	cmd.MarkFlagRequired("datasets")

	return cmd
}
