package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vidsweep/internal/ffmpeg"
	"vidsweep/internal/fileutil"
	"vidsweep/internal/layout"
	"vidsweep/internal/manifest"
	"vidsweep/internal/runs"
)

func parseTasks(raw []string) ([]runs.Task, error) {
	if len(raw) == 0 {
		return runs.Tasks(), nil
	}
	tasks := make([]runs.Task, 0, len(raw))
	for _, value := range raw {
		task, err := runs.ParseTask(value)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func newLayoutCommand(ctx *commandContext) *cobra.Command {
	layoutCmd := &cobra.Command{
		Use:   "layout",
		Short: "Materialize run layouts from manifests",
	}
	layoutCmd.AddCommand(newLayoutPrepareCommand(ctx))
	layoutCmd.AddCommand(newLayoutSubsetCommand(ctx))
	return layoutCmd
}

func newLayoutPrepareCommand(ctx *commandContext) *cobra.Command {
	var (
		manifestPath string
		runRoot      string
		runID        string
		dataset      string
		models       []string
		taskFlags    []string
		modeFlag     string
		extractFrame bool
		strictI2V    bool
	)

	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Fan a canonical manifest out into per-model/task slice trees",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			mode, err := fileutil.ParseMode(modeFlag)
			if err != nil {
				return err
			}
			tasks, err := parseTasks(taskFlags)
			if err != nil {
				return err
			}

			records, skipped, err := manifest.ReadRecords(manifestPath)
			if err != nil {
				return err
			}
			if skipped > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "skipped %d malformed manifest rows\n", skipped)
			}

			planner := &layout.Planner{
				Run:               runs.New(runID, runRoot),
				Dataset:           dataset,
				Models:            models,
				Tasks:             tasks,
				Mode:              mode,
				Extractor:         ffmpeg.NewExtractor(ffmpeg.WithBinary(cfg.Paths.FFmpegBin)),
				ExtractFirstFrame: extractFrame,
				StrictI2V:         strictI2V,
				Logger:            ctx.ensureLogger(),
			}
			summary, err := planner.Plan(cmd.Context(), records)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "prepared %d samples under %s (%s x %s)\n",
				summary.NumSamples, runRoot,
				strings.Join(models, ","), strings.Join(summary.Tasks, ","))
			for _, taskSummary := range summary.TaskSummaries {
				line := fmt.Sprintf("  %s/%s/%s: %d samples", taskSummary.Model, dataset, taskSummary.Task, taskSummary.NumSamples)
				if len(taskSummary.SkippedI2V) > 0 {
					line += fmt.Sprintf(" (%d dropped from i2v, no image)", len(taskSummary.SkippedI2V))
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Canonical manifest (.jsonl or .csv)")
	cmd.Flags().StringVar(&runRoot, "run-root", "", "Run root directory")
	cmd.Flags().StringVar(&runID, "run-id", "", "Run id (defaults to the run-root basename)")
	cmd.Flags().StringVar(&dataset, "dataset", "", "Dataset name")
	cmd.Flags().StringSliceVar(&models, "models", []string{"wan22", "wan21", "lvp"}, "Models to fan out")
	cmd.Flags().StringSliceVar(&taskFlags, "tasks", nil, "Tasks to fan out (default t2v,i2v)")
	cmd.Flags().StringVar(&modeFlag, "mode", "copy", "Materialization mode: copy, symlink, or hardlink")
	cmd.Flags().BoolVar(&extractFrame, "extract-first-frame", true, "Derive missing i2v images from ground truth via ffmpeg")
	cmd.Flags().BoolVar(&strictI2V, "strict-i2v", false, "Fail instead of dropping samples without an i2v image")
	cmd.MarkFlagRequired("manifest")
	cmd.MarkFlagRequired("run-root")
	cmd.MarkFlagRequired("dataset")

	return cmd
}

func newLayoutSubsetCommand(ctx *commandContext) *cobra.Command {
	var (
		runRoot        string
		datasets       []string
		models         []string
		taskFlags      []string
		maxPerDataset  int
		preference     []string
		referenceModel string
		referenceTask  string
		dryRun         bool
	)

	cmd := &cobra.Command{
		Use:   "subset",
		Short: "Trim every slice manifest to one consistent sample subset",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := parseTasks(taskFlags)
			if err != nil {
				return err
			}
			refTask, err := runs.ParseTask(referenceTask)
			if err != nil {
				return err
			}

			result, err := layout.Subset(layout.SubsetOptions{
				Run:                   runs.New("", runRoot),
				Datasets:              datasets,
				Models:                models,
				Tasks:                 tasks,
				MaxPerDataset:         maxPerDataset,
				PerspectivePreference: preference,
				ReferenceModel:        referenceModel,
				ReferenceTask:         refTask,
				DryRun:                dryRun,
				Logger:                ctx.ensureLogger(),
			})
			if err != nil {
				return err
			}

			for dataset, ids := range result.Selected {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: selected %d samples\n", dataset, len(ids))
			}
			if dryRun {
				fmt.Fprintln(cmd.OutOrStdout(), "dry run, no manifests rewritten")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "rewrote %d manifests\n", len(result.Updated))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runRoot, "run-root", "", "Run root directory")
	cmd.Flags().StringSliceVar(&datasets, "datasets", nil, "Datasets to subset")
	cmd.Flags().StringSliceVar(&models, "models", []string{"wan22", "wan21", "lvp"}, "Models whose manifests to rewrite")
	cmd.Flags().StringSliceVar(&taskFlags, "tasks", nil, "Tasks whose manifests to rewrite (default t2v,i2v)")
	cmd.Flags().IntVar(&maxPerDataset, "max-per-dataset", 20, "Cap selected samples per dataset")
	cmd.Flags().StringSliceVar(&preference, "perspective-preference", nil, "Perspective preference order (default center,left,right)")
	cmd.Flags().StringVar(&referenceModel, "reference-model", "wan22", "Model whose manifest defines selection order")
	cmd.Flags().StringVar(&referenceTask, "reference-task", "t2v", "Task whose manifest defines selection order")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the selection without rewriting manifests")
	cmd.MarkFlagRequired("run-root")
	cmd.MarkFlagRequired("datasets")

	return cmd
}
