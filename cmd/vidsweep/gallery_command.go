package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidsweep/internal/gallery"
)

func newGalleryCommand(ctx *commandContext) *cobra.Command {
	var (
		runRoots  []string
		models    []string
		taskFlags []string
		outDir    string
		serveAddr string
	)

	cmd := &cobra.Command{
		Use:   "gallery",
		Short: "Build a static side-by-side review page from run outputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := parseTasks(taskFlags)
			if err != nil {
				return err
			}

			builder := &gallery.Builder{
				RunRoots: runRoots,
				Models:   models,
				Tasks:    tasks,
				OutDir:   outDir,
				Logger:   ctx.ensureLogger(),
			}
			entries, err := builder.Collect()
			if err != nil {
				return err
			}
			indexPath, err := builder.Build(entries)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d entries)\n", indexPath, len(entries))

			if serveAddr == "" {
				return nil
			}
			return gallery.Serve(cmd.Context(), outDir, serveAddr, ctx.ensureLogger())
		},
	}

	cmd.Flags().StringSliceVar(&runRoots, "run-roots", nil, "Run root directories to collect from")
	cmd.Flags().StringSliceVar(&models, "models", []string{"wan22", "wan21", "lvp"}, "Models to show columns for")
	cmd.Flags().StringSliceVar(&taskFlags, "tasks", nil, "Tasks to include (default t2v,i2v)")
	cmd.Flags().StringVar(&outDir, "out", "gallery", "Output directory")
	cmd.Flags().StringVar(&serveAddr, "serve", "", "Serve the gallery on this address (e.g. 127.0.0.1:8080)")
	cmd.MarkFlagRequired("run-roots")

	return cmd
}
