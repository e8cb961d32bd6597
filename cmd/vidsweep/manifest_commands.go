package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vidsweep/internal/manifest"
)

func newManifestCommand(ctx *commandContext) *cobra.Command {
	manifestCmd := &cobra.Command{
		Use:   "manifest",
		Short: "Build canonical dataset manifests",
	}
	manifestCmd.AddCommand(newManifestPhysicsIQCommand(ctx))
	manifestCmd.AddCommand(newManifestIndexCommand(ctx))
	return manifestCmd
}

func newManifestPhysicsIQCommand(ctx *commandContext) *cobra.Command {
	var (
		descriptionsCSV string
		searchRoots     []string
		filenameColumns []string
		promptColumn    string
		idColumn        string
		takeFilter      string
		limit           int
		shuffle         bool
		seed            int64
		debugMisses     int
		output          string
	)

	cmd := &cobra.Command{
		Use:   "physics-iq",
		Short: "Build a manifest from a Physics-IQ descriptions CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := manifest.BuildPhysicsIQ(manifest.PhysicsIQOptions{
				DescriptionsCSV: descriptionsCSV,
				SearchRoots:     searchRoots,
				FilenameColumns: filenameColumns,
				PromptColumn:    promptColumn,
				IDColumn:        idColumn,
				TakeFilter:      takeFilter,
				Limit:           limit,
				Shuffle:         shuffle,
				Seed:            seed,
				DebugMisses:     debugMisses,
				Logger:          ctx.ensureLogger(),
			})
			if err != nil {
				return err
			}
			if err := manifest.WriteRecords(output, result.Records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s (skipped %d, indexed %d videos)\n",
				result.Wrote, output, result.Skipped, result.Indexed)
			for _, miss := range result.Misses {
				fmt.Fprintf(cmd.OutOrStdout(), "  unresolved: %s\n", miss)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&descriptionsCSV, "descriptions-csv", "", "Path to descriptions.csv")
	cmd.Flags().StringSliceVar(&searchRoots, "video-search-roots", nil, "Directories to resolve ground-truth videos in")
	cmd.Flags().StringSliceVar(&filenameColumns, "filename-columns", nil, "CSV columns holding video file references")
	cmd.Flags().StringVar(&promptColumn, "prompt-column", "", "CSV column holding the prompt text")
	cmd.Flags().StringVar(&idColumn, "id-column", "", "CSV column holding the sample id")
	cmd.Flags().StringVar(&takeFilter, "take-filter", "", "Keep only rows whose id matches this take marker")
	cmd.Flags().IntVar(&limit, "limit", 0, "Cap the number of records (0 = all)")
	cmd.Flags().BoolVar(&shuffle, "shuffle", false, "Shuffle before applying the limit")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Shuffle seed")
	cmd.Flags().IntVar(&debugMisses, "debug-misses", 0, "Print up to N unresolved video references")
	cmd.Flags().StringVar(&output, "output", "manifest.jsonl", "Output manifest path")
	cmd.MarkFlagRequired("descriptions-csv")
	cmd.MarkFlagRequired("video-search-roots")

	return cmd
}

func newManifestIndexCommand(ctx *commandContext) *cobra.Command {
	var (
		indexPath   string
		videoRoot   string
		idPrefix    string
		limit       int
		debugMisses int
		output      string
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build a manifest from a generic JSONL or CSV index",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := manifest.BuildFromIndex(manifest.IndexOptions{
				IndexPath:   indexPath,
				VideoRoot:   videoRoot,
				IDPrefix:    idPrefix,
				Limit:       limit,
				DebugMisses: debugMisses,
				Logger:      ctx.ensureLogger(),
			})
			if err != nil {
				return err
			}
			if err := manifest.WriteRecords(output, result.Records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d records to %s (skipped %d)\n",
				result.Wrote, output, result.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&indexPath, "index", "", "Path to the raw index (.jsonl or .csv)")
	cmd.Flags().StringVar(&videoRoot, "video-root", "", "Root directory for resolving video references")
	cmd.Flags().StringVar(&idPrefix, "id-prefix", "", "Prefix for generated sample ids")
	cmd.Flags().IntVar(&limit, "limit", 0, "Cap the number of records (0 = all)")
	cmd.Flags().IntVar(&debugMisses, "debug-misses", 0, "Print up to N unresolved video references")
	cmd.Flags().StringVar(&output, "output", "manifest.jsonl", "Output manifest path")
	cmd.MarkFlagRequired("index")

	return cmd
}
