package cmd

import (
	"context"
	"fmt"
	"time"

	"diver/internal/index"

	"github.com/spf13/cobra"
)

var (
	flagWatch     bool
	flagBatchSize int
	flagRebuild   bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a codebase for search",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if len(args) == 1 {
			if err := diver.Retarget(args[0]); err != nil {
				return err
			}
		}

		var opts []index.Option
		if cmd.Flags().Changed("batch-size") {
			opts = append(opts, index.WithBatchSize(flagBatchSize))
		}
		if cmd.Flags().Changed("rebuild") {
			opts = append(opts, index.WithRebuild(flagRebuild))
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Indexing %s...\n", diver.Root())
		stats, err := diver.Index(ctx, opts...)
		if stats != nil {
			printStats(cmd, stats)
		}
		if err != nil || !flagWatch {
			return err
		}

		cfg := diver.Config()
		fmt.Fprintln(out, "Watching for changes (Ctrl+C to stop)...")
		w := index.NewWatcher(diver.Root(), cfg.Index.Extensions, index.DefaultDebounce, diver.Logger())
		return w.Run(ctx, func(ctx context.Context) error {
			// a change invalidates ids of edited chunks, so always rebuild
			stats, err := diver.Index(ctx, index.WithRebuild(true))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "[%s] reindexed %d files, %d chunks\n",
				time.Now().Format(time.TimeOnly), stats.FilesIndexed, stats.ChunksTotal)
			return nil
		})
	},
}

func printStats(cmd *cobra.Command, stats *index.Stats) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nDone in %s\n", stats.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "  Files:   %d total, %d indexed, %d skipped\n",
		stats.FilesTotal, stats.FilesIndexed, stats.FilesSkipped)
	fmt.Fprintf(out, "  Chunks:  %d in %d batches\n", stats.ChunksTotal, stats.Batches)
}

func init() {
	indexCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "keep running and reindex when files change")
	indexCmd.Flags().IntVar(&flagBatchSize, "batch-size", 32, "chunks per embedding request")
	indexCmd.Flags().BoolVar(&flagRebuild, "rebuild", true, "clear the index before indexing")
	rootCmd.AddCommand(indexCmd)
}
