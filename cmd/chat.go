package cmd

import (
	"diver/internal/repl"
	"diver/internal/workspace"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask questions about your codebase in a line-oriented shell",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		stats, built, err := diver.EnsureIndexed(ctx)
		if err != nil {
			return err
		}
		if built {
			printStats(cmd, stats)
		}

		cfg := diver.Config()
		sh := repl.New(diver, diver.Chat(), repl.Options{
			In:       cmd.InOrStdin(),
			Out:      out,
			Editor:   workspace.ResolveEditor(cfg.Toolchain.Editor),
			Runner:   workspace.NewRunner(cfg.Toolchain, out, cmd.ErrOrStderr()),
			Renderer: repl.RendererFor(out),
			Logger:   diver.Logger(),
		})
		return sh.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
