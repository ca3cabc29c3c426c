package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"diver/internal/app"
	"diver/internal/config"
	"diver/internal/logging"
	"diver/internal/tui"

	"github.com/spf13/cobra"
)

// offline marks commands that never talk to Ollama, so --serve is ignored.
const offline = "offline"

var (
	v          = config.NewViper()
	flagConfig string

	// diver is the application shared by every subcommand. It is built in
	// PersistentPreRunE once flags are parsed.
	diver    *app.App
	closeLog = func() {}
)

var rootCmd = &cobra.Command{
	Use:           "diver",
	Short:         "Search and chat with a local codebase using Ollama",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(v, flagConfig)
		if err != nil {
			return err
		}
		logger, cleanup, err := logging.Setup(cfg.Log.Level, cfg.Log.File)
		if err != nil {
			return err
		}
		closeLog = cleanup
		slog.SetDefault(logger)

		diver = app.New(cfg, logger)
		if cmd.Annotations[offline] == "" {
			if err := diver.StartServer(cmd.Context()); err != nil {
				return err
			}
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return tui.Run(cmd.Context(), diver)
	},
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if diver != nil {
		if cerr := diver.Close(); cerr != nil {
			slog.Warn("shutdown", "error", cerr)
		}
	}
	closeLog()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	d := config.Default()
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default ./"+config.FileName+" or $HOME/"+config.FileName+")")
	pf.String("db", "", "database path (default <root>/.diver/index.db)")
	pf.String("ollama", d.Ollama.URL, "ollama base URL")
	pf.String("model", d.Ollama.EmbedModel, "embedding model")
	pf.String("chat-model", d.Ollama.ChatModel, "generative model for chat")
	pf.String("store", d.Store.Backend, "vector store backend (sqlite or memory)")
	pf.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	pf.Bool("serve", d.Ollama.Serve, "start ollama serve if no server is running")

	for name, key := range map[string]string{
		"db":         "store.path",
		"ollama":     "ollama.url",
		"model":      "ollama.embed_model",
		"chat-model": "ollama.chat_model",
		"store":      "store.backend",
		"log-level":  "log.level",
		"serve":      "ollama.serve",
	} {
		cobra.CheckErr(v.BindPFlag(key, pf.Lookup(name)))
	}
}
