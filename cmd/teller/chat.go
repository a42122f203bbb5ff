package main

import (
	"context"
	"os"
	"strings"

	"github.com/aretw0/teller"
	"github.com/aretw0/teller/internal/cli"
	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/internal/presentation/tui"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to teller in the terminal",
	Long: `Starts an interactive conversation as one customer profile.
Replies are rendered as Markdown when stdout is a terminal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if transport, _ := cmd.Flags().GetString("transport"); transport != "" {
			cfg.Dispatch.Transport = transport
		}

		// Logs would interleave with the conversation, so they stay off
		// unless asked for.
		logger := logging.NewNop()
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			cfg.Log.Level = "debug"
			logger = newLogger(cfg)
		}

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Stop()

		app, err := cli.Build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		id, _ := cmd.Flags().GetInt64("user-id")
		name, _ := cmd.Flags().GetString("name")
		lang, _ := cmd.Flags().GetString("lang")

		tui.PrintBanner(os.Stdout, strings.TrimSpace(teller.Version))
		chat := cli.NewChat(app.Orchestrator, domain.Profile{ID: id, Name: name},
			cli.WithLanguage(domain.ParseLanguage(lang, "")),
			cli.WithHistory(cfg.Conversation.HistoryTurns),
			cli.WithStyles(tui.NewStyles()),
			cli.WithRenderer(tui.NewRenderer(os.Stdout, tui.Width(os.Stdout, 100))),
		)
		return chat.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().Int64("user-id", 1, "Customer id the conversation runs as")
	chatCmd.Flags().String("name", "Бакыт", "Customer name shown to the model")
	chatCmd.Flags().String("lang", "", "Reply language (ky, ru, en); empty uses conversation.default_language")
	chatCmd.Flags().String("transport", "", "Override dispatch.transport, e.g. inprocess")
	chatCmd.Flags().Bool("debug", false, "Write debug logs to stderr")
}
