package main

import (
	"context"

	"github.com/aretw0/teller/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts teller as a JSON API for the web layer:

  POST   /v1/chat                         handle one message
  GET    /v1/operations                   list the operation catalog
  GET    /v1/sessions/{identity}/pending  show the pending call
  DELETE /v1/sessions/{identity}/pending  drop the pending call
  GET    /healthz, /metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		logger := newLogger(cfg)

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Stop()

		app, err := cli.Build(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Serve(ctx, cfg.Server.Addr); err != nil {
			return err
		}
		if sig := ctx.Signal(); sig != nil {
			logger.Info("Teller API stopped", "signal", sig.String())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address, overrides server.addr")
}
