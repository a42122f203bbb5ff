package main

import (
	"context"
	"log"
	"os"

	"github.com/aretw0/teller/internal/cli"
	"github.com/aretw0/teller/pkg/schema"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Run the demo bank as an MCP tool server",
	Long: `Serves the banking operations of the catalog as MCP tools, backed by
an in-memory demo ledger and product catalog.

Without --addr the server speaks over stdio, which is how the stdio
dispatch transport launches it. With --addr it serves streamable HTTP
at /mcp.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Tools.Addr = addr
		}
		logger := newLogger(cfg)

		catalog, err := loadCatalog(cmd.Context(), cfg.Conversation.Catalog)
		if err != nil {
			return err
		}
		srv, err := cli.NewToolServer(cfg, catalog, logger)
		if err != nil {
			return err
		}

		if cfg.Tools.Addr == "" {
			// Stdout carries JSON-RPC.
			log.SetOutput(os.Stderr)
			logger.Info("Starting MCP tool server (stdio)", "tools", len(srv.Tools()))
			return srv.ServeStdio()
		}

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Stop()
		return srv.ServeHTTP(ctx, cfg.Tools.Addr)
	},
}

func loadCatalog(ctx context.Context, path string) (*schema.Registry, error) {
	if path == "" {
		return schema.Default()
	}
	return schema.LoadFile(ctx, path)
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().String("addr", "", "Serve streamable HTTP on this address instead of stdio")
}
