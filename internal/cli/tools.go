package cli

import (
	"log/slog"

	"github.com/aretw0/teller/internal/bank"
	"github.com/aretw0/teller/internal/config"
	"github.com/aretw0/teller/pkg/adapters/mcp"
	"github.com/aretw0/teller/pkg/registry"
	"github.com/aretw0/teller/pkg/schema"
)

// NewToolServer builds the MCP tool server backed by the demo bank.
func NewToolServer(cfg *config.Config, catalog *schema.Registry, logger *slog.Logger) (*mcp.Server, error) {
	svc, err := bank.NewDemo(
		bank.WithIdentityKey(cfg.Conversation.IdentityKey),
		bank.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	handlers := registry.NewRegistry()
	svc.Register(handlers)

	return mcp.NewServer(catalog, handlers,
		mcp.WithServerLogger(logger),
		mcp.WithIdentityKey(cfg.Conversation.IdentityKey),
	)
}
