package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/teller"
	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/registry"
	"github.com/aretw0/teller/pkg/schema"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ServerName is announced to clients during the handshake.
const ServerName = "teller-tools"

// EndpointPath is where the streamable HTTP transport is mounted.
const EndpointPath = "/mcp"

// Server exposes catalog operations backed by registry handlers as MCP tools.
type Server struct {
	catalog     *schema.Registry
	handlers    *registry.Registry
	mcpServer   *server.MCPServer
	identityKey string
	logger      *slog.Logger
	tools       []string
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger used for tool invocations.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIdentityKey sets the argument name carrying the caller identity (default "user_id").
func WithIdentityKey(key string) ServerOption {
	return func(s *Server) {
		if key != "" {
			s.identityKey = key
		}
	}
}

// NewServer creates a new MCP Server instance.
// Only operations that have both a catalog entry and a handler are exposed.
func NewServer(catalog *schema.Registry, handlers *registry.Registry, opts ...ServerOption) (*Server, error) {
	s := &Server{
		catalog:     catalog,
		handlers:    handlers,
		identityKey: "user_id",
		logger:      logging.NewNop(),
		mcpServer: server.NewMCPServer(ServerName, strings.TrimSpace(teller.Version),
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.registerTools(); err != nil {
		return nil, err
	}
	return s, nil
}

// MCPServer returns the underlying protocol server, e.g. for an in-process connector.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// Tools returns the names of the exposed operations in catalog order.
func (s *Server) Tools() []string { return append([]string(nil), s.tools...) }

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// Handler returns the streamable HTTP transport mounted at EndpointPath.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization", "Mcp-Session-Id"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
	}))
	r.Handle(EndpointPath, server.NewStreamableHTTPServer(s.mcpServer))
	return r
}

// ServeHTTP listens on addr until ctx is cancelled.
func (s *Server) ServeHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP tool server listening", "address", addr, "path", EndpointPath)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() error {
	for _, op := range s.catalog.List() {
		if !s.handlers.Has(op.Name) {
			continue
		}
		raw, err := json.Marshal(s.inputSchema(op))
		if err != nil {
			return fmt.Errorf("tool %s: encode input schema: %w", op.Name, err)
		}
		tool := mcp.NewToolWithRawSchema(op.Name, op.Description, raw)
		s.mcpServer.AddTool(tool, s.handle(op.Name))
		s.tools = append(s.tools, op.Name)
	}
	return nil
}

// inputSchema is the catalog schema plus the identity argument, which the
// mediation layer injects and the model never sees.
func (s *Server) inputSchema(op *schema.OperationSchema) map[string]any {
	js := op.JSONSchema()
	props, _ := js["properties"].(map[string]any)
	if props == nil {
		props = map[string]any{}
		js["properties"] = props
	}
	props[s.identityKey] = map[string]any{
		"type":        "integer",
		"description": "Identifier of the authenticated customer",
	}
	var required []any
	switch r := js["required"].(type) {
	case []any:
		required = r
	case []string:
		for _, name := range r {
			required = append(required, name)
		}
	}
	js["required"] = append(required, s.identityKey)
	return js
}

func (s *Server) handle(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := req.GetArguments()
		text, err := s.handlers.Execute(ctx, name, args)
		if err != nil {
			s.logger.Warn("Tool failed", "tool", name, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		s.logger.Debug("Tool executed", "tool", name, "bytes", len(text))
		if text == "" {
			return &mcp.CallToolResult{Content: []mcp.Content{}}, nil
		}
		return mcp.NewToolResultText(text), nil
	}
}
