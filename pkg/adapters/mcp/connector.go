package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/teller"
	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/ports"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ClientName is announced to the tool-execution service during the handshake.
const ClientName = "teller"

// Transport names the channel used to reach the tool-execution service.
type Transport string

const (
	TransportStdio     Transport = "stdio"
	TransportHTTP      Transport = "http"
	TransportInProcess Transport = "inprocess"
)

type dialFunc func(ctx context.Context) (*client.Client, error)

// Connector opens a fresh MCP channel per call and performs the initialize handshake.
type Connector struct {
	transport Transport
	dial      dialFunc
	logger    *slog.Logger
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger sets the logger used for channel lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Connector) {
		if l != nil {
			c.logger = l
		}
	}
}

func newConnector(t Transport, dial dialFunc, opts ...Option) *Connector {
	c := &Connector{
		transport: t,
		dial:      dial,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewStdioConnector spawns command per call and speaks MCP over its stdin/stdout.
func NewStdioConnector(command string, args []string, env []string, opts ...Option) *Connector {
	return newConnector(TransportStdio, func(ctx context.Context) (*client.Client, error) {
		// The stdio client starts the subprocess on construction.
		return client.NewStdioMCPClient(command, env, args...)
	}, opts...)
}

// NewHTTPConnector speaks MCP over the streamable HTTP transport at url.
func NewHTTPConnector(url string, opts ...Option) *Connector {
	return newConnector(TransportHTTP, func(ctx context.Context) (*client.Client, error) {
		c, err := client.NewStreamableHttpClient(url)
		if err != nil {
			return nil, err
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
		return c, nil
	}, opts...)
}

// NewInProcessConnector talks to an MCP server living in the same process.
func NewInProcessConnector(srv *server.MCPServer, opts ...Option) *Connector {
	return newConnector(TransportInProcess, func(ctx context.Context) (*client.Client, error) {
		c, err := client.NewInProcessClient(srv)
		if err != nil {
			return nil, err
		}
		if err := c.Start(ctx); err != nil {
			_ = c.Close()
			return nil, err
		}
		return c, nil
	}, opts...)
}

// Transport reports which channel kind the connector opens.
func (c *Connector) Transport() Transport { return c.transport }

// Connect implements ports.Connector.
func (c *Connector) Connect(ctx context.Context) (ports.ToolSession, error) {
	cl, err := c.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s channel: %w", c.transport, err)
	}

	init := mcp.InitializeRequest{}
	init.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	init.Params.ClientInfo = mcp.Implementation{
		Name:    ClientName,
		Version: strings.TrimSpace(teller.Version),
	}
	if _, err := cl.Initialize(ctx, init); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("initialize %s channel: %w", c.transport, err)
	}

	c.logger.Debug("Tool channel established", "transport", c.transport)
	return &session{client: cl, logger: c.logger}, nil
}

type session struct {
	client *client.Client
	logger *slog.Logger
}

func (s *session) Call(ctx context.Context, req domain.ToolRequest) (domain.ToolResult, error) {
	call := mcp.CallToolRequest{}
	call.Params.Name = req.Name
	call.Params.Arguments = req.Arguments

	res, err := s.client.CallTool(ctx, call)
	if err != nil {
		return domain.ToolResult{}, err
	}

	out := domain.ToolResult{ID: req.ID, IsError: res.IsError}
	if len(res.Content) == 0 {
		out.Empty = true
		return out, nil
	}
	out.Text = contentText(res.Content[0])
	return out, nil
}

func (s *session) Close() error {
	return s.client.Close()
}

// contentText returns the text of a content item. Non-text content is
// passed on in its JSON form.
func contentText(c mcp.Content) string {
	if tc, ok := mcp.AsTextContent(c); ok {
		return tc.Text
	}
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Sprintf("%v", c)
	}
	return string(b)
}
