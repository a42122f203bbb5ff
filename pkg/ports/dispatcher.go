package ports

import (
	"context"

	"github.com/aretw0/teller/pkg/domain"
)

// ToolSession is one established channel to the tool-execution service.
type ToolSession interface {
	// Call sends a single request and waits for its response.
	Call(ctx context.Context, req domain.ToolRequest) (domain.ToolResult, error)
	// Close tears the channel down.
	Close() error
}

// Connector establishes channels, including any protocol handshake.
type Connector interface {
	Connect(ctx context.Context) (ToolSession, error)
}

// Dispatcher executes validated calls against the tool-execution service.
type Dispatcher interface {
	Dispatch(ctx context.Context, call domain.ValidatedCall) (domain.ToolResult, error)
}

// Reformatter rewrites a raw result into the target language and a readable layout.
// It never fails: on any error the input text is returned unchanged.
type Reformatter interface {
	Reformat(ctx context.Context, text string, lang domain.Language) string
}
