package ports

import (
	"context"

	"github.com/aretw0/teller/pkg/domain"
)

// Model is the language model backend.
type Model interface {
	// Complete runs one inference. A backend with native tool calling returns
	// proposals in ModelResponse.Calls; otherwise calls are embedded in Text.
	Complete(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error)
}
