package extract

import (
	"log/slog"

	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/domain"
)

// Source tells where a call proposal came from.
type Source string

const (
	SourceNone       Source = ""
	SourceStructured Source = "structured"
	SourceMarker     Source = "marker"
)

// Result is the classified model response.
type Result struct {
	Call   *domain.CallProposal // Nil for a direct text answer
	Text   string               // Prose accompanying the call, or the whole answer
	Source Source
}

// IsCall reports whether the response proposed a call.
func (r Result) IsCall() bool { return r.Call != nil }

// Extractor classifies model responses.
type Extractor struct {
	logger *slog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the first structured call when the backend produced one and
// falls back to marker parsing of the text otherwise. Only one call is honored
// per response.
func (e *Extractor) Extract(resp domain.ModelResponse) (Result, error) {
	if len(resp.Calls) > 0 {
		if len(resp.Calls) > 1 {
			e.logger.Warn("Model proposed several calls, honoring the first",
				"count", len(resp.Calls), "operation", resp.Calls[0].Name)
		}
		call := resp.Calls[0]
		if call.Arguments == nil {
			call.Arguments = map[string]any{}
		}
		return Result{Call: &call, Text: resp.Text, Source: SourceStructured}, nil
	}

	call, found, err := ParseMarker(resp.Text)
	if err != nil {
		e.logger.Debug("Call marker could not be parsed", "err", err)
		return Result{Text: resp.Text}, err
	}
	if !found {
		return Result{Text: resp.Text}, nil
	}
	return Result{Call: &call, Text: StripMarker(resp.Text), Source: SourceMarker}, nil
}
