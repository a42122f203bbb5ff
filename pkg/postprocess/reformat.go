// Package postprocess rewrites raw operation results into the user's
// language and a readable layout with a second model call.
package postprocess

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/locale"
	"github.com/aretw0/teller/pkg/ports"
)

// DefaultTimeout bounds the reformatting call.
const DefaultTimeout = 30 * time.Second

const instruction = `You rewrite banking information for a chat window.
Translate the text the user sends into %s and format it:
- use bullet points for lists
- put product names and key figures in **bold**
- format amounts with thousands separators and the currency
Do not add, drop or invent facts. Return only the transformed text.`

// Reformatter implements ports.Reformatter over a Model.
type Reformatter struct {
	model   ports.Model
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Reformatter.
type Option func(*Reformatter)

// WithTimeout sets the bound for one reformatting call.
func WithTimeout(d time.Duration) Option {
	return func(r *Reformatter) { r.timeout = d }
}

// WithLogger sets the logger for degraded calls.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reformatter) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Reformatter.
func New(model ports.Model, opts ...Option) *Reformatter {
	r := &Reformatter{
		model:   model,
		timeout: DefaultTimeout,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reformat returns text rewritten for lang, or text unchanged on any failure.
func (r *Reformatter) Reformat(ctx context.Context, text string, lang domain.Language) (out string) {
	if strings.TrimSpace(text) == "" {
		return text
	}
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Reformat panicked, returning raw result", "panic", p)
			out = text
		}
	}()

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	resp, err := r.model.Complete(ctx, domain.ModelRequest{
		Messages: []domain.Message{
			{Role: domain.RoleSystem, Content: fmt.Sprintf(instruction, locale.LanguageName(lang))},
			{Role: domain.RoleUser, Content: text},
		},
	})
	if err != nil {
		r.logger.Warn("Reformat failed, returning raw result", "lang", lang, "error", err)
		return text
	}
	formatted := strings.TrimSpace(resp.Text)
	if formatted == "" || len(resp.Calls) > 0 {
		r.logger.Warn("Reformat returned no text, returning raw result", "lang", lang)
		return text
	}
	return formatted
}
