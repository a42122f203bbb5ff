// Package openai adapts OpenAI-compatible chat completion endpoints to ports.Model.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/extract"
	openai "github.com/sashabaranov/go-openai"
)

// ErrNoChoices is returned when the backend answers without any choice.
var ErrNoChoices = errors.New("no choices in response")

// Config selects the endpoint and model.
type Config struct {
	APIKey      string
	BaseURL     string // Empty uses the OpenAI endpoint
	Model       string
	Temperature float32
	MaxTokens   int
}

// Model implements ports.Model.
type Model struct {
	api    *openai.Client
	cfg    Config
	logger *slog.Logger
}

// Option configures a Model.
type Option func(*Model)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(c openai.HTTPDoer) Option {
	return func(m *Model) {
		oc := openai.DefaultConfig(m.cfg.APIKey)
		if m.cfg.BaseURL != "" {
			oc.BaseURL = m.cfg.BaseURL
		}
		oc.HTTPClient = c
		m.api = openai.NewClientWithConfig(oc)
	}
}

// New creates a Model for cfg.
func New(cfg Config, opts ...Option) *Model {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	m := &Model{
		api:    openai.NewClientWithConfig(oc),
		cfg:    cfg,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Complete runs one chat completion. Native tool calls (and the legacy
// function_call field) come back as ModelResponse.Calls; text is returned
// untouched for marker extraction.
func (m *Model) Complete(ctx context.Context, req domain.ModelRequest) (domain.ModelResponse, error) {
	start := time.Now()

	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: string(msg.Role), Content: msg.Content}
	}
	creq := openai.ChatCompletionRequest{
		Model:       m.cfg.Model,
		Messages:    msgs,
		Temperature: m.cfg.Temperature,
		MaxTokens:   m.cfg.MaxTokens,
	}
	if len(req.Tools) > 0 {
		creq.Tools = convertTools(req.Tools)
		creq.ToolChoice = "auto"
	}

	resp, err := m.api.CreateChatCompletion(ctx, creq)
	if err != nil {
		m.logger.Error("Model request failed",
			"model", m.cfg.Model,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return domain.ModelResponse{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.ModelResponse{}, ErrNoChoices
	}

	choice := resp.Choices[0].Message
	out := domain.ModelResponse{Text: choice.Content}
	for _, tc := range choice.ToolCalls {
		if call, ok := m.proposal(tc.Function.Name, tc.Function.Arguments); ok {
			out.Calls = append(out.Calls, call)
		}
	}
	if choice.FunctionCall != nil {
		if call, ok := m.proposal(choice.FunctionCall.Name, choice.FunctionCall.Arguments); ok {
			out.Calls = append(out.Calls, call)
		}
	}

	m.logger.Debug("Model response received",
		"model", m.cfg.Model,
		"calls", len(out.Calls),
		"content_length", len(out.Text),
		"tokens", resp.Usage.TotalTokens,
		"duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

func (m *Model) proposal(name, args string) (domain.CallProposal, bool) {
	call, err := extract.FromJSONArguments(name, args)
	if err != nil {
		m.logger.Warn("Discarding malformed tool call", "name", name, "error", err)
		return domain.CallProposal{}, false
	}
	return call, true
}

func convertTools(specs []domain.ToolSpec) []openai.Tool {
	tools := make([]openai.Tool, len(specs))
	for i, s := range specs {
		tools[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		}
	}
	return tools
}
