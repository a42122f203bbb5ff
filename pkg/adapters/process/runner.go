package process

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/ports"
)

// EnvPrefix is prepended to every argument passed to a process.
const EnvPrefix = "TELLER_ARG_"

// Runner executes operations as local processes, one process per call.
// Only operations on the allow-list can run.
type Runner struct {
	registry  map[string]RegisteredProcess
	baseDir   string
	waitDelay time.Duration
	logger    *slog.Logger
}

// RegisteredProcess defines an allowed command execution.
type RegisteredProcess struct {
	Command string
	Args    []string
	Env     map[string]string
}

// RunnerOption configures the runner.
type RunnerOption func(*Runner)

// WithRegistry populates the allow-list from a loaded config.
func WithRegistry(tools map[string]ProcessConfig) RunnerOption {
	return func(r *Runner) {
		for name, tool := range tools {
			r.registry[name] = RegisteredProcess{
				Command: tool.Command,
				Args:    tool.Args,
				Env:     tool.Environment,
			}
		}
	}
}

// WithBaseDir sets the working directory for executed processes.
func WithBaseDir(dir string) RunnerOption {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

// WithWaitDelay bounds how long a cancelled process may take to exit.
func WithWaitDelay(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.waitDelay = d
	}
}

// WithLogger sets the logger used for process failures.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a new Process Runner.
func NewRunner(opts ...RunnerOption) *Runner {
	r := &Runner{
		registry:  make(map[string]RegisteredProcess),
		waitDelay: 2 * time.Second,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a trusted script/command to the allow-list.
func (r *Runner) Register(name string, command string, args ...string) {
	r.registry[name] = RegisteredProcess{
		Command: command,
		Args:    args,
	}
}

// Names returns the allow-listed operations, sorted.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.registry))
	for name := range r.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Connect implements ports.Connector. A process has no handshake, so the
// session is ready immediately.
func (r *Runner) Connect(ctx context.Context) (ports.ToolSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return processSession{runner: r}, nil
}

type processSession struct {
	runner *Runner
}

func (s processSession) Call(ctx context.Context, req domain.ToolRequest) (domain.ToolResult, error) {
	return s.runner.Execute(ctx, req)
}

func (processSession) Close() error { return nil }

// Execute runs the process registered for req.Name.
// Arguments travel as TELLER_ARG_<KEY> environment variables, never as
// command-line flags. Stdout is the result text.
func (r *Runner) Execute(ctx context.Context, req domain.ToolRequest) (domain.ToolResult, error) {
	proc, ok := r.registry[req.Name]
	if !ok {
		return domain.ToolResult{}, fmt.Errorf("%w: process tool not registered: %s", domain.ErrUnknownOperation, req.Name)
	}

	cmd := exec.CommandContext(ctx, proc.Command, proc.Args...)
	cmd.Dir = r.baseDir
	cmd.WaitDelay = r.waitDelay
	cmd.Env = append(cmd.Environ(), Environment(req)...)
	for k, v := range proc.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.ToolResult{}, ctxErr
	}

	result := domain.ToolResult{ID: req.ID}
	if err != nil {
		if _, exited := err.(*exec.ExitError); !exited {
			// The process never ran: missing binary, permissions.
			return domain.ToolResult{}, fmt.Errorf("start %s: %w", proc.Command, err)
		}
		r.logger.Warn("Process tool failed", "tool", req.Name, "error", err)
		result.IsError = true
		result.Text = strings.TrimSpace(stderr.String())
		if result.Text == "" {
			result.Text = err.Error()
		}
		return result, nil
	}

	result.Text = strings.TrimSpace(stdout.String())
	result.Empty = result.Text == ""
	return result, nil
}

// Environment renders the request as KEY=VALUE pairs, sorted by key.
func Environment(req domain.ToolRequest) []string {
	env := make([]string, 0, len(req.Arguments)+1)
	if req.ID != "" {
		env = append(env, "TELLER_REQUEST_ID="+req.ID)
	}
	keys := make([]string, 0, len(req.Arguments))
	for k := range req.Arguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, fmt.Sprintf("%s%s=%s", EnvPrefix, strings.ToUpper(k), envValue(req.Arguments[k])))
	}
	return env
}

// Primitives are formatted directly, everything else as JSON.
func envValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case int, int64, float64, bool:
		return fmt.Sprintf("%v", t)
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", v)
	}
}
