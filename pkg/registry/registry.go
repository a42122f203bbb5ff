// Package registry maps operation names to their implementations on the
// tool-execution side.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/teller/pkg/domain"
)

// ToolFunction defines the signature for an operation implementation.
// It receives a context and the validated arguments (identity included) and
// returns the text shown to the user. Business failures ("recipient not
// found") are ordinary results; an error means the operation could not run.
type ToolFunction func(ctx context.Context, args map[string]any) (string, error)

// Registry manages the available operations.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]ToolFunction
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]ToolFunction),
	}
}

// Register adds an operation to the registry.
// If an operation with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn ToolFunction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = fn
}

// Has reports whether an operation is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names returns the registered operation names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute looks up an operation by name and executes it.
// Returns an error wrapping domain.ErrUnknownOperation if it is not found.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	fn, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownOperation, name)
	}

	return fn(ctx, args)
}
