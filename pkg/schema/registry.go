package schema

import (
	"fmt"

	"github.com/aretw0/teller/pkg/domain"
)

// Registry is an immutable, ordered set of operation schemas.
type Registry struct {
	ops   []*OperationSchema
	index map[string]*OperationSchema
}

// NewRegistry builds a registry from schemas. Duplicate names are rejected.
func NewRegistry(ops ...*OperationSchema) (*Registry, error) {
	r := &Registry{index: make(map[string]*OperationSchema, len(ops))}
	var errs []error
	for _, op := range ops {
		if op == nil || op.Name == "" {
			errs = append(errs, &CatalogError{Reason: "missing name"})
			continue
		}
		if _, dup := r.index[op.Name]; dup {
			errs = append(errs, &CatalogError{Operation: op.Name, Reason: "duplicate operation"})
			continue
		}
		seen := make(map[string]bool, len(op.Params))
		for _, p := range op.Params {
			if seen[p.Name] {
				errs = append(errs, &CatalogError{Operation: op.Name, Field: p.Name, Reason: "duplicate parameter"})
			}
			seen[p.Name] = true
			if _, err := ParseKind(string(p.Kind)); err != nil {
				errs = append(errs, &CatalogError{Operation: op.Name, Field: p.Name, Reason: err.Error()})
			}
		}
		r.ops = append(r.ops, op)
		r.index[op.Name] = op
	}
	if len(errs) > 0 {
		return nil, &AggregateError{Errors: errs}
	}
	return r, nil
}

// Lookup returns the schema for name or domain.ErrUnknownOperation.
func (r *Registry) Lookup(name string) (*OperationSchema, error) {
	op, ok := r.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownOperation, name)
	}
	return op, nil
}

// Has reports whether an operation is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// AllowedParamNames returns the declared parameter names of an operation as a set.
// The identity parameter is injected by the caller and is not part of this set.
func (r *Registry) AllowedParamNames(name string) (map[string]struct{}, error) {
	op, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(op.Params))
	for _, p := range op.Params {
		set[p.Name] = struct{}{}
	}
	return set, nil
}

// List returns all schemas in catalog order.
func (r *Registry) List() []*OperationSchema {
	return append([]*OperationSchema(nil), r.ops...)
}

// Len returns the number of operations.
func (r *Registry) Len() int { return len(r.ops) }

// ToolSpecs renders the registry as tool declarations for a model.
func (r *Registry) ToolSpecs() []domain.ToolSpec {
	specs := make([]domain.ToolSpec, len(r.ops))
	for i, op := range r.ops {
		specs[i] = domain.ToolSpec{
			Name:        op.Name,
			Description: op.Description,
			Parameters:  op.JSONSchema(),
		}
	}
	return specs
}
