package schema

import (
	"fmt"
	"slices"
)

// ParamSpec describes one parameter of an operation.
type ParamSpec struct {
	Name          string
	Kind          Kind
	Description   string
	Required      bool
	AllowedValues []string // For arrays, the allowed element values
}

// Allows reports whether v is within the allowed values. An empty set allows anything.
func (p ParamSpec) Allows(v any) bool {
	if len(p.AllowedValues) == 0 {
		return true
	}
	if list, ok := v.([]string); ok {
		for _, elem := range list {
			if !slices.Contains(p.AllowedValues, elem) {
				return false
			}
		}
		return true
	}
	return slices.Contains(p.AllowedValues, fmt.Sprint(v))
}

// OperationSchema is the contract of a single invokable operation.
type OperationSchema struct {
	Name        string
	Description string
	Params      []ParamSpec
	// Reformat marks operations whose raw result should be rewritten
	// into a conversational reply before being shown to the user.
	Reformat bool

	raw map[string]any
}

// NewOperation builds a schema from explicit parameters, in order.
func NewOperation(name, description string, params ...ParamSpec) *OperationSchema {
	return &OperationSchema{
		Name:        name,
		Description: description,
		Params:      params,
	}
}

// Param returns the parameter with the given name.
func (o *OperationSchema) Param(name string) (ParamSpec, bool) {
	for _, p := range o.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// Required returns the names of the required parameters in declaration order.
func (o *OperationSchema) Required() []string {
	var names []string
	for _, p := range o.Params {
		if p.Required {
			names = append(names, p.Name)
		}
	}
	return names
}

// ParamNames returns every declared parameter name in declaration order.
func (o *OperationSchema) ParamNames() []string {
	names := make([]string, len(o.Params))
	for i, p := range o.Params {
		names[i] = p.Name
	}
	return names
}

// JSONSchema returns the parameters as a JSON Schema object, suitable for
// advertising the operation to a model or an MCP client. The result is a copy.
func (o *OperationSchema) JSONSchema() map[string]any {
	if o.raw != nil {
		return deepCopy(o.raw).(map[string]any)
	}
	props := make(map[string]any, len(o.Params))
	required := []any{}
	for _, p := range o.Params {
		prop := map[string]any{"type": string(p.Kind)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		enum := make([]any, len(p.AllowedValues))
		for i, v := range p.AllowedValues {
			enum[i] = v
		}
		switch {
		case p.Kind == KindStringArray:
			items := map[string]any{"type": "string"}
			if len(enum) > 0 {
				items["enum"] = enum
			}
			prop["items"] = items
		case len(enum) > 0:
			prop["enum"] = enum
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func deepCopy(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
