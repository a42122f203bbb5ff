package schema

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

//go:embed catalog/operations.yaml
var defaultCatalog []byte

type catalogFile struct {
	Operations []catalogEntry `yaml:"operations"`
}

type catalogEntry struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Reformat    bool      `yaml:"reformat"`
	Parameters  yaml.Node `yaml:"parameters"`
}

type paramDef struct {
	Type        string   `yaml:"type"`
	Description string   `yaml:"description"`
	Enum        []string `yaml:"enum"`
	Items       *struct {
		Type string   `yaml:"type"`
		Enum []string `yaml:"enum"`
	} `yaml:"items"`
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
	defaultErr  error
)

// Default returns the registry built from the embedded banking catalog.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultReg, defaultErr = Load(context.Background(), bytes.NewReader(defaultCatalog))
	})
	return defaultReg, defaultErr
}

// DefaultCatalog returns the raw embedded catalog document.
func DefaultCatalog() []byte {
	return append([]byte(nil), defaultCatalog...)
}

// LoadFile reads a catalog from a YAML or JSON file.
func LoadFile(ctx context.Context, path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer f.Close()
	return Load(ctx, f)
}

// Load decodes a catalog document. Parameter order follows the document,
// and each parameters block must be a valid OpenAPI schema of type object.
func Load(ctx context.Context, r io.Reader) (*Registry, error) {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	var (
		ops  []*OperationSchema
		errs []error
	)
	for _, entry := range file.Operations {
		op, entryErrs := compileEntry(ctx, entry)
		if len(entryErrs) > 0 {
			errs = append(errs, entryErrs...)
			continue
		}
		ops = append(ops, op)
	}
	if len(errs) > 0 {
		return nil, &AggregateError{Errors: errs}
	}
	if len(ops) == 0 {
		return nil, &AggregateError{Errors: []error{&CatalogError{Reason: "catalog has no operations"}}}
	}
	return NewRegistry(ops...)
}

func compileEntry(ctx context.Context, entry catalogEntry) (*OperationSchema, []error) {
	fail := func(field, format string, args ...any) []error {
		return []error{&CatalogError{Operation: entry.Name, Field: field, Reason: fmt.Sprintf(format, args...)}}
	}
	if entry.Name == "" {
		return nil, fail("", "missing name")
	}

	op := &OperationSchema{
		Name:        entry.Name,
		Description: entry.Description,
		Reformat:    entry.Reformat,
		raw:         map[string]any{"type": "object", "properties": map[string]any{}, "required": []any{}},
	}
	if entry.Parameters.Kind == 0 {
		return op, nil
	}

	var raw map[string]any
	if err := entry.Parameters.Decode(&raw); err != nil {
		return nil, fail("parameters", "%v", err)
	}
	if err := validateOpenAPI(ctx, raw); err != nil {
		return nil, fail("parameters", "invalid schema: %v", err)
	}
	op.raw = raw

	var required []string
	if node := mappingValue(&entry.Parameters, "required"); node != nil {
		if err := node.Decode(&required); err != nil {
			return nil, fail("required", "%v", err)
		}
	}
	isRequired := make(map[string]bool, len(required))
	for _, name := range required {
		isRequired[name] = true
	}

	var errs []error
	props := mappingValue(&entry.Parameters, "properties")
	if props != nil {
		for i := 0; i+1 < len(props.Content); i += 2 {
			name := props.Content[i].Value
			var def paramDef
			if err := props.Content[i+1].Decode(&def); err != nil {
				errs = append(errs, fail(name, "%v", err)...)
				continue
			}
			kind, err := ParseKind(def.Type)
			if err != nil {
				errs = append(errs, fail(name, "%v", err)...)
				continue
			}
			allowed := def.Enum
			if kind == KindStringArray {
				if def.Items == nil || def.Items.Type != "string" {
					errs = append(errs, fail(name, "only arrays of strings are supported")...)
					continue
				}
				allowed = def.Items.Enum
			}
			op.Params = append(op.Params, ParamSpec{
				Name:          name,
				Kind:          kind,
				Description:   def.Description,
				Required:      isRequired[name],
				AllowedValues: allowed,
			})
			delete(isRequired, name)
		}
	}
	for _, name := range required {
		if isRequired[name] {
			errs = append(errs, fail(name, "required parameter is not declared")...)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return op, nil
}

func validateOpenAPI(ctx context.Context, raw map[string]any) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	var s openapi3.Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s.Type == nil || !s.Type.Is(openapi3.TypeObject) {
		return fmt.Errorf("parameters must be of type object")
	}
	return s.Validate(ctx)
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			v := node.Content[i+1]
			for v.Kind == yaml.AliasNode {
				v = v.Alias
			}
			return v
		}
	}
	return nil
}
