package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/teller/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Pair is one key-value argument of a backend that returns arguments as an
// iterable of pairs rather than a map.
type Pair struct {
	Key   string `mapstructure:"key"`
	Value any    `mapstructure:"value"`
}

// FromJSONArguments adapts a call whose arguments are a JSON document encoded
// as a string, as returned by OpenAI-compatible tool calls.
func FromJSONArguments(name, arguments string) (domain.CallProposal, error) {
	if name == "" {
		return domain.CallProposal{}, fmt.Errorf("%w: call without name", domain.ErrParse)
	}
	args := map[string]any{}
	if s := strings.TrimSpace(arguments); s != "" && s != "null" {
		dec := json.NewDecoder(strings.NewReader(s))
		dec.UseNumber()
		if err := dec.Decode(&args); err != nil {
			return domain.CallProposal{}, fmt.Errorf("%w: arguments of %s: %v", domain.ErrParse, name, err)
		}
	}
	return domain.CallProposal{Name: name, Arguments: args}, nil
}

// FromPairs adapts a call whose arguments come as key-value pairs.
// A later pair with the same key wins.
func FromPairs(name string, pairs []Pair) (domain.CallProposal, error) {
	if name == "" {
		return domain.CallProposal{}, fmt.Errorf("%w: call without name", domain.ErrParse)
	}
	args := make(map[string]any, len(pairs))
	for _, p := range pairs {
		if p.Key == "" {
			return domain.CallProposal{}, fmt.Errorf("%w: empty argument key in %s", domain.ErrParse, name)
		}
		args[p.Key] = p.Value
	}
	return domain.CallProposal{Name: name, Arguments: args}, nil
}

// callObject covers the object encodings seen across backends:
//
//	{"name": ..., "args": {...}}                        native function_call objects
//	{"name": ..., "arguments": "{...}" | {...} | [...]} chat-completions style
//	{"name": ..., "parameters": {...}}                  JSON-mode replies
//	{"function": {"name": ..., "arguments": ...}}       wrapped tool calls
type callObject struct {
	Name       string         `mapstructure:"name"`
	Args       any            `mapstructure:"args"`
	Arguments  any            `mapstructure:"arguments"`
	Parameters any            `mapstructure:"parameters"`
	Function   map[string]any `mapstructure:"function"`
}

// FromObject adapts a decoded call object (a map or a struct) of any supported encoding.
func FromObject(obj any) (domain.CallProposal, error) {
	var raw callObject
	if err := mapstructure.Decode(obj, &raw); err != nil {
		return domain.CallProposal{}, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	if raw.Name == "" && raw.Function != nil {
		return FromObject(raw.Function)
	}

	var payload any
	for _, candidate := range []any{raw.Args, raw.Arguments, raw.Parameters} {
		if candidate != nil {
			payload = candidate
			break
		}
	}

	switch v := payload.(type) {
	case nil:
		return FromPairs(raw.Name, nil)
	case string:
		return FromJSONArguments(raw.Name, v)
	case map[string]any:
		return domain.CallProposal{Name: raw.Name, Arguments: domain.CloneArgs(v)}, nilIfNamed(raw.Name)
	case []any:
		var pairs []Pair
		if err := mapstructure.Decode(v, &pairs); err != nil {
			return domain.CallProposal{}, fmt.Errorf("%w: arguments of %s: %v", domain.ErrParse, raw.Name, err)
		}
		return FromPairs(raw.Name, pairs)
	default:
		var args map[string]any
		if err := mapstructure.Decode(v, &args); err != nil {
			return domain.CallProposal{}, fmt.Errorf("%w: arguments of %s: unsupported %T", domain.ErrParse, raw.Name, v)
		}
		return domain.CallProposal{Name: raw.Name, Arguments: args}, nilIfNamed(raw.Name)
	}
}

func nilIfNamed(name string) error {
	if name == "" {
		return fmt.Errorf("%w: call without name", domain.ErrParse)
	}
	return nil
}
