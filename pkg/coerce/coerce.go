// Package coerce validates proposed call arguments against the schema registry.
//
// Coercion is lenient: unknown keys are dropped, known keys are cast with
// schema.Kind.TryCast, and values that cannot be cast are passed through raw
// for the operation to reject. Values outside an enum are passed through too
// and reported. Missing required arguments never reach dispatch: the outcome
// is NeedsInput with the partial argument map to keep as pending state.
package coerce

import (
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/schema"
)

// DefaultIdentityKey is the argument under which the caller identity is injected.
const DefaultIdentityKey = "user_id"

// Status of a coercion.
type Status int

const (
	// Ready means every required argument is present and the call can be dispatched.
	Ready Status = iota
	// NeedsInput means at least one required argument is missing.
	NeedsInput
)

func (s Status) String() string {
	if s == Ready {
		return "ready"
	}
	return "needs_input"
}

// Outcome is the result of Coerce.
type Outcome struct {
	Status    Status
	Operation *schema.OperationSchema
	Call      domain.ValidatedCall // Set when Ready
	Arguments map[string]any       // Merged, filtered and cast; never holds the identity key
	Missing   []string             // Required parameters still absent, in declaration order
	Dropped   []string             // Keys not declared by the operation
	Fallbacks []string             // Keys passed through uncast
	OutOfEnum []string             // Keys whose value is outside the allowed set
}

// MissingParam returns the first missing parameter, or "".
func (o Outcome) MissingParam() string {
	if len(o.Missing) == 0 {
		return ""
	}
	return o.Missing[0]
}

// Coercer validates call proposals.
type Coercer struct {
	registry    *schema.Registry
	identityKey string
	logger      *slog.Logger
}

// Option configures a Coercer.
type Option func(*Coercer)

// WithIdentityKey changes the injected identity argument name.
func WithIdentityKey(key string) Option {
	return func(c *Coercer) { c.identityKey = key }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coercer) { c.logger = l }
}

// New creates a Coercer over a registry.
func New(reg *schema.Registry, opts ...Option) *Coercer {
	c := &Coercer{
		registry:    reg,
		identityKey: DefaultIdentityKey,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IdentityKey returns the injected identity argument name.
func (c *Coercer) IdentityKey() string { return c.identityKey }

// Coerce merges raw over the pending arguments of the same operation, filters
// and casts them, and reports whether the call is ready for dispatch.
// The only error is domain.ErrUnknownOperation.
func (c *Coercer) Coerce(name string, raw map[string]any, pending *domain.PendingSlotState, identity string) (Outcome, error) {
	op, err := c.registry.Lookup(name)
	if err != nil {
		return Outcome{}, err
	}

	merged := make(map[string]any, len(raw))
	if pending != nil && pending.Operation == name {
		for k, v := range pending.Arguments {
			if !isEmpty(v) {
				merged[k] = v
			}
		}
	}
	for k, v := range raw {
		// Empty values never erase what an earlier turn supplied.
		if !isEmpty(v) {
			merged[k] = v
		}
	}

	out := Outcome{
		Operation: op,
		Arguments: make(map[string]any, len(merged)),
	}
	for k, v := range merged {
		if k == c.identityKey {
			continue
		}
		p, ok := op.Param(k)
		if !ok {
			out.Dropped = append(out.Dropped, k)
			continue
		}
		res := p.Kind.TryCast(v)
		switch res.Status {
		case schema.CastFailed:
			continue
		case schema.CastFallback:
			out.Fallbacks = append(out.Fallbacks, k)
			c.logger.Debug("Argument passed through uncast",
				"operation", name, "param", k, "kind", p.Kind, "err", res.Err)
		}
		if res.Status == schema.CastCoerced && !p.Allows(res.Value) {
			out.OutOfEnum = append(out.OutOfEnum, k)
		}
		out.Arguments[k] = res.Value
	}
	slices.Sort(out.Dropped)
	slices.Sort(out.Fallbacks)
	slices.Sort(out.OutOfEnum)

	for _, p := range op.Params {
		if !p.Required {
			continue
		}
		if v, ok := out.Arguments[p.Name]; !ok || isEmpty(v) {
			out.Missing = append(out.Missing, p.Name)
		}
	}
	if len(out.Missing) > 0 {
		out.Status = NeedsInput
		return out, nil
	}

	args := domain.CloneArgs(out.Arguments)
	args[c.identityKey] = identityValue(identity)
	out.Status = Ready
	out.Call = domain.ValidatedCall{Name: name, Identity: identity, Arguments: args}
	return out, nil
}

// identityValue keeps numeric identities numeric on the wire.
func identityValue(identity string) any {
	if n, err := strconv.ParseInt(identity, 10, 64); err == nil {
		return n
	}
	return identity
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []string:
		return len(t) == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}
