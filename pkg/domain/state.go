package domain

import "time"

// PendingSlotState holds an operation awaiting additional arguments for one identity.
// At most one exists per identity.
type PendingSlotState struct {
	Identity  string         `json:"identity"`
	Operation string         `json:"operation"`
	Arguments map[string]any `json:"arguments"`
	Missing   []string       `json:"missing,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	ExpiresAt time.Time      `json:"expires_at,omitempty"` // Zero means no expiry
}

// NewPendingSlotState creates a pending state for the given operation.
func NewPendingSlotState(identity, operation string, args map[string]any, now time.Time) *PendingSlotState {
	return &PendingSlotState{
		Identity:  identity,
		Operation: operation,
		Arguments: CloneArgs(args),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Expired reports whether the state is past its expiry at the given instant.
func (p *PendingSlotState) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// Clone returns a copy that does not share the argument map.
func (p *PendingSlotState) Clone() *PendingSlotState {
	if p == nil {
		return nil
	}
	c := *p
	c.Arguments = CloneArgs(p.Arguments)
	if p.Missing != nil {
		c.Missing = append([]string(nil), p.Missing...)
	}
	return &c
}

// CloneArgs copies an argument map, recursing into nested maps.
func CloneArgs(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = CloneArgs(sub)
			continue
		}
		out[k] = v
	}
	return out
}
