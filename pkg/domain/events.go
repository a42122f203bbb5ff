package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTurn         EventType = "turn"
	EventSlot         EventType = "slot"
	EventDispatch     EventType = "dispatch"
	EventDispatchDone EventType = "dispatch_done"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Identity  string    `json:"identity"`
}

// TurnOutcome classifies how a conversation turn ended.
type TurnOutcome string

const (
	OutcomeText       TurnOutcome = "text"
	OutcomeDispatched TurnOutcome = "dispatched"
	OutcomeClarify    TurnOutcome = "clarify"
	OutcomeUnknown    TurnOutcome = "unknown_operation"
	OutcomeCancelled  TurnOutcome = "cancelled"
	OutcomeFailed     TurnOutcome = "failed"
)

// TurnEvent is emitted once per handled message.
type TurnEvent struct {
	EventBase
	Outcome   TurnOutcome   `json:"outcome"`
	Operation string        `json:"operation,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// SlotAction names a transition of the pending slot state.
type SlotAction string

const (
	SlotSaved   SlotAction = "saved"
	SlotCleared SlotAction = "cleared"
)

// SlotEvent is emitted when pending slot state is written or removed.
type SlotEvent struct {
	EventBase
	Action    SlotAction `json:"action"`
	Operation string     `json:"operation"`
	Missing   []string   `json:"missing,omitempty"`
}

// DispatchEvent represents one call to the tool-execution service.
type DispatchEvent struct {
	EventBase
	RequestID string        `json:"request_id"`
	Operation string        `json:"operation"`
	Duration  time.Duration `json:"duration,omitempty"`
	ErrorKind string        `json:"error_kind,omitempty"` // Empty on success
}

// LifecycleHooks defines callbacks for observability.
// Nil callbacks are skipped.
type LifecycleHooks struct {
	OnTurn         func(context.Context, *TurnEvent)
	OnSlot         func(context.Context, *SlotEvent)
	OnDispatch     func(context.Context, *DispatchEvent)
	OnDispatchDone func(context.Context, *DispatchEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTurn:         chain(h.OnTurn, other.OnTurn),
		OnSlot:         chain(h.OnSlot, other.OnSlot),
		OnDispatch:     chain(h.OnDispatch, other.OnDispatch),
		OnDispatchDone: chain(h.OnDispatchDone, other.OnDispatchDone),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
