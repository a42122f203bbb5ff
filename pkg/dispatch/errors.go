package dispatch

import (
	"fmt"

	"github.com/aretw0/teller/pkg/domain"
)

// Kind classifies a dispatch failure.
type Kind string

const (
	KindChannelSetup Kind = "channel_setup"
	KindRemote       Kind = "remote"
	KindTimeout      Kind = "timeout"
)

func (k Kind) sentinel() error {
	switch k {
	case KindChannelSetup:
		return domain.ErrChannelSetup
	case KindTimeout:
		return domain.ErrTimeout
	default:
		return domain.ErrRemote
	}
}

// Error is returned by Dispatch. It matches the domain sentinel of its Kind
// with errors.Is and also unwraps to the underlying cause.
type Error struct {
	Kind      Kind
	Operation string
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("dispatch %s: %s", e.Operation, e.Kind.sentinel())
	}
	return fmt.Sprintf("dispatch %s: %s: %v", e.Operation, e.Kind.sentinel(), e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}
