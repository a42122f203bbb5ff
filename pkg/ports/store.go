package ports

import (
	"context"

	"github.com/aretw0/teller/pkg/domain"
)

// SlotStore defines the interface for persisting pending slot-filling state.
// There is at most one entry per identity.
type SlotStore interface {
	// Save persists the pending state for an identity, replacing any previous one.
	Save(ctx context.Context, identity string, state *domain.PendingSlotState) error

	// Load retrieves the pending state for an identity.
	// Returns domain.ErrNoPendingCall if there is none or it has expired.
	Load(ctx context.Context, identity string) (*domain.PendingSlotState, error)

	// Delete removes the pending state. Deleting a missing entry is not an error.
	Delete(ctx context.Context, identity string) error

	// List returns the identities that currently have pending state.
	List(ctx context.Context) ([]string, error)
}
