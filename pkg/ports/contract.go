package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/teller/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSlotStoreContract runs a suite of tests to verify that a SlotStore implementation
// adheres to the defined interface contract.
func RunSlotStoreContract(t *testing.T, store SlotStore) {
	ctx := context.Background()
	identity := "contract-" + time.Now().Format("20060102150405.000000")
	now := time.Now()

	t.Run("Save and Load", func(t *testing.T) {
		state := domain.NewPendingSlotState(identity, "transfer_money", map[string]any{"to_name": "Aigul"}, now)
		state.Missing = []string{"amount"}
		state.ExpiresAt = now.Add(time.Hour)

		err := store.Save(ctx, identity, state)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, identity)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, "transfer_money", loaded.Operation)
		assert.Equal(t, identity, loaded.Identity)
		assert.Equal(t, "Aigul", loaded.Arguments["to_name"])
		assert.Equal(t, []string{"amount"}, loaded.Missing)
	})

	t.Run("Save Replaces", func(t *testing.T) {
		next := domain.NewPendingSlotState(identity, "get_incoming_sum_for_period", map[string]any{"start_date": "2024-01-01"}, now)
		require.NoError(t, store.Save(ctx, identity, next))

		loaded, err := store.Load(ctx, identity)
		require.NoError(t, err)
		assert.Equal(t, "get_incoming_sum_for_period", loaded.Operation)
		assert.NotContains(t, loaded.Arguments, "to_name")
	})

	t.Run("Load Isolated Copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, identity)
		require.NoError(t, err)
		loaded.Arguments["start_date"] = "mutated"

		again, err := store.Load(ctx, identity)
		require.NoError(t, err)
		assert.Equal(t, "2024-01-01", again.Arguments["start_date"])
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+identity)
		assert.ErrorIs(t, err, domain.ErrNoPendingCall)
	})

	t.Run("Load Expired", func(t *testing.T) {
		id := identity + "-expired"
		state := domain.NewPendingSlotState(id, "transfer_money", nil, now.Add(-time.Hour))
		state.ExpiresAt = now.Add(-time.Minute)
		require.NoError(t, store.Save(ctx, id, state))

		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNoPendingCall)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Delete(ctx, identity)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, identity)
		assert.ErrorIs(t, err, domain.ErrNoPendingCall, "Load after Delete should return ErrNoPendingCall")

		assert.NoError(t, store.Delete(ctx, identity), "Delete of a missing entry is a no-op")
	})

	t.Run("List", func(t *testing.T) {
		id1 := identity + "-1"
		id2 := identity + "-2"
		_ = store.Save(ctx, id1, domain.NewPendingSlotState(id1, "transfer_money", nil, now))
		_ = store.Save(ctx, id2, domain.NewPendingSlotState(id2, "transfer_money", nil, now))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
		assert.NotContains(t, ids, identity)
	})
}
