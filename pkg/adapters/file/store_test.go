package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/teller/pkg/adapters/file"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	ports.RunSlotStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	state := domain.NewPendingSlotState("7", "transfer_money", map[string]any{"to_name": "Aigul"}, time.Now())
	require.NoError(t, file.New(dir).Save(ctx, "7", state))

	loaded, err := file.New(dir).Load(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "Aigul", loaded.Arguments["to_name"])

	matches, err := filepath.Glob(filepath.Join(dir, "tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFileStore_EscapesIdentity(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	store := file.New(dir)
	id := "../tenant/42"
	require.NoError(t, store.Save(ctx, id, domain.NewPendingSlotState(id, "get_balance", nil, time.Now())))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)
}

func TestFileStore_Sweep(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	store := file.New(t.TempDir(), file.WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	state := domain.NewPendingSlotState("1", "transfer_money", nil, now)
	state.ExpiresAt = now.Add(time.Minute)
	require.NoError(t, store.Save(ctx, "1", state))
	require.NoError(t, store.Save(ctx, "2", domain.NewPendingSlotState("2", "get_balance", nil, now)))

	clock = now.Add(2 * time.Minute)
	assert.Equal(t, 1, store.Sweep())

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, ids)
}
