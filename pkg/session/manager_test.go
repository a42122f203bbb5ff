package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/ports"
	"github.com/aretw0/teller/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data map[string]*domain.PendingSlotState
	mu   sync.Mutex
}

func (s *SlowStore) Save(ctx context.Context, identity string, state *domain.PendingSlotState) error {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.PendingSlotState)
	}
	s.data[identity] = state.Clone()
	return nil
}

func (s *SlowStore) Load(ctx context.Context, identity string) (*domain.PendingSlotState, error) {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.data[identity]; ok {
		return state.Clone(), nil
	}
	return nil, domain.ErrNoPendingCall
}

func (s *SlowStore) Delete(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, identity)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestManager_SerializesReadModifyWrite(t *testing.T) {
	store := &SlowStore{}
	manager := session.NewManager(store)
	ctx := context.Background()
	id := "race-test"

	var wg sync.WaitGroup
	concurrentTurns := 10

	// Each turn appends its marker to the pending arguments. Without the
	// per-identity lock, concurrent read-modify-write cycles lose updates.
	for i := 0; i < concurrentTurns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.WithLock(ctx, id, func(ctx context.Context, slots session.Slots) error {
				pending, err := slots.Pending(ctx)
				if err != nil {
					return err
				}
				count := 0
				if pending != nil {
					count = pending.Arguments["count"].(int)
				}
				_, err = slots.Put(ctx, "transfer_money", map[string]any{"count": count + 1}, []string{"amount"})
				return err
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, concurrentTurns, state.Arguments["count"])
}

func TestManager_Lifecycle(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	manager := session.NewManager(&SlowStore{}, session.WithClock(clock), session.WithTTL(time.Minute))
	ctx := context.Background()

	// Idle
	_, err := manager.Load(ctx, "7")
	assert.ErrorIs(t, err, domain.ErrNoPendingCall)

	// Idle -> AwaitingArgs
	err = manager.WithLock(ctx, "7", func(ctx context.Context, slots session.Slots) error {
		_, err := slots.Put(ctx, "transfer_money", map[string]any{"to_name": "Aizada"}, []string{"amount"})
		return err
	})
	require.NoError(t, err)

	state, err := manager.Load(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "7", state.Identity)
	assert.Equal(t, now.Add(time.Minute), state.ExpiresAt)
	created := state.CreatedAt

	// AwaitingArgs -> AwaitingArgs keeps the creation time
	now = now.Add(30 * time.Second)
	err = manager.WithLock(ctx, "7", func(ctx context.Context, slots session.Slots) error {
		_, err := slots.Put(ctx, "transfer_money", map[string]any{"to_name": "Aizada"}, []string{"amount"})
		return err
	})
	require.NoError(t, err)
	state, err = manager.Load(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, created, state.CreatedAt)
	assert.Equal(t, now, state.UpdatedAt)

	// AwaitingArgs -> Idle
	require.NoError(t, manager.Delete(ctx, "7"))
	_, err = manager.Load(ctx, "7")
	assert.ErrorIs(t, err, domain.ErrNoPendingCall)
}

func TestManager_Expiry(t *testing.T) {
	now := time.Now()
	store := &SlowStore{}
	manager := session.NewManager(store,
		session.WithClock(func() time.Time { return now }),
		session.WithTTL(10*time.Minute),
	)
	ctx := context.Background()

	require.NoError(t, manager.WithLock(ctx, "7", func(ctx context.Context, slots session.Slots) error {
		_, err := slots.Put(ctx, "transfer_money", nil, []string{"amount"})
		return err
	}))

	now = now.Add(10 * time.Minute)
	_, err := manager.Load(ctx, "7")
	assert.ErrorIs(t, err, domain.ErrNoPendingCall)

	ids, _ := store.List(ctx)
	assert.Empty(t, ids, "expired state is removed from the store")
}

func TestManager_NoTTL(t *testing.T) {
	manager := session.NewManager(&SlowStore{}, session.WithTTL(0))
	ctx := context.Background()
	require.NoError(t, manager.WithLock(ctx, "7", func(ctx context.Context, slots session.Slots) error {
		_, err := slots.Put(ctx, "transfer_money", nil, []string{"amount"})
		return err
	}))

	state, err := manager.Load(ctx, "7")
	require.NoError(t, err)
	assert.True(t, state.ExpiresAt.IsZero())
}

type fakeLocker struct {
	mu      sync.Mutex
	keys    []string
	unlocks int
	err     error
}

func (f *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, key)
	return func(ctx context.Context) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.unlocks++
		return nil
	}, nil
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &fakeLocker{}
	manager := session.NewManager(&SlowStore{}, session.WithLocker(locker))
	ctx := context.Background()

	require.NoError(t, manager.Delete(ctx, "7"))
	assert.Equal(t, []string{"7"}, locker.keys)
	assert.Equal(t, 1, locker.unlocks)

	locker.err = errors.New("redis down")
	err := manager.WithLock(ctx, "7", func(context.Context, session.Slots) error {
		t.Fatal("callback must not run without the lock")
		return nil
	})
	assert.ErrorContains(t, err, "redis down")
}
