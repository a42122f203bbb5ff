package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/teller/pkg/domain"
)

// Store implements ports.SlotStore in memory.
// Safe for concurrent use. Expired entries are invisible to Load and List and
// are reclaimed by Sweep.
type Store struct {
	data map[string]*domain.PendingSlotState
	mu   sync.RWMutex
	now  func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a new in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]*domain.PendingSlotState),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists the state in memory.
func (s *Store) Save(ctx context.Context, identity string, state *domain.PendingSlotState) error {
	// Copy to ensure isolation, similar to serialization
	copied := state.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[identity] = copied
	return nil
}

// Load retrieves the state from memory.
func (s *Store) Load(ctx context.Context, identity string) (*domain.PendingSlotState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[identity]
	if !ok || state.Expired(s.now()) {
		return nil, domain.ErrNoPendingCall
	}

	// Copy on read so the caller can't mutate store state directly by pointer
	return state.Clone(), nil
}

// Delete removes the state.
func (s *Store) Delete(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, identity)
	return nil
}

// List returns the identities with live pending state, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	ids := make([]string, 0, len(s.data))
	for id, state := range s.data {
		if !state.Expired(now) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids) // Deterministic order
	return ids, nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, state := range s.data {
		if state.Expired(now) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run sweeps on every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
