package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/teller/internal/logging"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/ports"
)

const (
	// DefaultTTL bounds how long a half-completed operation lingers.
	DefaultTTL = 10 * time.Minute
	// DefaultLockTTL bounds a distributed lock held by a crashed replica.
	DefaultLockTTL = 30 * time.Second
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates pending-state access, ensuring a single writer per identity.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.SlotStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	logger  *slog.Logger            // Logger for internal events (like deferred errors)
	ttl     time.Duration
	lockTTL time.Duration
	now     func() time.Time
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithTTL sets how long pending state survives without being completed.
// Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithLockTTL sets the TTL of distributed locks.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// NewManager creates a new Manager with the given store.
func NewManager(store ports.SlotStore, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		locks:   make(map[string]*lockEntry),
		logger:  logging.NewNop(), // Default to no-op
		ttl:     DefaultTTL,
		lockTTL: DefaultLockTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(identity) after unlocking.
func (m *Manager) acquire(identity string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[identity]
	if !exists {
		entry = &lockEntry{}
		m.locks[identity] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(identity string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[identity]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, identity)
	}
}

// Load retrieves the pending state of an identity.
// Returns domain.ErrNoPendingCall when the identity is Idle.
func (m *Manager) Load(ctx context.Context, identity string) (*domain.PendingSlotState, error) {
	var state *domain.PendingSlotState
	err := m.WithLock(ctx, identity, func(ctx context.Context, slots Slots) error {
		var err error
		state, err = slots.Pending(ctx)
		if err == nil && state == nil {
			err = domain.ErrNoPendingCall
		}
		return err
	})
	return state, err
}

// Delete cancels any pending operation of the identity.
func (m *Manager) Delete(ctx context.Context, identity string) error {
	return m.WithLock(ctx, identity, func(ctx context.Context, slots Slots) error {
		return slots.Clear(ctx)
	})
}

// List delegates to the store.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying slot store.
func (m *Manager) Store() ports.SlotStore {
	return m.store
}

// TTL returns the configured pending-state lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// WithLock executes fn while holding the lock for the identity.
// The Slots view must not be used after fn returns.
func (m *Manager) WithLock(ctx context.Context, identity string, fn func(context.Context, Slots) error) error {
	entry := m.acquire(identity)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(identity)
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, identity, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"identity", identity,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx, Slots{m: m, identity: identity})
}

// Slots is the pending state of one identity, accessed under its lock.
type Slots struct {
	m        *Manager
	identity string
}

// Identity returns the identity the view is bound to.
func (s Slots) Identity() string { return s.identity }

// Pending returns the current pending state, or nil when Idle.
// Expired entries are removed and reported as Idle.
func (s Slots) Pending(ctx context.Context) (*domain.PendingSlotState, error) {
	state, err := s.m.store.Load(ctx, s.identity)
	if errors.Is(err, domain.ErrNoPendingCall) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load pending state: %w", err)
	}
	if state.Expired(s.m.now()) {
		s.m.logger.Debug("Pending call expired", "identity", s.identity, "operation", state.Operation)
		if err := s.m.store.Delete(ctx, s.identity); err != nil {
			return nil, fmt.Errorf("failed to drop expired pending state: %w", err)
		}
		return nil, nil
	}
	return state, nil
}

// Put records the partial arguments of an operation awaiting input.
// The creation time survives updates of the same operation.
func (s Slots) Put(ctx context.Context, operation string, args map[string]any, missing []string) (*domain.PendingSlotState, error) {
	now := s.m.now()
	state := domain.NewPendingSlotState(s.identity, operation, args, now)
	state.Missing = append([]string(nil), missing...)

	if prev, err := s.Pending(ctx); err == nil && prev != nil && prev.Operation == operation {
		state.CreatedAt = prev.CreatedAt
	}
	if err := s.save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// Clear returns the identity to Idle.
func (s Slots) Clear(ctx context.Context) error {
	if err := s.m.store.Delete(ctx, s.identity); err != nil {
		return fmt.Errorf("failed to clear pending state: %w", err)
	}
	return nil
}

func (s Slots) save(ctx context.Context, state *domain.PendingSlotState) error {
	now := s.m.now()
	state.Identity = s.identity
	state.UpdatedAt = now
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	if s.m.ttl > 0 {
		state.ExpiresAt = now.Add(s.m.ttl)
	}
	if err := s.m.store.Save(ctx, s.identity, state); err != nil {
		return fmt.Errorf("failed to save pending state: %w", err)
	}
	return nil
}
