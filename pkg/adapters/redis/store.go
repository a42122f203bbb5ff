package redis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/aretw0/teller/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Store implements ports.SlotStore on Redis.
// Each pending state is a JSON value with a native TTL; a sorted set indexes
// identities by expiry so List can skip and lazily purge expired entries.
type Store struct {
	client backend.UniversalClient
	prefix string
	ttl    time.Duration // Applied when a state carries no expiry; zero keeps it forever
	now    func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the fallback TTL for states without an expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithPrefix sets the key prefix (default "teller:").
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// New connects to addr and returns a Store.
func New(addr string, opts ...Option) *Store {
	return NewFromClient(backend.NewClient(&backend.Options{Addr: addr}), opts...)
}

// NewFromClient wraps an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: "teller:",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(identity string) string { return s.prefix + "slot:" + identity }
func (s *Store) indexKey() string           { return s.prefix + "slots" }

// Save persists the state, replacing any previous one.
// A state that has already expired is removed instead.
func (s *Store) Save(ctx context.Context, identity string, state *domain.PendingSlotState) error {
	now := s.now()
	ttl := s.ttl
	if !state.ExpiresAt.IsZero() {
		ttl = state.ExpiresAt.Sub(now)
		if ttl <= 0 {
			return s.Delete(ctx, identity)
		}
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal pending state: %w", err)
	}

	score := math.Inf(1)
	if ttl > 0 {
		score = float64(now.Add(ttl).UnixMilli())
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(identity), data, ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: identity})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis error saving pending state: %w", err)
	}
	return nil
}

// Load retrieves the state.
func (s *Store) Load(ctx context.Context, identity string) (*domain.PendingSlotState, error) {
	data, err := s.client.Get(ctx, s.key(identity)).Bytes()
	if errors.Is(err, backend.Nil) {
		return nil, domain.ErrNoPendingCall
	}
	if err != nil {
		return nil, fmt.Errorf("redis error loading pending state: %w", err)
	}

	var state domain.PendingSlotState
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending state: %w", err)
	}
	if state.Expired(s.now()) {
		return nil, domain.ErrNoPendingCall
	}
	if state.Arguments == nil {
		state.Arguments = map[string]any{}
	}
	return &state, nil
}

// Delete removes the state.
func (s *Store) Delete(ctx context.Context, identity string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(identity))
	pipe.ZRem(ctx, s.indexKey(), identity)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis error deleting pending state: %w", err)
	}
	return nil
}

// List returns identities with live state, purging expired index entries.
func (s *Store) List(ctx context.Context) ([]string, error) {
	nowMs := strconv.FormatInt(s.now().UnixMilli(), 10)
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", nowMs).Err(); err != nil {
		return nil, fmt.Errorf("redis error purging index: %w", err)
	}
	ids, err := s.client.ZRangeByScore(ctx, s.indexKey(), &backend.ZRangeBy{Min: "(" + nowMs, Max: "+inf"}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error listing pending states: %w", err)
	}
	return ids, nil
}
