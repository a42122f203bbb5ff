// Package file keeps pending slot state as one JSON document per identity
// in a local directory, for single-node deployments that must survive a
// restart without Redis.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/teller/pkg/domain"
)

const ext = ".json"

// Store implements ports.SlotStore on the local filesystem.
// Writes go through a synced temp file and a rename, so a crash never
// leaves a half-written entry behind.
type Store struct {
	dir string
	now func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a Store rooted at dir. An empty dir uses ".teller/slots".
func New(dir string, opts ...Option) *Store {
	if dir == "" {
		dir = filepath.Join(".teller", "slots")
	}
	s := &Store{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) path(identity string) string {
	return filepath.Join(s.dir, url.PathEscape(identity)+ext)
}

// Save writes the state, replacing any previous one. An already expired
// state is removed instead.
func (s *Store) Save(ctx context.Context, identity string, state *domain.PendingSlotState) error {
	if identity == "" {
		return errors.New("identity cannot be empty")
	}
	if state.Expired(s.now()) {
		return s.Delete(ctx, identity)
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("failed to create slot directory: %w", err)
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal pending state: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "tmp-*"+ext)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath) // No-op once renamed
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write pending state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync pending state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	dest := s.path(identity)
	// Windows refuses to rename over an existing file.
	if err := os.Remove(dest); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to replace pending state: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to commit pending state: %w", err)
	}
	return nil
}

// Load reads the state of identity.
func (s *Store) Load(ctx context.Context, identity string) (*domain.PendingSlotState, error) {
	state, err := s.read(s.path(identity))
	if err != nil {
		return nil, err
	}
	if state.Expired(s.now()) {
		return nil, domain.ErrNoPendingCall
	}
	return state, nil
}

func (s *Store) read(path string) (*domain.PendingSlotState, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrNoPendingCall
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pending state: %w", err)
	}
	var state domain.PendingSlotState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending state: %w", err)
	}
	return &state, nil
}

// Delete removes the state file. A missing file is not an error.
func (s *Store) Delete(ctx context.Context, identity string) error {
	if err := os.Remove(s.path(identity)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete pending state: %w", err)
	}
	return nil
}

// List returns the identities with live pending state, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list pending state: %w", err)
	}

	now := s.now()
	ids := []string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ext) || strings.HasPrefix(name, "tmp-") {
			continue
		}
		state, err := s.read(filepath.Join(s.dir, name))
		if err != nil || state.Expired(now) {
			continue
		}
		id, err := url.PathUnescape(strings.TrimSuffix(name, ext))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Sweep deletes expired entries and returns how many were removed.
func (s *Store) Sweep() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	now := s.now()
	removed := 0
	for _, entry := range entries {
		path := filepath.Join(s.dir, entry.Name())
		state, err := s.read(path)
		if err != nil || !state.Expired(now) {
			continue
		}
		if os.Remove(path) == nil {
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
