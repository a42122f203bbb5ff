// Package postgres keeps pending slot state in a PostgreSQL table, for
// deployments that already run a database next to the web layer.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/teller/pkg/domain"
	"github.com/lib/pq"
)

// DefaultTable holds one row per identity.
const DefaultTable = "teller_pending_slots"

// Store implements ports.SlotStore on database/sql with the lib/pq driver.
type Store struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithTable overrides DefaultTable.
func WithTable(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.table = name
		}
	}
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return db, nil
}

// New creates a Store over db. Call Migrate once before use.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, table: DefaultTable, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) ident() string { return pq.QuoteIdentifier(s.table) }

// Migrate creates the table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			identity   TEXT PRIMARY KEY,
			state      JSONB NOT NULL,
			expires_at TIMESTAMPTZ
		)`, s.ident()))
	if err != nil {
		return fmt.Errorf("migrate %s: %w", s.table, err)
	}
	return nil
}

// Save upserts the state. An already expired state is removed instead.
func (s *Store) Save(ctx context.Context, identity string, state *domain.PendingSlotState) error {
	if state.Expired(s.now()) {
		return s.Delete(ctx, identity)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal pending state: %w", err)
	}
	var expires sql.NullTime
	if !state.ExpiresAt.IsZero() {
		expires = sql.NullTime{Time: state.ExpiresAt, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (identity, state, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE
		SET state = EXCLUDED.state, expires_at = EXCLUDED.expires_at
	`, s.ident()), identity, string(data), expires)
	if err != nil {
		return fmt.Errorf("postgres error saving pending state: %w", err)
	}
	return nil
}

// Load returns the live state of identity.
func (s *Store) Load(ctx context.Context, identity string) (*domain.PendingSlotState, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT state FROM %s
		WHERE identity = $1 AND (expires_at IS NULL OR expires_at > $2)
	`, s.ident()), identity, s.now()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoPendingCall
	}
	if err != nil {
		return nil, fmt.Errorf("postgres error loading pending state: %w", err)
	}

	var state domain.PendingSlotState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending state: %w", err)
	}
	return &state, nil
}

// Delete removes the row. A missing row is not an error.
func (s *Store) Delete(ctx context.Context, identity string) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE identity = $1`, s.ident()), identity); err != nil {
		return fmt.Errorf("postgres error deleting pending state: %w", err)
	}
	return nil
}

// List returns the identities with live pending state, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT identity FROM %s
		WHERE expires_at IS NULL OR expires_at > $1
		ORDER BY identity
	`, s.ident()), s.now())
	if err != nil {
		return nil, fmt.Errorf("postgres error listing pending state: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Sweep deletes expired rows and returns how many were removed.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= $1`, s.ident()), s.now())
	if err != nil {
		return 0, fmt.Errorf("postgres error sweeping pending state: %w", err)
	}
	return res.RowsAffected()
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
			_, _ = s.Sweep(ctx)
		}
	}
}
