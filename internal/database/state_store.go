package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createStateTable = `
CREATE TABLE IF NOT EXISTS route_state (
	key        TEXT PRIMARY KEY,
	data       BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// StateStore keeps persisted component state in PostgreSQL. It satisfies
// persist.Store.
type StateStore struct {
	pool *pgxpool.Pool
}

// NewStateStore creates the route_state table if needed.
func NewStateStore(ctx context.Context, pool *pgxpool.Pool) (*StateStore, error) {
	if _, err := pool.Exec(ctx, createStateTable); err != nil {
		return nil, fmt.Errorf("create route_state table: %w", err)
	}
	return &StateStore{pool: pool}, nil
}

// Load returns the stored blob for key.
func (s *StateStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM route_state WHERE key = $1`, key,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load state %s: %w", key, err)
	}
	return data, true, nil
}

// Save upserts the blob for key.
func (s *StateStore) Save(ctx context.Context, key string, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO route_state (key, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`, key, data)
	if err != nil {
		return fmt.Errorf("save state %s: %w", key, err)
	}
	return nil
}

// Delete removes the row for key.
func (s *StateStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM route_state WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete state %s: %w", key, err)
	}
	return nil
}
