package settings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations for the settings key-value table.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a settings Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// LoadAll returns every stored key/value pair. Keys with no row fall back
// to Defaults at the caller level.
func (s *Store) LoadAll(ctx context.Context) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64, len(allKeys))
	for rows.Next() {
		var key string
		var value float64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning setting row: %w", err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

// Set upserts one key's value. The caller is responsible for validating the
// key against the closed set before calling.
func (s *Store) Set(ctx context.Context, key string, value float64) error {
	query := `INSERT INTO settings (key, value) VALUES ($1, $2)
	ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := s.pool.Exec(ctx, query, key, value); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}
