package supervisor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no worker secret row matches a model.
var ErrNotFound = errors.New("worker secret not found")

const workerColumns = "model_id, container_id, uid, api_key, max_slots, hostname, created_at"

// Store persists worker secrets: the per-worker key, UID, and slot count
// created atomically with the container, outliving the in-memory gate so
// restarts can reconstruct it.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanWorker(row pgx.Row) (Worker, error) {
	var w Worker
	err := row.Scan(&w.ModelID, &w.ContainerID, &w.UID, &w.APIKey, &w.MaxSlots, &w.Hostname, &w.CreatedAt)
	return w, err
}

// generateAPIKey creates a 128-bit random hex key, injected into the
// worker's environment and presented on every proxied request.
func generateAPIKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating worker secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Create inserts a new worker secret row. Called atomically with container
// creation: if the container create fails, the caller must roll this back.
func (s *Store) Create(ctx context.Context, modelID uuid.UUID, containerID string, uid int, maxSlots int, hostname string) (Worker, error) {
	apiKey, err := generateAPIKey()
	if err != nil {
		return Worker{}, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO worker_secrets (model_id, container_id, uid, api_key, max_slots, hostname, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		RETURNING `+workerColumns,
		modelID, containerID, uid, apiKey, maxSlots, hostname)
	return scanWorker(row)
}

// GetByModel returns the worker secret for modelID.
func (s *Store) GetByModel(ctx context.Context, modelID uuid.UUID) (Worker, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+workerColumns+` FROM worker_secrets WHERE model_id = $1`, modelID)
	w, err := scanWorker(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Worker{}, ErrNotFound
	}
	return w, err
}

// AllocatedUIDs returns every UID currently on record, used to avoid
// collisions when allocating a new one.
func (s *Store) AllocatedUIDs(ctx context.Context) (map[int]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT uid FROM worker_secrets`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	taken := map[int]bool{}
	for rows.Next() {
		var uid int
		if err := rows.Scan(&uid); err != nil {
			return nil, err
		}
		taken[uid] = true
	}
	return taken, rows.Err()
}

// List returns every worker secret row, for supervisor recovery on
// startup and the admin container listing.
func (s *Store) List(ctx context.Context) ([]Worker, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+workerColumns+` FROM worker_secrets ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Worker
	for rows.Next() {
		w, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// Delete removes the worker secret row for modelID, called once its
// container is removed.
func (s *Store) Delete(ctx context.Context, modelID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM worker_secrets WHERE model_id = $1`, modelID)
	return err
}
