package token

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const tokenColumns = `id, owner_id, token_hash, key_prefix, description, category_id, model_id, internal, meta, revoked, last_used_at, expires_at, created_at`

// Store provides database operations for tokens.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a token Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// CreateParams holds parameters for creating a token.
type CreateParams struct {
	OwnerID     uuid.UUID
	TokenHash   string
	KeyPrefix   string
	Description string
	CategoryID  *uuid.UUID
	ModelID     *uuid.UUID
	Internal    bool
	Meta        bool
	ExpiresAt   pgtype.Timestamptz
}

func scanRow(row pgx.Row) (Row, error) {
	var r Row
	err := row.Scan(
		&r.ID, &r.OwnerID, &r.TokenHash, &r.KeyPrefix, &r.Description,
		&r.CategoryID, &r.ModelID, &r.Internal, &r.Meta, &r.Revoked, &r.LastUsedAt, &r.ExpiresAt, &r.CreatedAt,
	)
	return r, err
}

func scanRows(rows pgx.Rows) ([]Row, error) {
	defer rows.Close()
	var items []Row
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning token row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating token rows: %w", err)
	}
	return items, nil
}

// ListByOwner returns all tokens owned by ownerID, revoked ones included.
func (s *Store) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Row, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE owner_id = $1 ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing tokens: %w", err)
	}
	return scanRows(rows)
}

// Create inserts a new token row and returns it.
func (s *Store) Create(ctx context.Context, p CreateParams) (Row, error) {
	query := `INSERT INTO tokens (owner_id, token_hash, key_prefix, description, category_id, model_id, internal, meta, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING ` + tokenColumns

	row := s.pool.QueryRow(ctx, query,
		p.OwnerID, p.TokenHash, p.KeyPrefix, p.Description, p.CategoryID, p.ModelID, p.Internal, p.Meta, p.ExpiresAt,
	)
	return scanRow(row)
}

// FindByHash looks up a token by its hash, used on every authenticated request.
// Revoked and expired rows are returned too; the caller checks usability.
func (s *Store) FindByHash(ctx context.Context, tokenHash string) (Row, error) {
	query := `SELECT ` + tokenColumns + ` FROM tokens WHERE token_hash = $1`
	row := s.pool.QueryRow(ctx, query, tokenHash)
	return scanRow(row)
}

// TouchLastUsed updates last_used_at to now. Best-effort: called off the hot
// path's error return so a failure here never fails the request it serves.
func (s *Store) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE tokens SET last_used_at = now() WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("touching token last_used_at: %w", err)
	}
	return nil
}

// Revoke marks a token revoked without deleting it, preserving the row for
// usage-record referential integrity.
func (s *Store) Revoke(ctx context.Context, id, ownerID uuid.UUID) error {
	query := `UPDATE tokens SET revoked = true WHERE id = $1 AND owner_id = $2`
	tag, err := s.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete soft-deletes by revoking; tokens are never hard-deleted because
// usage records reference them.
func (s *Store) Delete(ctx context.Context, id, ownerID uuid.UUID) error {
	return s.Revoke(ctx, id, ownerID)
}
