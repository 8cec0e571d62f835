package model

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const modelColumns = `id, repo_ref, filename, size_bytes, category_id, load_state, context_length`

// Store provides database operations for models and categories.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a model Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func scanModel(row pgx.Row) (Model, error) {
	var m Model
	err := row.Scan(&m.ID, &m.RepoRef, &m.Filename, &m.SizeBytes, &m.CategoryID, &m.LoadState, &m.ContextLength)
	return m, err
}

// List returns every model in the catalog.
func (s *Store) List(ctx context.Context) ([]Model, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+modelColumns+` FROM models ORDER BY repo_ref`)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}
	defer rows.Close()

	var items []Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning model row: %w", err)
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// GetByID returns the model with the given id.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (Model, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+modelColumns+` FROM models WHERE id = $1`, id)
	return scanModel(row)
}

// GetByRepoRef returns the model whose repo_ref matches exactly.
func (s *Store) GetByRepoRef(ctx context.Context, repoRef string) (Model, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+modelColumns+` FROM models WHERE repo_ref = $1`, repoRef)
	return scanModel(row)
}

// ListByCategory returns every model belonging to categoryID.
func (s *Store) ListByCategory(ctx context.Context, categoryID uuid.UUID) ([]Model, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+modelColumns+` FROM models WHERE category_id = $1 ORDER BY repo_ref`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("listing models by category: %w", err)
	}
	defer rows.Close()

	var items []Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning model row: %w", err)
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

// SetLoadState updates a model's load state. Called only by the supervisor.
func (s *Store) SetLoadState(ctx context.Context, id uuid.UUID, state LoadState) error {
	tag, err := s.pool.Exec(ctx, `UPDATE models SET load_state = $1 WHERE id = $2`, state, id)
	if err != nil {
		return fmt.Errorf("updating model load state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

const categoryColumns = `id, name, description, preferred_model_id`

func scanCategory(row pgx.Row) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.PreferredModelID)
	return c, err
}

// GetCategoryByID returns the category with the given id.
func (s *Store) GetCategoryByID(ctx context.Context, id uuid.UUID) (Category, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id)
	return scanCategory(row)
}

// GetCategoryByName returns the category whose name matches exactly.
func (s *Store) GetCategoryByName(ctx context.Context, name string) (Category, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE name = $1`, name)
	return scanCategory(row)
}

// ListCategories returns every category.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var items []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning category row: %w", err)
		}
		items = append(items, c)
	}
	return items, rows.Err()
}
