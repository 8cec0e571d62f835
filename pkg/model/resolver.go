package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sovereignengine/gateway/internal/principal"
	"github.com/sovereignengine/gateway/internal/sovereignerr"
)

// Resolver turns a principal, its token binding, and the request's model
// field into one concrete, loaded model.
type Resolver struct {
	store *Store
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve runs the strict 4-step resolution chain, first match wins:
//  1. token bound to a specific model
//  2. token bound to a category
//  3. requestModel interpreted as model id, then repo ref, then category name
//  4. ModelNotFound
func (r *Resolver) Resolve(ctx context.Context, p principal.Principal, requestModel string) (Model, error) {
	if p.ModelID != nil {
		return r.resolveSpecificModel(ctx, *p.ModelID)
	}

	if p.CategoryID != nil {
		return r.resolveCategory(ctx, *p.CategoryID)
	}

	if requestModel == "" {
		return Model{}, sovereignerr.New(sovereignerr.NotFound, "model field is required")
	}

	if id, err := uuid.Parse(requestModel); err == nil {
		if m, merr := r.store.GetByID(ctx, id); merr == nil {
			if !m.Loaded() {
				return Model{}, sovereignerr.New(sovereignerr.Unavailable, "requested model is not loaded")
			}
			return m, nil
		}
	}

	if m, err := r.store.GetByRepoRef(ctx, requestModel); err == nil {
		if !m.Loaded() {
			return Model{}, sovereignerr.New(sovereignerr.Unavailable, "requested model is not loaded")
		}
		return m, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Model{}, fmt.Errorf("resolving by repo ref: %w", err)
	}

	if cat, err := r.store.GetCategoryByName(ctx, requestModel); err == nil {
		return r.resolveCategory(ctx, cat.ID)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return Model{}, fmt.Errorf("resolving by category name: %w", err)
	}

	return Model{}, sovereignerr.New(sovereignerr.NotFound, "no model matches the requested identifier")
}

func (r *Resolver) resolveSpecificModel(ctx context.Context, id uuid.UUID) (Model, error) {
	m, err := r.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Model{}, sovereignerr.New(sovereignerr.NotFound, "bound model does not exist")
		}
		return Model{}, fmt.Errorf("loading bound model: %w", err)
	}
	if !m.Loaded() {
		return Model{}, sovereignerr.New(sovereignerr.Unavailable, "bound model is not loaded")
	}
	return m, nil
}

// resolveCategory enforces token-scope isolation: once a category is
// selected, failure to find a loaded model in it never falls through to
// later resolution steps.
func (r *Resolver) resolveCategory(ctx context.Context, categoryID uuid.UUID) (Model, error) {
	cat, err := r.store.GetCategoryByID(ctx, categoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Model{}, sovereignerr.New(sovereignerr.Unavailable, "bound category does not exist")
		}
		return Model{}, fmt.Errorf("loading bound category: %w", err)
	}

	models, err := r.store.ListByCategory(ctx, categoryID)
	if err != nil {
		return Model{}, fmt.Errorf("listing category models: %w", err)
	}

	if cat.PreferredModelID != nil {
		for _, m := range models {
			if m.ID == *cat.PreferredModelID && m.Loaded() {
				return m, nil
			}
		}
	}

	for _, m := range models {
		if m.Loaded() {
			return m, nil
		}
	}

	return Model{}, sovereignerr.New(sovereignerr.Unavailable, "category has no loaded models")
}
