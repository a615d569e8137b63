// Package registry owns one vector index per semantic category and exposes
// category-scoped operations over them.
//
// The four categories mirror what the recommendation engine searches over:
// ingredient descriptions, meal descriptions, meal instructions, and customer
// summary texts. Operations on distinct categories never interfere; each
// category delegates to its own index, which guarantees per-id atomic
// upserts.
package registry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/vector"
)

// Category identifies one semantic vector index.
type Category string

const (
	CategoryIngredient       Category = "ingredient"
	CategoryMealDescription  Category = "meal_description"
	CategoryMealInstructions Category = "meal_instructions"
	CategoryUserSummary      Category = "user_summary"
)

// Categories returns all categories the registry manages, in a stable order.
func Categories() []Category {
	return []Category{
		CategoryIngredient,
		CategoryMealDescription,
		CategoryMealInstructions,
		CategoryUserSummary,
	}
}

// UnknownCategoryError is returned for operations on a category the registry
// does not manage.
type UnknownCategoryError struct {
	Category Category
}

func (e UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown index category: %q", e.Category)
}

// Registry holds one vector.Index per category.
type Registry struct {
	indexes map[Category]vector.Index
	logger  *zap.Logger
}

// New creates a registry over the given indexes. All four categories must be
// present.
func New(indexes map[Category]vector.Index, logger *zap.Logger) (*Registry, error) {
	for _, cat := range Categories() {
		if indexes[cat] == nil {
			return nil, fmt.Errorf("missing index for category %q", cat)
		}
	}

	return &Registry{
		indexes: indexes,
		logger:  logger,
	}, nil
}

func (r *Registry) index(cat Category) (vector.Index, error) {
	idx, ok := r.indexes[cat]
	if !ok {
		return nil, UnknownCategoryError{Category: cat}
	}
	return idx, nil
}

// Upsert stores an embedding for an entity in the given category. A failed
// upsert leaves the prior entry for that id untouched.
func (r *Registry) Upsert(ctx context.Context, cat Category, id string, embedding []float32) error {
	idx, err := r.index(cat)
	if err != nil {
		return err
	}

	if err := idx.Upsert(ctx, id, embedding); err != nil {
		return fmt.Errorf("upserting %s into %s: %w", id, cat, err)
	}

	r.logger.Debug("registry upsert",
		zap.String("category", string(cat)),
		zap.String("id", id),
	)

	return nil
}

// Remove deletes an entity's embedding from the given category.
func (r *Registry) Remove(ctx context.Context, cat Category, id string) error {
	idx, err := r.index(cat)
	if err != nil {
		return err
	}

	return idx.Remove(ctx, id)
}

// Query searches the given category for the k nearest entries.
func (r *Registry) Query(ctx context.Context, cat Category, embedding []float32, k int) ([]vector.Result, error) {
	idx, err := r.index(cat)
	if err != nil {
		return nil, err
	}

	return idx.Query(ctx, embedding, k)
}

// Size returns the number of entries in the given category.
func (r *Registry) Size(ctx context.Context, cat Category) (int, error) {
	idx, err := r.index(cat)
	if err != nil {
		return 0, err
	}

	return idx.Size(ctx)
}

// Close closes every index, returning the first error encountered.
func (r *Registry) Close() error {
	var firstErr error
	for _, cat := range Categories() {
		if err := r.indexes[cat].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
