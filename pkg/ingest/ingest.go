// Package ingest writes catalog entities and their embeddings in the order
// the engine depends on: the catalog write commits first, then the embedding
// is generated and upserted. A query can therefore never retrieve an entity
// id whose catalog record does not exist yet.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/catalog"
	"github.com/ladleworks/pantry/pkg/embeddings"
	"github.com/ladleworks/pantry/pkg/vector/registry"
)

// Ingestor performs synchronous catalog-then-index ingestion. Re-ingesting
// unchanged content is idempotent: the same embedding lands under the same id
// and index sizes do not grow.
type Ingestor struct {
	store    catalog.Store
	registry *registry.Registry
	embedder embeddings.Embedder
	logger   *zap.Logger
}

// NewIngestorOpts holds the collaborators an ingestor needs.
type NewIngestorOpts struct {
	Store    catalog.Store
	Registry *registry.Registry
	Embedder embeddings.Embedder
	Logger   *zap.Logger
}

func NewIngestor(opts NewIngestorOpts) (*Ingestor, error) {
	if opts.Store == nil || opts.Registry == nil || opts.Embedder == nil {
		return nil, fmt.Errorf("ingestor requires store, registry and embedder")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Ingestor{
		store:    opts.Store,
		registry: opts.Registry,
		embedder: opts.Embedder,
		logger:   opts.Logger,
	}, nil
}

// IngestMeal stores a meal and indexes its description and instructions.
func (i *Ingestor) IngestMeal(ctx context.Context, meal *catalog.Meal) error {
	if err := i.store.PutMeal(ctx, meal); err != nil {
		return fmt.Errorf("storing meal: %w", err)
	}

	if err := i.index(ctx, registry.CategoryMealDescription, meal.ID, meal.Description); err != nil {
		return err
	}
	if err := i.index(ctx, registry.CategoryMealInstructions, meal.ID, meal.Instructions); err != nil {
		return err
	}

	i.logger.Debug("meal ingested", zap.String("meal_id", meal.ID))
	return nil
}

// IngestIngredient stores an ingredient and indexes its description, falling
// back to its name when no description exists.
func (i *Ingestor) IngestIngredient(ctx context.Context, ing *catalog.Ingredient) error {
	if err := i.store.PutIngredient(ctx, ing); err != nil {
		return fmt.Errorf("storing ingredient: %w", err)
	}

	text := ing.Description
	if strings.TrimSpace(text) == "" {
		text = ing.Name
	}

	if err := i.index(ctx, registry.CategoryIngredient, ing.ID, text); err != nil {
		return err
	}

	i.logger.Debug("ingredient ingested", zap.String("ingredient_id", ing.ID))
	return nil
}

// IngestCustomer stores a customer and indexes their purchase summary.
func (i *Ingestor) IngestCustomer(ctx context.Context, customer *catalog.Customer) error {
	if err := i.store.PutCustomer(ctx, customer); err != nil {
		return fmt.Errorf("storing customer: %w", err)
	}

	if err := i.index(ctx, registry.CategoryUserSummary, customer.ID, customer.Summary); err != nil {
		return err
	}

	i.logger.Debug("customer ingested", zap.String("customer_id", customer.ID))
	return nil
}

func (i *Ingestor) index(ctx context.Context, cat registry.Category, id, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	embedding, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding %s/%s: %w", cat, id, err)
	}

	if err := i.registry.Upsert(ctx, cat, id, embedding); err != nil {
		return fmt.Errorf("indexing %s/%s: %w", cat, id, err)
	}

	return nil
}
