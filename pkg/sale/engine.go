// Package sale scores the catalog against a discount publish: which meals a
// sale covers, and which customers each covered meal should be promoted to.
package sale

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/catalog"
	"github.com/ladleworks/pantry/pkg/embeddings"
	"github.com/ladleworks/pantry/pkg/eventstream"
	"github.com/ladleworks/pantry/pkg/vector/registry"
)

const (
	defaultCoverageThreshold = 0.5
	defaultTopN              = 5
)

// Config holds targeting defaults; staff can override both per publish.
type Config struct {
	// CoverageThreshold is the minimum coverage a meal needs to qualify
	// for audience targeting.
	CoverageThreshold float64

	// TopN is how many customers to retrieve per qualifying meal.
	TopN int
}

func (c Config) withDefaults() Config {
	if c.CoverageThreshold == 0 {
		c.CoverageThreshold = defaultCoverageThreshold
	}
	if c.TopN == 0 {
		c.TopN = defaultTopN
	}
	return c
}

// CoveredMeal is one meal ranked by sale coverage.
type CoveredMeal struct {
	MealID          string
	Name            string
	Coverage        float64
	IngredientCount int
}

// Engine computes sale coverage and audience targeting.
type Engine struct {
	config    Config
	store     catalog.Store
	registry  *registry.Registry
	embedder  embeddings.Embedder
	publisher eventstream.Publisher
	logger    *zap.Logger
}

// NewEngineOpts holds the collaborators the engine needs.
type NewEngineOpts struct {
	Config    Config
	Store     catalog.Store
	Registry  *registry.Registry
	Embedder  embeddings.Embedder
	Publisher eventstream.Publisher
	Logger    *zap.Logger
}

func NewEngine(opts NewEngineOpts) (*Engine, error) {
	if opts.Store == nil || opts.Registry == nil || opts.Embedder == nil {
		return nil, fmt.Errorf("engine requires store, registry and embedder")
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("engine requires a publisher")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Engine{
		config:    opts.Config.withDefaults(),
		store:     opts.Store,
		registry:  opts.Registry,
		embedder:  opts.Embedder,
		publisher: opts.Publisher,
		logger:    opts.Logger,
	}, nil
}

// Rank scores every meal against the current sale state. A meal's coverage is
// the fraction of its required ingredients carrying at least one on-sale shop
// item. Meals with zero required ingredients have undefined coverage and are
// excluded, as are meals the sale does not touch at all.
func (e *Engine) Rank(ctx context.Context) ([]CoveredMeal, error) {
	meals, err := e.store.ListMeals(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing meals: %w", err)
	}

	onSale := make(map[string]bool)

	var ranked []CoveredMeal
	for _, meal := range meals {
		if len(meal.Ingredients) == 0 {
			continue
		}

		covered := 0
		for _, mi := range meal.Ingredients {
			sale, ok := onSale[mi.IngredientID]
			if !ok {
				sale, err = e.ingredientOnSale(ctx, mi.IngredientID)
				if err != nil {
					return nil, err
				}
				onSale[mi.IngredientID] = sale
			}
			if sale {
				covered++
			}
		}

		if covered == 0 {
			continue
		}

		ranked = append(ranked, CoveredMeal{
			MealID:          meal.ID,
			Name:            meal.Name,
			Coverage:        float64(covered) / float64(len(meal.Ingredients)),
			IngredientCount: len(meal.Ingredients),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Coverage != ranked[j].Coverage {
			return ranked[i].Coverage > ranked[j].Coverage
		}
		// Favor richer recipes.
		if ranked[i].IngredientCount != ranked[j].IngredientCount {
			return ranked[i].IngredientCount > ranked[j].IngredientCount
		}
		return ranked[i].MealID < ranked[j].MealID
	})

	return ranked, nil
}

func (e *Engine) ingredientOnSale(ctx context.Context, ingredientID string) (bool, error) {
	items, err := e.store.ShopItemsByIngredient(ctx, ingredientID)
	if err != nil {
		return false, fmt.Errorf("listing shop items for %s: %w", ingredientID, err)
	}

	for _, item := range items {
		if item.OnSale() {
			return true, nil
		}
	}
	return false, nil
}

// Target retrieves the customers most similar to each qualifying meal's
// description embedding. Customers reached by several meals are deduplicated,
// keeping the highest similarity observed.
func (e *Engine) Target(ctx context.Context, ranked []CoveredMeal) ([]eventstream.TargetedCustomer, error) {
	best := make(map[string]eventstream.TargetedCustomer)

	for _, meal := range ranked {
		if meal.Coverage < e.config.CoverageThreshold {
			continue
		}

		record, err := e.store.GetMeal(ctx, meal.MealID)
		if err != nil {
			return nil, fmt.Errorf("loading meal %s: %w", meal.MealID, err)
		}

		embedding, err := e.embedder.Embed(ctx, record.Description)
		if err != nil {
			return nil, fmt.Errorf("embedding meal description: %w", err)
		}

		results, err := e.registry.Query(ctx, registry.CategoryUserSummary, embedding, e.config.TopN)
		if err != nil {
			return nil, fmt.Errorf("querying customer summaries: %w", err)
		}

		for _, r := range results {
			if prev, ok := best[r.ID]; ok && prev.Similarity >= r.Score {
				continue
			}
			best[r.ID] = eventstream.TargetedCustomer{
				CustomerID: r.ID,
				MealID:     meal.MealID,
				Similarity: r.Score,
			}
		}
	}

	audience := make([]eventstream.TargetedCustomer, 0, len(best))
	for _, tc := range best {
		audience = append(audience, tc)
	}
	sort.SliceStable(audience, func(i, j int) bool {
		if audience[i].Similarity != audience[j].Similarity {
			return audience[i].Similarity > audience[j].Similarity
		}
		return audience[i].CustomerID < audience[j].CustomerID
	})

	return audience, nil
}

// Publish ranks and targets the catalog for a discount snapshot, then emits
// the resulting sale targeting event.
func (e *Engine) Publish(ctx context.Context, snapshot *catalog.SaleSnapshot) (*eventstream.SaleTargetingEvent, error) {
	ranked, err := e.Rank(ctx)
	if err != nil {
		return nil, err
	}

	audience, err := e.Target(ctx, ranked)
	if err != nil {
		return nil, err
	}

	itemIDs := make([]string, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		itemIDs = append(itemIDs, item.ID)
	}

	meals := make([]eventstream.RankedMeal, 0, len(ranked))
	for _, m := range ranked {
		meals = append(meals, eventstream.RankedMeal{
			MealID:          m.MealID,
			Coverage:        m.Coverage,
			IngredientCount: m.IngredientCount,
		})
	}

	event := &eventstream.SaleTargetingEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeSaleTargeting,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		Snapshot: eventstream.SnapshotMeta{
			ShopItemIDs: itemIDs,
			AppliedAt:   snapshot.AppliedAt,
		},
		Meals:    meals,
		Audience: audience,
	}

	if err := e.publisher.PublishSaleTargeting(ctx, event); err != nil {
		return nil, fmt.Errorf("publishing sale targeting event: %w", err)
	}

	e.logger.Info("sale targeting published",
		zap.String("event_id", event.EventID),
		zap.Int("meals", len(meals)),
		zap.Int("audience", len(audience)),
	)

	return event, nil
}
