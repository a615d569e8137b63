package sale_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/catalog"
	"github.com/ladleworks/pantry/pkg/catalog/inmemory"
	"github.com/ladleworks/pantry/pkg/eventstream"
	"github.com/ladleworks/pantry/pkg/sale"
	"github.com/ladleworks/pantry/pkg/vector"
	"github.com/ladleworks/pantry/pkg/vector/flat"
	"github.com/ladleworks/pantry/pkg/vector/registry"
)

type stubEmbedder struct {
	known map[string][]float32
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if v, ok := s.known[text]; ok {
		return v, nil
	}
	return []float32{0, 1}, nil
}

func (s *stubEmbedder) Close() error { return nil }

// capturePublisher records the last published event.
type capturePublisher struct {
	last *eventstream.SaleTargetingEvent
}

func (c *capturePublisher) PublishSaleTargeting(_ context.Context, event *eventstream.SaleTargetingEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	c.last = event
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func newTestRegistry() *registry.Registry {
	indexes := make(map[registry.Category]vector.Index)
	for _, cat := range registry.Categories() {
		idx, err := flat.NewIndex(flat.Config{Dimensions: 2}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		indexes[cat] = idx
	}

	reg, err := registry.New(indexes, zap.NewNop())
	Expect(err).NotTo(HaveOccurred())
	return reg
}

var _ = Describe("Engine", func() {
	var (
		ctx       context.Context
		store     catalog.Store
		reg       *registry.Registry
		publisher *capturePublisher
		engine    *sale.Engine
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewStore()
		reg = newTestRegistry()
		publisher = &capturePublisher{}

		for _, id := range []string{"ing-a", "ing-b", "ing-c", "ing-d"} {
			Expect(store.PutIngredient(ctx, &catalog.Ingredient{ID: id, Name: id})).To(Succeed())
		}

		// Only ingredients a and d carry on-sale shop items.
		Expect(store.PutShopItem(ctx, &catalog.ShopItem{ID: "item-a", IngredientID: "ing-a", Price: 2, Discount: 0.2})).To(Succeed())
		Expect(store.PutShopItem(ctx, &catalog.ShopItem{ID: "item-b", IngredientID: "ing-b", Price: 3})).To(Succeed())
		Expect(store.PutShopItem(ctx, &catalog.ShopItem{ID: "item-c", IngredientID: "ing-c", Price: 4})).To(Succeed())
		Expect(store.PutShopItem(ctx, &catalog.ShopItem{ID: "item-d", IngredientID: "ing-d", Price: 5, Discount: 0.3})).To(Succeed())

		Expect(store.PutMeal(ctx, &catalog.Meal{
			ID: "meal-third", Name: "Stew", Description: "hearty stew",
			Ingredients: []catalog.MealIngredient{
				{IngredientID: "ing-a", Quantity: 1},
				{IngredientID: "ing-b", Quantity: 1},
				{IngredientID: "ing-c", Quantity: 1},
			},
		})).To(Succeed())
		Expect(store.PutMeal(ctx, &catalog.Meal{
			ID: "meal-single", Name: "Garlic Bread", Description: "garlic bread",
			Ingredients: []catalog.MealIngredient{{IngredientID: "ing-a", Quantity: 1}},
		})).To(Succeed())
		Expect(store.PutMeal(ctx, &catalog.Meal{
			ID: "meal-rich", Name: "Platter", Description: "sharing platter",
			Ingredients: []catalog.MealIngredient{
				{IngredientID: "ing-a", Quantity: 1},
				{IngredientID: "ing-d", Quantity: 1},
			},
		})).To(Succeed())
		Expect(store.PutMeal(ctx, &catalog.Meal{ID: "meal-bare", Name: "Water", Description: "just water"})).To(Succeed())
		Expect(store.PutMeal(ctx, &catalog.Meal{
			ID: "meal-untouched", Name: "Salad", Description: "green salad",
			Ingredients: []catalog.MealIngredient{{IngredientID: "ing-b", Quantity: 1}},
		})).To(Succeed())

		var err error
		engine, err = sale.NewEngine(sale.NewEngineOpts{
			Config:   sale.Config{CoverageThreshold: 0.5, TopN: 5},
			Store:    store,
			Registry: reg,
			Embedder: &stubEmbedder{known: map[string][]float32{
				"garlic bread":    {1, 0},
				"sharing platter": {0, 1},
			}},
			Publisher: publisher,
			Logger:    zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Rank", func() {
		It("computes one third coverage when one of three ingredients is on sale", func() {
			ranked, err := engine.Rank(ctx)
			Expect(err).NotTo(HaveOccurred())

			var stew *sale.CoveredMeal
			for i := range ranked {
				if ranked[i].MealID == "meal-third" {
					stew = &ranked[i]
				}
			}
			Expect(stew).NotTo(BeNil())
			Expect(stew.Coverage).To(BeNumerically("~", 1.0/3.0, 1e-9))
		})

		It("excludes meals with zero required ingredients", func() {
			ranked, err := engine.Rank(ctx)
			Expect(err).NotTo(HaveOccurred())
			for _, m := range ranked {
				Expect(m.MealID).NotTo(Equal("meal-bare"))
			}
		})

		It("excludes meals the sale does not touch", func() {
			ranked, err := engine.Rank(ctx)
			Expect(err).NotTo(HaveOccurred())
			for _, m := range ranked {
				Expect(m.MealID).NotTo(Equal("meal-untouched"))
			}
		})

		It("breaks coverage ties by ingredient count, favoring richer recipes", func() {
			ranked, err := engine.Rank(ctx)
			Expect(err).NotTo(HaveOccurred())

			// Both fully covered, but the platter requires two ingredients.
			Expect(ranked[0].MealID).To(Equal("meal-rich"))
			Expect(ranked[1].MealID).To(Equal("meal-single"))
			Expect(ranked[2].MealID).To(Equal("meal-third"))
		})
	})

	Describe("Target", func() {
		BeforeEach(func() {
			Expect(reg.Upsert(ctx, registry.CategoryUserSummary, "cust-garlic", []float32{1, 0})).To(Succeed())
			Expect(reg.Upsert(ctx, registry.CategoryUserSummary, "cust-platter", []float32{0, 1})).To(Succeed())
		})

		It("skips meals below the coverage threshold", func() {
			ranked, err := engine.Rank(ctx)
			Expect(err).NotTo(HaveOccurred())

			audience, err := engine.Target(ctx, ranked)
			Expect(err).NotTo(HaveOccurred())

			// meal-third (1/3) must not have driven any targeting on its own;
			// every audience entry points at a qualifying meal.
			for _, tc := range audience {
				Expect(tc.MealID).NotTo(Equal("meal-third"))
			}
		})

		It("deduplicates customers keeping the highest similarity", func() {
			ranked, err := engine.Rank(ctx)
			Expect(err).NotTo(HaveOccurred())

			audience, err := engine.Target(ctx, ranked)
			Expect(err).NotTo(HaveOccurred())

			seen := make(map[string]int)
			for _, tc := range audience {
				seen[tc.CustomerID]++
			}
			for id, n := range seen {
				Expect(n).To(Equal(1), "customer %s targeted more than once", id)
			}

			// cust-garlic matches garlic bread exactly despite also being
			// retrieved for the platter.
			for _, tc := range audience {
				if tc.CustomerID == "cust-garlic" {
					Expect(tc.MealID).To(Equal("meal-single"))
					Expect(tc.Similarity).To(BeNumerically("~", 1.0, 1e-6))
				}
			}
		})
	})

	Describe("Publish", func() {
		It("emits a versioned event carrying ranking and audience", func() {
			Expect(reg.Upsert(ctx, registry.CategoryUserSummary, "cust-garlic", []float32{1, 0})).To(Succeed())

			snapshot := &catalog.SaleSnapshot{
				Items:     []*catalog.ShopItem{{ID: "item-a", IngredientID: "ing-a", Price: 2, Discount: 0.2}},
				AppliedAt: time.Now(),
			}

			event, err := engine.Publish(ctx, snapshot)
			Expect(err).NotTo(HaveOccurred())
			Expect(event.EventID).NotTo(BeEmpty())
			Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
			Expect(event.Snapshot.ShopItemIDs).To(Equal([]string{"item-a"}))
			Expect(event.Meals).NotTo(BeEmpty())
			Expect(event.Audience).NotTo(BeEmpty())

			Expect(publisher.last).To(Equal(event))
		})
	})
})
