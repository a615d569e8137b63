package worker

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/catalog"
	"github.com/ladleworks/pantry/pkg/catalog/inmemory"
	"github.com/ladleworks/pantry/pkg/vector"
	"github.com/ladleworks/pantry/pkg/vector/flat"
	"github.com/ladleworks/pantry/pkg/vector/registry"
)

// stubEmbedder maps known texts to fixed unit vectors and everything else to
// a default axis.
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

var _ = Describe("Worker Pool", func() {
	var (
		pool  *Pool
		store *inmemory.Store
		reg   *registry.Registry
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewStore()
		reg = newTestRegistry()

		var err error
		pool, err = NewPool(&Config{
			Store:    store,
			Registry: reg,
			Embedder: &stubEmbedder{known: map[string][]float32{
				"creamy pasta": {1, 0},
			}},
			Logger: zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			ok := pool.Enqueue(Job{
				Kind:     JobIndex,
				Category: registry.CategoryMealDescription,
				EntityID: "meal-1",
				Text:     "creamy pasta",
			})
			Expect(ok).To(BeTrue())
			pool.Close()
		})
	})

	Describe("index jobs", func() {
		It("embeds and upserts after draining", func() {
			pool.Enqueue(Job{
				Kind:     JobIndex,
				Category: registry.CategoryMealDescription,
				EntityID: "meal-1",
				Text:     "creamy pasta",
			})
			pool.Close()

			results, err := reg.Query(ctx, registry.CategoryMealDescription, []float32{1, 0}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("meal-1"))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 1e-6))
		})

		It("skips entities with no text", func() {
			pool.Enqueue(Job{
				Kind:     JobIndex,
				Category: registry.CategoryIngredient,
				EntityID: "ing-1",
				Text:     "   ",
			})
			pool.Close()

			size, err := reg.Size(ctx, registry.CategoryIngredient)
			Expect(err).NotTo(HaveOccurred())
			Expect(size).To(BeZero())
		})
	})

	Describe("summary jobs", func() {
		BeforeEach(func() {
			Expect(store.PutCustomer(ctx, &catalog.Customer{ID: "cust-1", Name: "Robin"})).To(Succeed())
			Expect(store.PutMeal(ctx, &catalog.Meal{ID: "meal-1", Name: "Carbonara"})).To(Succeed())
			Expect(store.PutMeal(ctx, &catalog.Meal{ID: "meal-2", Name: "Fried Rice"})).To(Succeed())
			Expect(store.WritePurchasesAtomic(ctx, []*catalog.Purchase{
				{ID: "pur-1", CustomerID: "cust-1", MealID: "meal-1", Quantity: 2, UnitPrice: 9, Timestamp: time.Now()},
				{ID: "pur-2", CustomerID: "cust-1", MealID: "meal-2", Quantity: 1, UnitPrice: 7, Timestamp: time.Now().Add(time.Second)},
				{ID: "pur-3", CustomerID: "cust-1", MealID: "meal-1", Quantity: 1, UnitPrice: 9, Timestamp: time.Now().Add(2 * time.Second)},
			})).To(Succeed())
		})

		It("rebuilds the summary and indexes it", func() {
			pool.Enqueue(Job{Kind: JobSummary, CustomerID: "cust-1"})
			pool.Close()

			customer, err := store.GetCustomer(ctx, "cust-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(customer.Summary).To(Equal("Frequently purchased meals: Carbonara x3, Fried Rice x1"))

			size, err := reg.Size(ctx, registry.CategoryUserSummary)
			Expect(err).NotTo(HaveOccurred())
			Expect(size).To(Equal(1))
		})

		It("leaves the catalog untouched when the summary has not changed", func() {
			pool.Enqueue(Job{Kind: JobSummary, CustomerID: "cust-1"})
			pool.Close()

			before, err := store.GetCustomer(ctx, "cust-1")
			Expect(err).NotTo(HaveOccurred())

			again, err := NewPool(&Config{
				Store:    store,
				Registry: reg,
				Embedder: &stubEmbedder{},
				Logger:   zap.NewNop(),
			})
			Expect(err).NotTo(HaveOccurred())
			again.Enqueue(Job{Kind: JobSummary, CustomerID: "cust-1"})
			again.Close()

			after, err := store.GetCustomer(ctx, "cust-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(after.Summary).To(Equal(before.Summary))
		})
	})
})
