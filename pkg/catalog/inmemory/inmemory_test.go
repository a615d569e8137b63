package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ladleworks/pantry/pkg/catalog"
	"github.com/ladleworks/pantry/pkg/catalog/inmemory"
)

var _ = Describe("Store", func() {
	var (
		ctx   context.Context
		store *inmemory.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewStore()
	})

	Describe("Meals", func() {
		It("round-trips a meal", func() {
			meal := &catalog.Meal{
				ID:   "m1",
				Name: "Carbonara",
				Ingredients: []catalog.MealIngredient{
					{IngredientID: "i-egg", Quantity: 2},
					{IngredientID: "i-pasta", Quantity: 1},
				},
			}
			Expect(store.PutMeal(ctx, meal)).To(Succeed())

			got, err := store.GetMeal(ctx, "m1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("Carbonara"))
			Expect(got.Ingredients).To(HaveLen(2))
		})

		It("returns NotFoundError for a missing meal", func() {
			_, err := store.GetMeal(ctx, "missing")
			Expect(err).To(BeAssignableToTypeOf(catalog.NotFoundError{}))
		})

		It("maintains the ingredient back index", func() {
			Expect(store.PutMeal(ctx, &catalog.Meal{
				ID:          "m1",
				Name:        "Carbonara",
				Ingredients: []catalog.MealIngredient{{IngredientID: "i-egg", Quantity: 2}},
			})).To(Succeed())
			Expect(store.PutMeal(ctx, &catalog.Meal{
				ID:          "m2",
				Name:        "Omelette",
				Ingredients: []catalog.MealIngredient{{IngredientID: "i-egg", Quantity: 3}},
			})).To(Succeed())

			ids, err := store.MealsByIngredient(ctx, "i-egg")
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]string{"m1", "m2"}))
		})

		It("drops stale back-index entries when a meal changes", func() {
			Expect(store.PutMeal(ctx, &catalog.Meal{
				ID:          "m1",
				Name:        "Carbonara",
				Ingredients: []catalog.MealIngredient{{IngredientID: "i-egg", Quantity: 2}},
			})).To(Succeed())
			Expect(store.PutMeal(ctx, &catalog.Meal{
				ID:          "m1",
				Name:        "Carbonara",
				Ingredients: []catalog.MealIngredient{{IngredientID: "i-tofu", Quantity: 1}},
			})).To(Succeed())

			ids, err := store.MealsByIngredient(ctx, "i-egg")
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(BeEmpty())

			ids, err = store.MealsByIngredient(ctx, "i-tofu")
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(Equal([]string{"m1"}))
		})
	})

	Describe("ShopItems", func() {
		BeforeEach(func() {
			Expect(store.PutIngredient(ctx, &catalog.Ingredient{ID: "i-egg", Name: "Egg"})).To(Succeed())
		})

		It("rejects an item referencing an unknown ingredient", func() {
			err := store.PutShopItem(ctx, &catalog.ShopItem{ID: "s1", IngredientID: "nope", Price: 2})
			Expect(err).To(BeAssignableToTypeOf(catalog.ConstraintError{}))
		})

		It("derives sale status from the discount", func() {
			Expect(store.PutShopItem(ctx, &catalog.ShopItem{ID: "s1", IngredientID: "i-egg", Price: 2})).To(Succeed())

			item, err := store.GetShopItem(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(item.OnSale()).To(BeFalse())

			item.Discount = 25
			Expect(item.OnSale()).To(BeTrue())
		})

		It("finds items by ingredient", func() {
			Expect(store.PutShopItem(ctx, &catalog.ShopItem{ID: "s1", IngredientID: "i-egg", Price: 2})).To(Succeed())
			Expect(store.PutShopItem(ctx, &catalog.ShopItem{ID: "s2", IngredientID: "i-egg", Price: 3})).To(Succeed())

			items, err := store.ShopItemsByIngredient(ctx, "i-egg")
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(2))
			Expect(items[0].ID).To(Equal("s1"))
		})
	})

	Describe("ApplyDiscounts", func() {
		BeforeEach(func() {
			Expect(store.PutIngredient(ctx, &catalog.Ingredient{ID: "i-egg", Name: "Egg"})).To(Succeed())
			Expect(store.PutShopItem(ctx, &catalog.ShopItem{ID: "s1", IngredientID: "i-egg", Price: 2})).To(Succeed())
			Expect(store.PutShopItem(ctx, &catalog.ShopItem{ID: "s2", IngredientID: "i-egg", Price: 3, Discount: 10})).To(Succeed())
		})

		It("collects only items newly transitioning to on-sale", func() {
			snapshot, err := store.ApplyDiscounts(ctx, []catalog.DiscountChange{
				{ShopItemID: "s1", Discount: 20},
				{ShopItemID: "s2", Discount: 30},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(snapshot.Items).To(HaveLen(1))
			Expect(snapshot.Items[0].ID).To(Equal("s1"))
		})

		It("fails the whole batch on an unknown id without partial state", func() {
			_, err := store.ApplyDiscounts(ctx, []catalog.DiscountChange{
				{ShopItemID: "s1", Discount: 20},
				{ShopItemID: "missing", Discount: 30},
			})
			Expect(err).To(BeAssignableToTypeOf(catalog.NotFoundError{}))

			item, err := store.GetShopItem(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(item.Discount).To(BeZero())
		})
	})

	Describe("WritePurchasesAtomic", func() {
		BeforeEach(func() {
			Expect(store.PutCustomer(ctx, &catalog.Customer{ID: "c1", Name: "Alex"})).To(Succeed())
			Expect(store.PutMeal(ctx, &catalog.Meal{ID: "m1", Name: "Carbonara"})).To(Succeed())
		})

		It("writes all rows on success", func() {
			now := time.Now()
			Expect(store.WritePurchasesAtomic(ctx, []*catalog.Purchase{
				{ID: "p1", CustomerID: "c1", MealID: "m1", Quantity: 1, Timestamp: now},
				{ID: "p2", CustomerID: "c1", MealID: "m1", Quantity: 2, Timestamp: now},
			})).To(Succeed())

			purchases, err := store.PurchasesByCustomer(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(purchases).To(HaveLen(2))
		})

		It("writes nothing when any row is invalid", func() {
			err := store.WritePurchasesAtomic(ctx, []*catalog.Purchase{
				{ID: "p1", CustomerID: "c1", MealID: "m1", Quantity: 1, Timestamp: time.Now()},
				{ID: "p2", CustomerID: "ghost", MealID: "m1", Quantity: 1, Timestamp: time.Now()},
			})
			Expect(err).To(BeAssignableToTypeOf(catalog.ConstraintError{}))

			purchases, err := store.PurchasesByCustomer(ctx, "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(purchases).To(BeEmpty())
		})
	})
})
