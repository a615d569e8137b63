package postgres_test

import (
	"context"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ladleworks/pantry/pkg/catalog"
	"github.com/ladleworks/pantry/pkg/catalog/postgres"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("PANTRY_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("PANTRY_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Store", func() {
	var (
		store *postgres.Store
		ctx   context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		dsn := connStr()

		var err error
		store, err = postgres.NewStore(ctx, dsn)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if store != nil {
			store.Close()
		}
	})

	Describe("meals", func() {
		It("round-trips a meal with its ingredient lines", func() {
			meal := &catalog.Meal{
				ID:           "meal-pg-1",
				Name:         "Carbonara",
				Category:     "Pasta",
				Area:         "Italian",
				Description:  "Roman pasta with egg and guanciale",
				Instructions: "Render guanciale, toss pasta with egg and cheese off heat",
				Ingredients: []catalog.MealIngredient{
					{IngredientID: "ing-egg", Quantity: 3, Measure: "whole"},
					{IngredientID: "ing-guanciale", Quantity: 150, Measure: "g"},
				},
			}
			Expect(store.PutMeal(ctx, meal)).To(Succeed())
			defer store.DeleteMeal(ctx, meal.ID)

			got, err := store.GetMeal(ctx, meal.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("Carbonara"))
			Expect(got.Ingredients).To(HaveLen(2))

			ids, err := store.MealsByIngredient(ctx, "ing-egg")
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(ContainElement("meal-pg-1"))
		})

		It("replaces ingredient lines wholesale on re-put", func() {
			meal := &catalog.Meal{
				ID:   "meal-pg-2",
				Name: "Stir Fry",
				Ingredients: []catalog.MealIngredient{
					{IngredientID: "ing-soy", Quantity: 1, Measure: "tbsp"},
				},
			}
			Expect(store.PutMeal(ctx, meal)).To(Succeed())
			defer store.DeleteMeal(ctx, meal.ID)

			meal.Ingredients = []catalog.MealIngredient{
				{IngredientID: "ing-hoisin", Quantity: 2, Measure: "tbsp"},
			}
			Expect(store.PutMeal(ctx, meal)).To(Succeed())

			ids, err := store.MealsByIngredient(ctx, "ing-soy")
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).NotTo(ContainElement("meal-pg-2"))
		})

		It("returns NotFoundError for a missing meal", func() {
			_, err := store.GetMeal(ctx, "no-such-meal")
			Expect(err).To(BeAssignableToTypeOf(catalog.NotFoundError{}))
		})
	})

	Describe("discounts", func() {
		It("snapshots only items newly transitioning to on-sale", func() {
			Expect(store.PutIngredient(ctx, &catalog.Ingredient{ID: "ing-pg-rice", Name: "Rice"})).To(Succeed())
			Expect(store.PutShopItem(ctx, &catalog.ShopItem{
				ID: "item-pg-1", IngredientID: "ing-pg-rice", Price: 3.50,
			})).To(Succeed())
			Expect(store.PutShopItem(ctx, &catalog.ShopItem{
				ID: "item-pg-2", IngredientID: "ing-pg-rice", Price: 4.00, Discount: 0.10,
			})).To(Succeed())

			snap, err := store.ApplyDiscounts(ctx, []catalog.DiscountChange{
				{ShopItemID: "item-pg-1", Discount: 0.25},
				{ShopItemID: "item-pg-2", Discount: 0.30},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Items).To(HaveLen(1))
			Expect(snap.Items[0].ID).To(Equal("item-pg-1"))

			// Reset so the test is re-runnable against the same database.
			_, err = store.ApplyDiscounts(ctx, []catalog.DiscountChange{
				{ShopItemID: "item-pg-1", Discount: 0},
				{ShopItemID: "item-pg-2", Discount: 0.10},
			})
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("purchases", func() {
		It("writes a batch atomically and reads it back in order", func() {
			Expect(store.PutCustomer(ctx, &catalog.Customer{ID: "cust-pg-1", Name: "Robin"})).To(Succeed())
			Expect(store.PutMeal(ctx, &catalog.Meal{ID: "meal-pg-3", Name: "Soup"})).To(Succeed())
			defer store.DeleteMeal(ctx, "meal-pg-3")

			base := time.Now()
			batch := []*catalog.Purchase{
				{ID: "pur-pg-1", CustomerID: "cust-pg-1", MealID: "meal-pg-3", Quantity: 1, UnitPrice: 9.50, Timestamp: base},
				{ID: "pur-pg-2", CustomerID: "cust-pg-1", MealID: "meal-pg-3", Quantity: 2, UnitPrice: 9.50, Timestamp: base.Add(time.Second)},
			}
			Expect(store.WritePurchasesAtomic(ctx, batch)).To(Succeed())
			defer func() {
				store.DeletePurchase(ctx, "pur-pg-1")
				store.DeletePurchase(ctx, "pur-pg-2")
			}()

			got, err := store.PurchasesByCustomer(ctx, "cust-pg-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(len(got)).To(BeNumerically(">=", 2))
		})

		It("rolls back the whole batch when one row violates a constraint", func() {
			Expect(store.PutCustomer(ctx, &catalog.Customer{ID: "cust-pg-2", Name: "Sam"})).To(Succeed())
			Expect(store.PutMeal(ctx, &catalog.Meal{ID: "meal-pg-4", Name: "Salad"})).To(Succeed())
			defer store.DeleteMeal(ctx, "meal-pg-4")

			batch := []*catalog.Purchase{
				{ID: "pur-pg-3", CustomerID: "cust-pg-2", MealID: "meal-pg-4", Quantity: 1, UnitPrice: 5, Timestamp: time.Now()},
				{ID: "pur-pg-4", CustomerID: "ghost-customer", MealID: "meal-pg-4", Quantity: 1, UnitPrice: 5, Timestamp: time.Now()},
			}
			Expect(store.WritePurchasesAtomic(ctx, batch)).NotTo(Succeed())

			got, err := store.PurchasesByCustomer(ctx, "cust-pg-2")
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(BeEmpty())
		})
	})
})
