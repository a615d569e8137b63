// Package catalog defines the record model and storage contract for meals,
// ingredients, shop items, customers, and purchases.
//
// Relations are one-directional: a meal owns its required-ingredient list and
// stores look up the reverse direction (ingredient -> meals) through an
// explicit back index instead of live object references.
package catalog

import (
	"context"
	"time"
)

// MealIngredient is one required-ingredient line of a meal.
type MealIngredient struct {
	IngredientID string `json:"ingredient_id"`
	Quantity     int    `json:"quantity"`
	Measure      string `json:"measure,omitempty"`
}

// Meal is a recipe with its semantic description and instruction texts.
type Meal struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Category     string           `json:"category,omitempty"`
	Area         string           `json:"area,omitempty"`
	Description  string           `json:"description,omitempty"`
	Instructions string           `json:"instructions,omitempty"`
	Ingredients  []MealIngredient `json:"ingredients,omitempty"`
}

// Ingredient is a catalog ingredient; zero or more shop items may carry it.
type Ingredient struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// ShopItem is a purchasable product mapped to one ingredient.
type ShopItem struct {
	ID           string  `json:"id"`
	IngredientID string  `json:"ingredient_id"`
	Price        float64 `json:"price"`
	Discount     float64 `json:"discount"`
}

// OnSale reports whether the item is discounted. Sale status is derived from
// the discount percentage rather than stored as a separate flag.
func (s *ShopItem) OnSale() bool {
	return s.Discount > 0
}

// Customer is a shopper profile with a rolling purchase summary.
type Customer struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	Summary       string `json:"summary,omitempty"`
	Conversations int    `json:"conversations"`
}

// Purchase is one committed basket line. Immutable once written.
type Purchase struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	MealID     string    `json:"meal_id"`
	Quantity   int       `json:"quantity"`
	UnitPrice  float64   `json:"unit_price"`
	Timestamp  time.Time `json:"timestamp"`
}

// DiscountChange is one staff edit to a shop item's discount percentage.
type DiscountChange struct {
	ShopItemID string  `json:"shop_item_id"`
	Discount   float64 `json:"discount"`
}

// SaleSnapshot is the set of shop items that transitioned to on-sale in one
// staff publish action. Derived per publish, never persisted.
type SaleSnapshot struct {
	Items     []*ShopItem `json:"items"`
	AppliedAt time.Time   `json:"applied_at"`
}

// Store is the persistence contract the engine depends on. Implementations
// behave as an ACID store reachable by id.
type Store interface {
	PutMeal(ctx context.Context, meal *Meal) error
	GetMeal(ctx context.Context, id string) (*Meal, error)
	DeleteMeal(ctx context.Context, id string) error
	ListMeals(ctx context.Context) ([]*Meal, error)

	// MealsByIngredient is the back-lookup index from an ingredient to the
	// ids of meals requiring it.
	MealsByIngredient(ctx context.Context, ingredientID string) ([]string, error)

	PutIngredient(ctx context.Context, ing *Ingredient) error
	GetIngredient(ctx context.Context, id string) (*Ingredient, error)
	ListIngredients(ctx context.Context) ([]*Ingredient, error)

	PutShopItem(ctx context.Context, item *ShopItem) error
	GetShopItem(ctx context.Context, id string) (*ShopItem, error)
	ListShopItems(ctx context.Context) ([]*ShopItem, error)
	ShopItemsByIngredient(ctx context.Context, ingredientID string) ([]*ShopItem, error)

	// ApplyDiscounts applies staff discount edits and returns the snapshot
	// of items that newly transitioned to on-sale. Unknown shop item ids
	// fail the whole batch with NotFoundError before anything is applied.
	ApplyDiscounts(ctx context.Context, changes []DiscountChange) (*SaleSnapshot, error)

	PutCustomer(ctx context.Context, c *Customer) error
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	ListCustomers(ctx context.Context) ([]*Customer, error)

	// WritePurchasesAtomic writes all purchases or none of them.
	WritePurchasesAtomic(ctx context.Context, purchases []*Purchase) error

	// DeletePurchase removes a purchase row. Used only as the compensation
	// path when a partially-applied checkout has to be rolled back.
	DeletePurchase(ctx context.Context, id string) error

	PurchasesByCustomer(ctx context.Context, customerID string) ([]*Purchase, error)

	Close() error
}
