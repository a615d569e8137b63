// Package inmemory provides a map-backed catalog store. It is the default
// for tests and single-process deployments.
package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/ladleworks/pantry/pkg/catalog"
)

// Store implements catalog.Store using in-memory maps.
type Store struct {
	mu sync.RWMutex

	meals       map[string]*catalog.Meal
	ingredients map[string]*catalog.Ingredient
	shopItems   map[string]*catalog.ShopItem
	customers   map[string]*catalog.Customer
	purchases   map[string]*catalog.Purchase

	// mealsByIngredient is the explicit back-lookup index from ingredient id
	// to the set of meal ids requiring it, maintained on every meal write.
	mealsByIngredient map[string]map[string]struct{}
}

// NewStore creates an empty in-memory catalog store.
func NewStore() *Store {
	return &Store{
		meals:             make(map[string]*catalog.Meal),
		ingredients:       make(map[string]*catalog.Ingredient),
		shopItems:         make(map[string]*catalog.ShopItem),
		customers:         make(map[string]*catalog.Customer),
		purchases:         make(map[string]*catalog.Purchase),
		mealsByIngredient: make(map[string]map[string]struct{}),
	}
}

func copyMeal(m *catalog.Meal) *catalog.Meal {
	out := *m
	out.Ingredients = make([]catalog.MealIngredient, len(m.Ingredients))
	copy(out.Ingredients, m.Ingredients)
	return &out
}

// PutMeal stores a meal and refreshes the ingredient back index.
func (s *Store) PutMeal(_ context.Context, meal *catalog.Meal) error {
	if meal == nil || meal.ID == "" {
		return catalog.ConstraintError{Msg: "meal requires an id"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Drop stale back-index entries from a prior version of this meal.
	if prior, ok := s.meals[meal.ID]; ok {
		for _, mi := range prior.Ingredients {
			delete(s.mealsByIngredient[mi.IngredientID], meal.ID)
		}
	}

	s.meals[meal.ID] = copyMeal(meal)
	for _, mi := range meal.Ingredients {
		set, ok := s.mealsByIngredient[mi.IngredientID]
		if !ok {
			set = make(map[string]struct{})
			s.mealsByIngredient[mi.IngredientID] = set
		}
		set[meal.ID] = struct{}{}
	}

	return nil
}

// GetMeal retrieves a meal by id.
func (s *Store) GetMeal(_ context.Context, id string) (*catalog.Meal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meal, ok := s.meals[id]
	if !ok {
		return nil, catalog.NotFoundError{Kind: "meal", ID: id}
	}

	return copyMeal(meal), nil
}

// DeleteMeal removes a meal and its back-index entries.
func (s *Store) DeleteMeal(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meal, ok := s.meals[id]
	if !ok {
		return catalog.NotFoundError{Kind: "meal", ID: id}
	}

	for _, mi := range meal.Ingredients {
		delete(s.mealsByIngredient[mi.IngredientID], id)
	}
	delete(s.meals, id)

	return nil
}

// ListMeals returns all meals.
func (s *Store) ListMeals(_ context.Context) ([]*catalog.Meal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meals := make([]*catalog.Meal, 0, len(s.meals))
	for _, m := range s.meals {
		meals = append(meals, copyMeal(m))
	}

	return meals, nil
}

// MealsByIngredient returns the ids of meals requiring the ingredient,
// sorted for determinism.
func (s *Store) MealsByIngredient(_ context.Context, ingredientID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.mealsByIngredient[ingredientID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids, nil
}

// PutIngredient stores an ingredient.
func (s *Store) PutIngredient(_ context.Context, ing *catalog.Ingredient) error {
	if ing == nil || ing.ID == "" {
		return catalog.ConstraintError{Msg: "ingredient requires an id"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *ing
	s.ingredients[ing.ID] = &stored

	return nil
}

// GetIngredient retrieves an ingredient by id.
func (s *Store) GetIngredient(_ context.Context, id string) (*catalog.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ing, ok := s.ingredients[id]
	if !ok {
		return nil, catalog.NotFoundError{Kind: "ingredient", ID: id}
	}

	out := *ing
	return &out, nil
}

// ListIngredients returns all ingredients.
func (s *Store) ListIngredients(_ context.Context) ([]*catalog.Ingredient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*catalog.Ingredient, 0, len(s.ingredients))
	for _, ing := range s.ingredients {
		stored := *ing
		out = append(out, &stored)
	}

	return out, nil
}

// PutShopItem stores a shop item. The referenced ingredient must exist.
func (s *Store) PutShopItem(_ context.Context, item *catalog.ShopItem) error {
	if item == nil || item.ID == "" {
		return catalog.ConstraintError{Msg: "shop item requires an id"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ingredients[item.IngredientID]; !ok {
		return catalog.ConstraintError{Msg: "shop item references unknown ingredient " + item.IngredientID}
	}

	stored := *item
	s.shopItems[item.ID] = &stored

	return nil
}

// GetShopItem retrieves a shop item by id.
func (s *Store) GetShopItem(_ context.Context, id string) (*catalog.ShopItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.shopItems[id]
	if !ok {
		return nil, catalog.NotFoundError{Kind: "shop item", ID: id}
	}

	out := *item
	return &out, nil
}

// ListShopItems returns all shop items.
func (s *Store) ListShopItems(_ context.Context) ([]*catalog.ShopItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*catalog.ShopItem, 0, len(s.shopItems))
	for _, item := range s.shopItems {
		stored := *item
		out = append(out, &stored)
	}

	return out, nil
}

// ShopItemsByIngredient returns all shop items carrying the ingredient,
// sorted by id for determinism.
func (s *Store) ShopItemsByIngredient(_ context.Context, ingredientID string) ([]*catalog.ShopItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*catalog.ShopItem
	for _, item := range s.shopItems {
		if item.IngredientID == ingredientID {
			stored := *item
			out = append(out, &stored)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

// ApplyDiscounts applies staff discount edits. The whole batch is validated
// before anything is written, so an unknown id leaves no partial state.
func (s *Store) ApplyDiscounts(_ context.Context, changes []catalog.DiscountChange) (*catalog.SaleSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range changes {
		if _, ok := s.shopItems[ch.ShopItemID]; !ok {
			return nil, catalog.NotFoundError{Kind: "shop item", ID: ch.ShopItemID}
		}
	}

	snapshot := &catalog.SaleSnapshot{AppliedAt: time.Now()}
	for _, ch := range changes {
		item := s.shopItems[ch.ShopItemID]
		wasOnSale := item.OnSale()
		item.Discount = ch.Discount

		if !wasOnSale && item.OnSale() {
			stored := *item
			snapshot.Items = append(snapshot.Items, &stored)
		}
	}

	return snapshot, nil
}

// PutCustomer stores a customer.
func (s *Store) PutCustomer(_ context.Context, c *catalog.Customer) error {
	if c == nil || c.ID == "" {
		return catalog.ConstraintError{Msg: "customer requires an id"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *c
	s.customers[c.ID] = &stored

	return nil
}

// GetCustomer retrieves a customer by id.
func (s *Store) GetCustomer(_ context.Context, id string) (*catalog.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, catalog.NotFoundError{Kind: "customer", ID: id}
	}

	out := *c
	return &out, nil
}

// ListCustomers returns all customers.
func (s *Store) ListCustomers(_ context.Context) ([]*catalog.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*catalog.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		stored := *c
		out = append(out, &stored)
	}

	return out, nil
}

// WritePurchasesAtomic writes all purchases or none. Validation runs under
// the same lock as the insert, so a failed batch leaves the store untouched.
func (s *Store) WritePurchasesAtomic(_ context.Context, purchases []*catalog.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range purchases {
		if p == nil || p.ID == "" {
			return catalog.WriteError{Op: "write purchases", Err: errors.New("purchase requires an id")}
		}
		if _, ok := s.customers[p.CustomerID]; !ok {
			return catalog.ConstraintError{Msg: "purchase references unknown customer " + p.CustomerID}
		}
		if _, ok := s.meals[p.MealID]; !ok {
			return catalog.ConstraintError{Msg: "purchase references unknown meal " + p.MealID}
		}
		if _, ok := s.purchases[p.ID]; ok {
			return catalog.ConstraintError{Msg: "duplicate purchase id " + p.ID}
		}
	}

	for _, p := range purchases {
		stored := *p
		s.purchases[p.ID] = &stored
	}

	return nil
}

// DeletePurchase removes a purchase row. Compensation path only.
func (s *Store) DeletePurchase(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.purchases[id]; !ok {
		return catalog.NotFoundError{Kind: "purchase", ID: id}
	}
	delete(s.purchases, id)

	return nil
}

// PurchasesByCustomer returns a customer's purchases, oldest first.
func (s *Store) PurchasesByCustomer(_ context.Context, customerID string) ([]*catalog.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*catalog.Purchase
	for _, p := range s.purchases {
		if p.CustomerID == customerID {
			stored := *p
			out = append(out, &stored)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})

	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

var _ catalog.Store = (*Store)(nil)
