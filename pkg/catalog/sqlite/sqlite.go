// Package sqlite provides a SQLite-backed catalog store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ladleworks/pantry/pkg/catalog"
)

// Store implements catalog.Store using SQLite.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS meals (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT '',
	area TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	instructions TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS meal_ingredients (
	meal_id TEXT NOT NULL REFERENCES meals(id) ON DELETE CASCADE,
	ingredient_id TEXT NOT NULL,
	quantity INTEGER NOT NULL DEFAULT 1,
	measure TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (meal_id, ingredient_id)
);

CREATE INDEX IF NOT EXISTS idx_meal_ingredients_ingredient
	ON meal_ingredients(ingredient_id);

CREATE TABLE IF NOT EXISTS ingredients (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS shop_items (
	id TEXT PRIMARY KEY,
	ingredient_id TEXT NOT NULL REFERENCES ingredients(id),
	price REAL NOT NULL,
	discount REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_shop_items_ingredient
	ON shop_items(ingredient_id);

CREATE TABLE IF NOT EXISTS customers (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	conversations INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS purchases (
	id TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL REFERENCES customers(id),
	meal_id TEXT NOT NULL REFERENCES meals(id),
	quantity INTEGER NOT NULL,
	unit_price REAL NOT NULL,
	timestamp INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_purchases_customer
	ON purchases(customer_id);
`

// NewStore creates a SQLite-backed catalog store. The dbPath can be a file
// path or ":memory:" for an in-memory database.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// PutMeal stores a meal and its required-ingredient lines.
func (s *Store) PutMeal(ctx context.Context, meal *catalog.Meal) error {
	if meal == nil || meal.ID == "" {
		return catalog.ConstraintError{Msg: "meal requires an id"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return catalog.WriteError{Op: "put meal", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO meals (id, name, category, area, description, instructions)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			area = excluded.area,
			description = excluded.description,
			instructions = excluded.instructions
	`, meal.ID, meal.Name, meal.Category, meal.Area, meal.Description, meal.Instructions)
	if err != nil {
		return catalog.WriteError{Op: "put meal", Err: err}
	}

	// Replace ingredient lines wholesale; the table doubles as the
	// ingredient -> meals back index.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM meal_ingredients WHERE meal_id = ?`, meal.ID,
	); err != nil {
		return catalog.WriteError{Op: "put meal", Err: err}
	}

	for _, mi := range meal.Ingredients {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO meal_ingredients (meal_id, ingredient_id, quantity, measure)
			VALUES (?, ?, ?, ?)
		`, meal.ID, mi.IngredientID, mi.Quantity, mi.Measure); err != nil {
			return catalog.WriteError{Op: "put meal", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return catalog.WriteError{Op: "put meal", Err: err}
	}

	return nil
}

func (s *Store) mealIngredients(ctx context.Context, mealID string) ([]catalog.MealIngredient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ingredient_id, quantity, measure
		FROM meal_ingredients
		WHERE meal_id = ?
		ORDER BY ingredient_id
	`, mealID)
	if err != nil {
		return nil, fmt.Errorf("querying meal ingredients: %w", err)
	}
	defer rows.Close()

	var out []catalog.MealIngredient
	for rows.Next() {
		var mi catalog.MealIngredient
		if err := rows.Scan(&mi.IngredientID, &mi.Quantity, &mi.Measure); err != nil {
			return nil, fmt.Errorf("scanning meal ingredient: %w", err)
		}
		out = append(out, mi)
	}

	return out, rows.Err()
}

// GetMeal retrieves a meal by id.
func (s *Store) GetMeal(ctx context.Context, id string) (*catalog.Meal, error) {
	meal := &catalog.Meal{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT name, category, area, description, instructions
		FROM meals WHERE id = ?
	`, id).Scan(&meal.Name, &meal.Category, &meal.Area, &meal.Description, &meal.Instructions)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.NotFoundError{Kind: "meal", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("querying meal: %w", err)
	}

	meal.Ingredients, err = s.mealIngredients(ctx, id)
	if err != nil {
		return nil, err
	}

	return meal, nil
}

// DeleteMeal removes a meal; its ingredient lines cascade.
func (s *Store) DeleteMeal(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM meals WHERE id = ?`, id)
	if err != nil {
		return catalog.WriteError{Op: "delete meal", Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return catalog.WriteError{Op: "delete meal", Err: err}
	}
	if n == 0 {
		return catalog.NotFoundError{Kind: "meal", ID: id}
	}

	return nil
}

// ListMeals returns all meals with their ingredient lines.
func (s *Store) ListMeals(ctx context.Context) ([]*catalog.Meal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, area, description, instructions
		FROM meals ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying meals: %w", err)
	}
	defer rows.Close()

	var meals []*catalog.Meal
	for rows.Next() {
		meal := &catalog.Meal{}
		if err := rows.Scan(&meal.ID, &meal.Name, &meal.Category, &meal.Area,
			&meal.Description, &meal.Instructions); err != nil {
			return nil, fmt.Errorf("scanning meal: %w", err)
		}
		meals = append(meals, meal)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating meals: %w", err)
	}
	rows.Close()

	for _, meal := range meals {
		meal.Ingredients, err = s.mealIngredients(ctx, meal.ID)
		if err != nil {
			return nil, err
		}
	}

	return meals, nil
}

// MealsByIngredient returns ids of meals requiring the ingredient.
func (s *Store) MealsByIngredient(ctx context.Context, ingredientID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT meal_id FROM meal_ingredients
		WHERE ingredient_id = ?
		ORDER BY meal_id
	`, ingredientID)
	if err != nil {
		return nil, fmt.Errorf("querying meals by ingredient: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning meal id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// PutIngredient stores an ingredient.
func (s *Store) PutIngredient(ctx context.Context, ing *catalog.Ingredient) error {
	if ing == nil || ing.ID == "" {
		return catalog.ConstraintError{Msg: "ingredient requires an id"}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingredients (id, name, description, kind)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			kind = excluded.kind
	`, ing.ID, ing.Name, ing.Description, ing.Kind)
	if err != nil {
		return catalog.WriteError{Op: "put ingredient", Err: err}
	}

	return nil
}

// GetIngredient retrieves an ingredient by id.
func (s *Store) GetIngredient(ctx context.Context, id string) (*catalog.Ingredient, error) {
	ing := &catalog.Ingredient{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT name, description, kind FROM ingredients WHERE id = ?
	`, id).Scan(&ing.Name, &ing.Description, &ing.Kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.NotFoundError{Kind: "ingredient", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("querying ingredient: %w", err)
	}

	return ing, nil
}

// ListIngredients returns all ingredients.
func (s *Store) ListIngredients(ctx context.Context) ([]*catalog.Ingredient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, kind FROM ingredients ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying ingredients: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Ingredient
	for rows.Next() {
		ing := &catalog.Ingredient{}
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.Description, &ing.Kind); err != nil {
			return nil, fmt.Errorf("scanning ingredient: %w", err)
		}
		out = append(out, ing)
	}

	return out, rows.Err()
}

// PutShopItem stores a shop item.
func (s *Store) PutShopItem(ctx context.Context, item *catalog.ShopItem) error {
	if item == nil || item.ID == "" {
		return catalog.ConstraintError{Msg: "shop item requires an id"}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shop_items (id, ingredient_id, price, discount)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ingredient_id = excluded.ingredient_id,
			price = excluded.price,
			discount = excluded.discount
	`, item.ID, item.IngredientID, item.Price, item.Discount)
	if err != nil {
		return catalog.ConstraintError{Msg: fmt.Sprintf("put shop item %s: %v", item.ID, err)}
	}

	return nil
}

// GetShopItem retrieves a shop item by id.
func (s *Store) GetShopItem(ctx context.Context, id string) (*catalog.ShopItem, error) {
	item := &catalog.ShopItem{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT ingredient_id, price, discount FROM shop_items WHERE id = ?
	`, id).Scan(&item.IngredientID, &item.Price, &item.Discount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.NotFoundError{Kind: "shop item", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("querying shop item: %w", err)
	}

	return item, nil
}

// ListShopItems returns all shop items.
func (s *Store) ListShopItems(ctx context.Context) ([]*catalog.ShopItem, error) {
	return s.queryShopItems(ctx, `SELECT id, ingredient_id, price, discount FROM shop_items ORDER BY id`)
}

// ShopItemsByIngredient returns all shop items carrying the ingredient.
func (s *Store) ShopItemsByIngredient(ctx context.Context, ingredientID string) ([]*catalog.ShopItem, error) {
	return s.queryShopItems(ctx,
		`SELECT id, ingredient_id, price, discount FROM shop_items WHERE ingredient_id = ? ORDER BY id`,
		ingredientID)
}

func (s *Store) queryShopItems(ctx context.Context, query string, args ...any) ([]*catalog.ShopItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying shop items: %w", err)
	}
	defer rows.Close()

	var out []*catalog.ShopItem
	for rows.Next() {
		item := &catalog.ShopItem{}
		if err := rows.Scan(&item.ID, &item.IngredientID, &item.Price, &item.Discount); err != nil {
			return nil, fmt.Errorf("scanning shop item: %w", err)
		}
		out = append(out, item)
	}

	return out, rows.Err()
}

// ApplyDiscounts applies staff discount edits in one transaction and returns
// the snapshot of items newly transitioning to on-sale.
func (s *Store) ApplyDiscounts(ctx context.Context, changes []catalog.DiscountChange) (*catalog.SaleSnapshot, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, catalog.WriteError{Op: "apply discounts", Err: err}
	}
	defer tx.Rollback()

	snapshot := &catalog.SaleSnapshot{AppliedAt: time.Now()}

	for _, ch := range changes {
		item := &catalog.ShopItem{ID: ch.ShopItemID}
		err := tx.QueryRowContext(ctx,
			`SELECT ingredient_id, price, discount FROM shop_items WHERE id = ?`, ch.ShopItemID,
		).Scan(&item.IngredientID, &item.Price, &item.Discount)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.NotFoundError{Kind: "shop item", ID: ch.ShopItemID}
		}
		if err != nil {
			return nil, fmt.Errorf("querying shop item: %w", err)
		}

		wasOnSale := item.OnSale()
		item.Discount = ch.Discount

		if _, err := tx.ExecContext(ctx,
			`UPDATE shop_items SET discount = ? WHERE id = ?`, ch.Discount, ch.ShopItemID,
		); err != nil {
			return nil, catalog.WriteError{Op: "apply discounts", Err: err}
		}

		if !wasOnSale && item.OnSale() {
			snapshot.Items = append(snapshot.Items, item)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, catalog.WriteError{Op: "apply discounts", Err: err}
	}

	return snapshot, nil
}

// PutCustomer stores a customer.
func (s *Store) PutCustomer(ctx context.Context, c *catalog.Customer) error {
	if c == nil || c.ID == "" {
		return catalog.ConstraintError{Msg: "customer requires an id"}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, summary, conversations)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			summary = excluded.summary,
			conversations = excluded.conversations
	`, c.ID, c.Name, c.Email, c.Summary, c.Conversations)
	if err != nil {
		return catalog.WriteError{Op: "put customer", Err: err}
	}

	return nil
}

// GetCustomer retrieves a customer by id.
func (s *Store) GetCustomer(ctx context.Context, id string) (*catalog.Customer, error) {
	c := &catalog.Customer{ID: id}
	err := s.db.QueryRowContext(ctx, `
		SELECT name, email, summary, conversations FROM customers WHERE id = ?
	`, id).Scan(&c.Name, &c.Email, &c.Summary, &c.Conversations)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, catalog.NotFoundError{Kind: "customer", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("querying customer: %w", err)
	}

	return c, nil
}

// ListCustomers returns all customers.
func (s *Store) ListCustomers(ctx context.Context) ([]*catalog.Customer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, summary, conversations FROM customers ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying customers: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Customer
	for rows.Next() {
		c := &catalog.Customer{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Summary, &c.Conversations); err != nil {
			return nil, fmt.Errorf("scanning customer: %w", err)
		}
		out = append(out, c)
	}

	return out, rows.Err()
}

// WritePurchasesAtomic writes all purchases inside one transaction.
func (s *Store) WritePurchasesAtomic(ctx context.Context, purchases []*catalog.Purchase) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return catalog.WriteError{Op: "write purchases", Err: err}
	}
	defer tx.Rollback()

	for _, p := range purchases {
		if p == nil || p.ID == "" {
			return catalog.WriteError{Op: "write purchases", Err: errors.New("purchase requires an id")}
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO purchases (id, customer_id, meal_id, quantity, unit_price, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)
		`, p.ID, p.CustomerID, p.MealID, p.Quantity, p.UnitPrice, p.Timestamp.UnixNano()); err != nil {
			return catalog.ConstraintError{Msg: fmt.Sprintf("purchase %s: %v", p.ID, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return catalog.WriteError{Op: "write purchases", Err: err}
	}

	return nil
}

// DeletePurchase removes a purchase row. Compensation path only.
func (s *Store) DeletePurchase(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM purchases WHERE id = ?`, id)
	if err != nil {
		return catalog.WriteError{Op: "delete purchase", Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return catalog.WriteError{Op: "delete purchase", Err: err}
	}
	if n == 0 {
		return catalog.NotFoundError{Kind: "purchase", ID: id}
	}

	return nil
}

// PurchasesByCustomer returns a customer's purchases, oldest first.
func (s *Store) PurchasesByCustomer(ctx context.Context, customerID string) ([]*catalog.Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_id, meal_id, quantity, unit_price, timestamp
		FROM purchases
		WHERE customer_id = ?
		ORDER BY timestamp, id
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("querying purchases: %w", err)
	}
	defer rows.Close()

	var out []*catalog.Purchase
	for rows.Next() {
		p := &catalog.Purchase{}
		var ts int64
		if err := rows.Scan(&p.ID, &p.CustomerID, &p.MealID, &p.Quantity, &p.UnitPrice, &ts); err != nil {
			return nil, fmt.Errorf("scanning purchase: %w", err)
		}
		p.Timestamp = time.Unix(0, ts)
		out = append(out, p)
	}

	return out, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ catalog.Store = (*Store)(nil)
