// Package eventstream defines the transport-neutral sale targeting event and
// the publisher port it is emitted through.
package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeSaleTargeting is emitted after a staff discount publish has
	// been scored against the catalog.
	EventTypeSaleTargeting = "pantry.sale.targeting"
)

// SaleTargetingEvent is the payload emitted after a sale publish: which shop
// items went on sale, which meals the sale covers, and which customers each
// meal should be promoted to.
type SaleTargetingEvent struct {
	SchemaVersion int                `json:"schema_version"`
	EventType     string             `json:"event_type"`
	EventID       string             `json:"event_id"`
	EmittedAt     time.Time          `json:"emitted_at"`
	Snapshot      SnapshotMeta       `json:"snapshot"`
	Meals         []RankedMeal       `json:"meals"`
	Audience      []TargetedCustomer `json:"audience"`
}

// SnapshotMeta summarizes the discount publish that triggered the event.
type SnapshotMeta struct {
	ShopItemIDs []string  `json:"shop_item_ids"`
	AppliedAt   time.Time `json:"applied_at"`
}

// RankedMeal is one sale-covered meal with its coverage score.
type RankedMeal struct {
	MealID          string  `json:"meal_id"`
	Coverage        float64 `json:"coverage"`
	IngredientCount int     `json:"ingredient_count"`
}

// TargetedCustomer is one audience entry: a customer and the similarity of
// their purchase summary to the best-matching promoted meal.
type TargetedCustomer struct {
	CustomerID string  `json:"customer_id"`
	MealID     string  `json:"meal_id"`
	Similarity float32 `json:"similarity"`
}
