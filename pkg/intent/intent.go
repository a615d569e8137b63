// Package intent defines the shopper intent model and the interpreter port
// that turns free-text utterances into structured intents.
package intent

import "context"

// Kind discriminates the intent union.
type Kind string

const (
	KindSearchMeals    Kind = "search_meals"
	KindAddItem        Kind = "add_item"
	KindRemoveItem     Kind = "remove_item"
	KindAdjustQuantity Kind = "adjust_quantity"
	KindSubstitute     Kind = "substitute"
	KindCheckout       Kind = "checkout"
	KindEndSession     Kind = "end_session"
)

// Intent is a tagged union; only the fields relevant to Kind are set.
type Intent struct {
	Kind Kind

	// Query carries the free-text search description for SearchMeals, and
	// the replacement description for Substitute.
	Query string

	// MealID identifies the basket line for AddItem, RemoveItem and
	// AdjustQuantity.
	MealID string

	// Quantity is the line delta for AddItem and RemoveItem (zero removes
	// the whole line) and the absolute target for AdjustQuantity.
	Quantity int

	// IngredientID is the source ingredient to replace for Substitute.
	IngredientID string

	// K caps search result counts; zero means the interpreter default.
	K int
}

// Interpreter converts one shopper utterance into an Intent.
type Interpreter interface {
	Interpret(ctx context.Context, utterance string) (*Intent, error)
	Close() error
}
