// Package session implements the per-shopper conversation state machine: it
// interprets turns, maintains the basket, queries the vector registry for
// recommendations, and commits purchases on checkout.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/catalog"
	"github.com/ladleworks/pantry/pkg/embeddings"
	"github.com/ladleworks/pantry/pkg/intent"
	"github.com/ladleworks/pantry/pkg/vector/registry"
	"github.com/ladleworks/pantry/pkg/worker"
)

// State is the agent lifecycle state.
type State string

const (
	StateIdle       State = "idle"
	StateConversing State = "conversing"
	StateCheckout   State = "checkout"
	StateAbandoned  State = "abandoned"
	StateClosed     State = "closed"
)

const (
	defaultSearchK           = 5
	defaultDescriptionWeight = 0.7
	defaultIngredientWeight  = 0.3
)

// Config holds per-agent tuning.
type Config struct {
	// SearchK caps how many ranked suggestions a search turn returns.
	SearchK int

	// DescriptionWeight and IngredientWeight blend description similarity
	// with mean ingredient similarity when re-ranking search results. They
	// default to 0.7 and 0.3.
	DescriptionWeight float32
	IngredientWeight  float32

	// ExcludeBasketSubstitutes filters substitution results down to
	// ingredients not already required by basket meals.
	ExcludeBasketSubstitutes bool
}

func (c Config) withDefaults() Config {
	if c.SearchK == 0 {
		c.SearchK = defaultSearchK
	}
	if c.DescriptionWeight == 0 && c.IngredientWeight == 0 {
		c.DescriptionWeight = defaultDescriptionWeight
		c.IngredientWeight = defaultIngredientWeight
	}
	return c
}

// Suggestion is one ranked recommendation in a turn response.
type Suggestion struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Score float32 `json:"score"`
}

// TurnResult is the structured response to one shopper turn.
type TurnResult struct {
	Message     string       `json:"message"`
	State       State        `json:"state"`
	Basket      []Line       `json:"basket"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

// Agent drives one shopper's session. An agent's turns run strictly
// sequentially; a second concurrent turn is rejected rather than queued.
type Agent struct {
	customerID  string
	config      Config
	store       catalog.Store
	registry    *registry.Registry
	embedder    embeddings.Embedder
	interpreter intent.Interpreter
	pool        *worker.Pool
	logger      *zap.Logger

	turnMu    sync.Mutex
	state     State
	basket    *Basket
	abandoned atomic.Bool
}

// NewAgentOpts holds the collaborators an agent needs.
type NewAgentOpts struct {
	CustomerID  string
	Config      Config
	Store       catalog.Store
	Registry    *registry.Registry
	Embedder    embeddings.Embedder
	Interpreter intent.Interpreter
	Pool        *worker.Pool
	Logger      *zap.Logger
}

func NewAgent(opts NewAgentOpts) (*Agent, error) {
	if opts.CustomerID == "" {
		return nil, fmt.Errorf("agent requires a customer id")
	}
	if opts.Store == nil || opts.Registry == nil || opts.Embedder == nil || opts.Interpreter == nil {
		return nil, fmt.Errorf("agent requires store, registry, embedder and interpreter")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Agent{
		customerID:  opts.CustomerID,
		config:      opts.Config.withDefaults(),
		store:       opts.Store,
		registry:    opts.Registry,
		embedder:    opts.Embedder,
		interpreter: opts.Interpreter,
		pool:        opts.Pool,
		logger:      opts.Logger,
		state:       StateIdle,
	}, nil
}

// CustomerID returns the customer this agent belongs to.
func (a *Agent) CustomerID() string {
	return a.customerID
}

// State returns the current lifecycle state.
func (a *Agent) State() State {
	a.turnMu.Lock()
	defer a.turnMu.Unlock()
	return a.state
}

// Live reports whether the agent can still accept turns.
func (a *Agent) Live() bool {
	s := a.State()
	return s != StateClosed && s != StateAbandoned
}

// Abandon marks the session abandoned. The basket is discarded without side
// effects; an in-flight turn's external call results are discarded rather
// than applied.
func (a *Agent) Abandon() {
	a.abandoned.Store(true)

	if a.turnMu.TryLock() {
		defer a.turnMu.Unlock()
		a.close(StateAbandoned)
	}
}

// close must be called with turnMu held.
func (a *Agent) close(via State) {
	if a.state == StateClosed {
		return
	}
	a.state = via
	a.basket = nil
	a.state = StateClosed
}

// Turn processes one shopper utterance. Turns for one session are strictly
// sequential: if a prior turn has not committed, ErrTurnInProgress is
// returned instead of blocking.
func (a *Agent) Turn(ctx context.Context, utterance string) (*TurnResult, error) {
	if !a.turnMu.TryLock() {
		return nil, ErrTurnInProgress
	}
	defer a.turnMu.Unlock()

	if a.abandoned.Load() {
		a.close(StateAbandoned)
		return nil, ErrSessionClosed
	}
	if a.state == StateClosed {
		return nil, ErrSessionClosed
	}

	if a.state == StateIdle {
		a.state = StateConversing
		a.basket = NewBasket()
	}

	parsed, err := a.interpreter.Interpret(ctx, utterance)
	if err != nil {
		var unrecognized intent.UnrecognizedError
		if errors.As(err, &unrecognized) {
			return a.result("I didn't catch that. Try searching for a meal, adding one to your basket, or checking out."), nil
		}
		return nil, fmt.Errorf("interpreting turn: %w", err)
	}

	if a.discarded() {
		return nil, ErrSessionClosed
	}

	a.logger.Debug("turn intent",
		zap.String("customer_id", a.customerID),
		zap.String("kind", string(parsed.Kind)),
	)

	switch parsed.Kind {
	case intent.KindSearchMeals:
		return a.search(ctx, parsed)
	case intent.KindAddItem:
		return a.addItem(ctx, parsed)
	case intent.KindRemoveItem:
		a.basket.Remove(parsed.MealID, parsed.Quantity)
		return a.result(fmt.Sprintf("Updated your basket for %s.", parsed.MealID)), nil
	case intent.KindAdjustQuantity:
		a.basket.Adjust(parsed.MealID, parsed.Quantity)
		return a.result(fmt.Sprintf("Set %s to quantity %d.", parsed.MealID, parsed.Quantity)), nil
	case intent.KindSubstitute:
		return a.substitute(ctx, parsed)
	case intent.KindCheckout:
		return a.checkout(ctx)
	case intent.KindEndSession:
		a.close(StateAbandoned)
		return &TurnResult{Message: "Thanks for stopping by. Nothing was purchased.", State: StateClosed}, nil
	}

	return a.result("I didn't catch that."), nil
}

// discarded reports whether the session was abandoned while an external call
// was in flight; results observed after it returns true must not be applied.
func (a *Agent) discarded() bool {
	if a.abandoned.Load() {
		a.close(StateAbandoned)
		return true
	}
	return false
}

func (a *Agent) result(message string) *TurnResult {
	return &TurnResult{
		Message: message,
		State:   a.state,
		Basket:  a.basket.Lines(),
	}
}

func (a *Agent) searchK(parsed *intent.Intent) int {
	if parsed.K > 0 {
		return parsed.K
	}
	return a.config.SearchK
}

// search embeds the query and ranks meals by a weighted blend of description
// similarity and mean ingredient similarity. When embeddings are unavailable
// it degrades to keyword matching over meal names and descriptions.
func (a *Agent) search(ctx context.Context, parsed *intent.Intent) (*TurnResult, error) {
	k := a.searchK(parsed)

	queryVec, err := a.embedder.Embed(ctx, parsed.Query)
	if err != nil {
		if !errors.Is(err, embeddings.ErrUnavailable) {
			return nil, fmt.Errorf("embedding query: %w", err)
		}
		if a.discarded() {
			return nil, ErrSessionClosed
		}

		a.logger.Warn("embeddings unavailable, degrading to keyword search",
			zap.String("customer_id", a.customerID),
			zap.Error(err),
		)
		return a.keywordSearch(ctx, parsed.Query, k)
	}

	if a.discarded() {
		return nil, ErrSessionClosed
	}

	descResults, err := a.registry.Query(ctx, registry.CategoryMealDescription, queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("querying meal descriptions: %w", err)
	}

	ingScores := make(map[string]float32)
	ingResults, err := a.registry.Query(ctx, registry.CategoryIngredient, queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("querying ingredients: %w", err)
	}
	for _, r := range ingResults {
		ingScores[r.ID] = r.Score
	}

	suggestions := make([]Suggestion, 0, len(descResults))
	for _, r := range descResults {
		s := Suggestion{ID: r.ID, Score: a.config.DescriptionWeight * r.Score}

		meal, err := a.store.GetMeal(ctx, r.ID)
		if err == nil {
			s.Name = meal.Name
			s.Score += a.config.IngredientWeight * meanIngredientScore(meal, ingScores)
		}

		suggestions = append(suggestions, s)
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return suggestions[i].ID < suggestions[j].ID
	})

	res := a.result(searchMessage(len(suggestions)))
	res.Suggestions = suggestions
	return res, nil
}

// meanIngredientScore averages the ingredient similarities for the meal's
// required ingredients that appeared in the ingredient query results.
func meanIngredientScore(meal *catalog.Meal, ingScores map[string]float32) float32 {
	if len(meal.Ingredients) == 0 {
		return 0
	}

	var sum float32
	var n int
	for _, mi := range meal.Ingredients {
		if score, ok := ingScores[mi.IngredientID]; ok {
			sum += score
			n++
		}
	}
	if n == 0 {
		return 0
	}

	return sum / float32(n)
}

// keywordSearch is the degraded path: substring matching over meal names and
// descriptions, unscored.
func (a *Agent) keywordSearch(ctx context.Context, query string, k int) (*TurnResult, error) {
	meals, err := a.store.ListMeals(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing meals: %w", err)
	}

	terms := strings.Fields(strings.ToLower(query))
	var suggestions []Suggestion
	for _, meal := range meals {
		haystack := strings.ToLower(meal.Name + " " + meal.Description)
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				suggestions = append(suggestions, Suggestion{ID: meal.ID, Name: meal.Name})
				break
			}
		}
		if len(suggestions) == k {
			break
		}
	}

	res := a.result("Search is running in a limited mode right now; here is what matched by name.")
	res.Suggestions = suggestions
	return res, nil
}

func searchMessage(n int) string {
	if n == 0 {
		return "I couldn't find any meals matching that. Try describing it differently."
	}
	return fmt.Sprintf("Here are %d meals you might like.", n)
}

func (a *Agent) addItem(ctx context.Context, parsed *intent.Intent) (*TurnResult, error) {
	meal, err := a.store.GetMeal(ctx, parsed.MealID)
	if err != nil {
		return nil, fmt.Errorf("looking up meal: %w", err)
	}

	if a.discarded() {
		return nil, ErrSessionClosed
	}

	a.basket.Add(meal.ID, parsed.Quantity)
	return a.result(fmt.Sprintf("Added %d x %s to your basket.", parsed.Quantity, meal.Name)), nil
}

// substitute searches the ingredient index for alternatives, always excluding
// the source ingredient itself.
func (a *Agent) substitute(ctx context.Context, parsed *intent.Intent) (*TurnResult, error) {
	queryVec, err := a.embedder.Embed(ctx, parsed.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding substitution query: %w", err)
	}

	if a.discarded() {
		return nil, ErrSessionClosed
	}

	excluded, err := a.excludedIngredients(ctx, parsed.IngredientID)
	if err != nil {
		return nil, err
	}

	// Over-fetch so exclusions don't starve the result list.
	k := a.searchK(parsed)
	results, err := a.registry.Query(ctx, registry.CategoryIngredient, queryVec, k+len(excluded))
	if err != nil {
		return nil, fmt.Errorf("querying ingredients: %w", err)
	}

	var suggestions []Suggestion
	for _, r := range results {
		if excluded[r.ID] {
			continue
		}

		s := Suggestion{ID: r.ID, Score: r.Score}
		if ing, err := a.store.GetIngredient(ctx, r.ID); err == nil {
			s.Name = ing.Name
		}
		suggestions = append(suggestions, s)
		if len(suggestions) == k {
			break
		}
	}

	res := a.result(fmt.Sprintf("Here are some alternatives to %s.", parsed.IngredientID))
	res.Suggestions = suggestions
	return res, nil
}

func (a *Agent) excludedIngredients(ctx context.Context, sourceID string) (map[string]bool, error) {
	excluded := map[string]bool{sourceID: true}
	if !a.config.ExcludeBasketSubstitutes {
		return excluded, nil
	}

	for _, line := range a.basket.Lines() {
		meal, err := a.store.GetMeal(ctx, line.MealID)
		if err != nil {
			return nil, fmt.Errorf("looking up basket meal: %w", err)
		}
		for _, mi := range meal.Ingredients {
			excluded[mi.IngredientID] = true
		}
	}

	return excluded, nil
}

// checkout converts the basket to purchase records in one all-or-nothing
// write. On failure any applied rows are compensated and the session returns
// to Conversing with the basket intact.
func (a *Agent) checkout(ctx context.Context) (*TurnResult, error) {
	if a.basket.Empty() {
		return nil, ErrEmptyBasket
	}

	a.state = StateCheckout

	purchases, total, err := a.buildPurchases(ctx)
	if err != nil {
		a.state = StateConversing
		return nil, err
	}

	if err := a.store.WritePurchasesAtomic(ctx, purchases); err != nil {
		a.compensate(ctx, purchases)
		a.state = StateConversing

		a.logger.Error("checkout write failed, rolled back",
			zap.String("customer_id", a.customerID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
	}

	if a.pool != nil {
		a.pool.Enqueue(worker.Job{Kind: worker.JobSummary, CustomerID: a.customerID})
	}

	lines := a.basket.Lines()
	a.close(StateCheckout)

	a.logger.Info("checkout complete",
		zap.String("customer_id", a.customerID),
		zap.Int("lines", len(lines)),
		zap.Float64("total", total),
	)

	return &TurnResult{
		Message: fmt.Sprintf("Order placed: %d meals for %.2f. Enjoy your cooking!", len(lines), total),
		State:   StateClosed,
		Basket:  lines,
	}, nil
}

func (a *Agent) buildPurchases(ctx context.Context) ([]*catalog.Purchase, float64, error) {
	now := time.Now()
	var purchases []*catalog.Purchase
	var total float64

	for _, line := range a.basket.Lines() {
		meal, err := a.store.GetMeal(ctx, line.MealID)
		if err != nil {
			return nil, 0, fmt.Errorf("looking up basket meal: %w", err)
		}

		price, err := a.mealUnitPrice(ctx, meal)
		if err != nil {
			return nil, 0, err
		}

		purchases = append(purchases, &catalog.Purchase{
			ID:         uuid.NewString(),
			CustomerID: a.customerID,
			MealID:     meal.ID,
			Quantity:   line.Quantity,
			UnitPrice:  price,
			Timestamp:  now,
		})
		total += price * float64(line.Quantity)
	}

	return purchases, total, nil
}

// mealUnitPrice sums the cheapest effective shop price per required
// ingredient. Ingredients with no shop item contribute nothing.
func (a *Agent) mealUnitPrice(ctx context.Context, meal *catalog.Meal) (float64, error) {
	var total float64
	for _, mi := range meal.Ingredients {
		items, err := a.store.ShopItemsByIngredient(ctx, mi.IngredientID)
		if err != nil {
			return 0, fmt.Errorf("pricing ingredient %s: %w", mi.IngredientID, err)
		}

		best := -1.0
		for _, item := range items {
			effective := item.Price * (1 - item.Discount)
			if best < 0 || effective < best {
				best = effective
			}
		}
		if best > 0 {
			total += best
		}
	}

	return total, nil
}

// compensate deletes any purchase rows a partial write may have applied.
func (a *Agent) compensate(ctx context.Context, purchases []*catalog.Purchase) {
	for _, p := range purchases {
		err := a.store.DeletePurchase(ctx, p.ID)
		if err == nil {
			continue
		}

		var notFound catalog.NotFoundError
		if errors.As(err, &notFound) {
			continue
		}

		a.logger.Error("checkout compensation failed",
			zap.String("purchase_id", p.ID),
			zap.Error(err),
		)
	}
}
