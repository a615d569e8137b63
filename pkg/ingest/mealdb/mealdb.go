// Package mealdb is a thin client for TheMealDB public API, used to seed the
// catalog. It crawls the search-by-first-letter endpoint across the alphabet,
// deduplicates by meal id, and throttles between requests.
package mealdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/catalog"
)

const (
	DefaultBaseURL  = "https://www.themealdb.com/api/json/v1/1"
	DefaultThrottle = 500 * time.Millisecond

	maxIngredientSlots = 20
)

// Config holds the client configuration.
type Config struct {
	BaseURL  string
	Throttle time.Duration
	Timeout  time.Duration
	Logger   *zap.Logger
}

// Client fetches meals from TheMealDB.
type Client struct {
	config Config
	client *http.Client
	logger *zap.Logger
}

func NewClient(c Config) *Client {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Throttle == 0 {
		c.Throttle = DefaultThrottle
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	return &Client{
		config: c,
		client: &http.Client{Timeout: c.Timeout},
		logger: c.Logger,
	}
}

// searchResponse mirrors TheMealDB's search payload: every field is a string
// or null, with ingredients spread over twenty numbered slots.
type searchResponse struct {
	Meals []map[string]*string `json:"meals"`
}

// Crawl fetches every meal reachable by first letter and converts them to
// catalog records. Duplicate meal ids across letters are dropped.
func (c *Client) Crawl(ctx context.Context) ([]*catalog.Meal, []*catalog.Ingredient, error) {
	seenMeals := make(map[string]bool)
	seenIngredients := make(map[string]bool)

	var meals []*catalog.Meal
	var ingredients []*catalog.Ingredient

	for i, letter := range "abcdefghijklmnopqrstuvwxyz" {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(c.config.Throttle):
			}
		}

		batch, err := c.SearchByLetter(ctx, string(letter))
		if err != nil {
			return nil, nil, fmt.Errorf("crawling letter %q: %w", letter, err)
		}

		for _, meal := range batch {
			if seenMeals[meal.ID] {
				continue
			}
			seenMeals[meal.ID] = true
			meals = append(meals, meal)

			for _, mi := range meal.Ingredients {
				if seenIngredients[mi.IngredientID] {
					continue
				}
				seenIngredients[mi.IngredientID] = true
				ingredients = append(ingredients, &catalog.Ingredient{
					ID:   mi.IngredientID,
					Name: nameFromID(mi.IngredientID),
				})
			}
		}

		c.logger.Debug("crawled letter",
			zap.String("letter", string(letter)),
			zap.Int("meals", len(batch)),
		)
	}

	return meals, ingredients, nil
}

// SearchByLetter fetches all meals whose name starts with the given letter.
func (c *Client) SearchByLetter(ctx context.Context, letter string) ([]*catalog.Meal, error) {
	url := fmt.Sprintf("%s/search.php?f=%s", c.config.BaseURL, letter)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching meals: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding meals: %w", err)
	}

	meals := make([]*catalog.Meal, 0, len(parsed.Meals))
	for _, raw := range parsed.Meals {
		meal := convertMeal(raw)
		if meal != nil {
			meals = append(meals, meal)
		}
	}

	return meals, nil
}

func convertMeal(raw map[string]*string) *catalog.Meal {
	id := field(raw, "idMeal")
	name := field(raw, "strMeal")
	if id == "" || name == "" {
		return nil
	}

	meal := &catalog.Meal{
		ID:           "meal-" + id,
		Name:         name,
		Category:     field(raw, "strCategory"),
		Area:         field(raw, "strArea"),
		Instructions: field(raw, "strInstructions"),
	}
	meal.Description = describemeal(meal)

	for slot := 1; slot <= maxIngredientSlots; slot++ {
		ingName := strings.TrimSpace(field(raw, fmt.Sprintf("strIngredient%d", slot)))
		if ingName == "" {
			continue
		}

		meal.Ingredients = append(meal.Ingredients, catalog.MealIngredient{
			IngredientID: IngredientID(ingName),
			Quantity:     1,
			Measure:      strings.TrimSpace(field(raw, fmt.Sprintf("strMeasure%d", slot))),
		})
	}

	return meal
}

// describemeal builds embedding-ready description text; the API has no
// dedicated description field.
func describemeal(meal *catalog.Meal) string {
	parts := []string{meal.Name}
	if meal.Category != "" {
		parts = append(parts, meal.Category)
	}
	if meal.Area != "" {
		parts = append(parts, meal.Area+" cuisine")
	}
	return strings.Join(parts, ", ")
}

// IngredientID derives a stable catalog id from an ingredient name.
func IngredientID(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	return "ing-" + slug
}

func nameFromID(id string) string {
	return strings.ReplaceAll(strings.TrimPrefix(id, "ing-"), "-", " ")
}

func field(raw map[string]*string, key string) string {
	if v := raw[key]; v != nil {
		return *v
	}
	return ""
}
