package mealdb_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/ingest/mealdb"
)

const arrabiata = `{
	"idMeal": "52771",
	"strMeal": "Spicy Arrabiata Penne",
	"strCategory": "Vegetarian",
	"strArea": "Italian",
	"strInstructions": "Bring a large pot of water to a boil.",
	"strIngredient1": "penne rigate",
	"strIngredient2": "olive oil",
	"strIngredient3": "",
	"strIngredient4": null,
	"strMeasure1": "1 pound",
	"strMeasure2": "1/4 cup",
	"strMeasure3": null
}`

var _ = Describe("Client", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	newClient := func(server *httptest.Server) *mealdb.Client {
		return mealdb.NewClient(mealdb.Config{
			BaseURL:  server.URL,
			Throttle: time.Millisecond,
			Logger:   zap.NewNop(),
		})
	}

	Describe("SearchByLetter", func() {
		It("converts the payload, skipping empty ingredient slots", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Query().Get("f")).To(Equal("s"))
				fmt.Fprintf(w, `{"meals":[%s]}`, arrabiata)
			}))
			defer server.Close()

			meals, err := newClient(server).SearchByLetter(ctx, "s")
			Expect(err).NotTo(HaveOccurred())
			Expect(meals).To(HaveLen(1))

			meal := meals[0]
			Expect(meal.ID).To(Equal("meal-52771"))
			Expect(meal.Name).To(Equal("Spicy Arrabiata Penne"))
			Expect(meal.Category).To(Equal("Vegetarian"))
			Expect(meal.Area).To(Equal("Italian"))
			Expect(meal.Description).To(Equal("Spicy Arrabiata Penne, Vegetarian, Italian cuisine"))

			Expect(meal.Ingredients).To(HaveLen(2))
			Expect(meal.Ingredients[0].IngredientID).To(Equal("ing-penne-rigate"))
			Expect(meal.Ingredients[0].Measure).To(Equal("1 pound"))
			Expect(meal.Ingredients[1].IngredientID).To(Equal("ing-olive-oil"))
		})

		It("handles the null meals payload for letters with no matches", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"meals":null}`)
			}))
			defer server.Close()

			meals, err := newClient(server).SearchByLetter(ctx, "x")
			Expect(err).NotTo(HaveOccurred())
			Expect(meals).To(BeEmpty())
		})
	})

	Describe("Crawl", func() {
		It("visits every letter, deduplicating meals and ingredients", func() {
			var letters []string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				letter := r.URL.Query().Get("f")
				letters = append(letters, letter)

				// The same meal shows up under two letters.
				if letter == "a" || letter == "s" {
					fmt.Fprintf(w, `{"meals":[%s]}`, arrabiata)
					return
				}
				fmt.Fprint(w, `{"meals":null}`)
			}))
			defer server.Close()

			meals, ingredients, err := newClient(server).Crawl(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(letters).To(HaveLen(26))
			Expect(meals).To(HaveLen(1))
			Expect(ingredients).To(HaveLen(2))
			Expect(ingredients[0].Name).To(Equal("penne rigate"))
		})

		It("stops when the context is cancelled", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"meals":null}`)
			}))
			defer server.Close()

			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, _, err := newClient(server).Crawl(cancelled)
			Expect(err).To(MatchError(context.Canceled))
		})
	})
})
