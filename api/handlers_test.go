package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/catalog"
	"github.com/ladleworks/pantry/pkg/catalog/inmemory"
	"github.com/ladleworks/pantry/pkg/eventstream/nop"
	"github.com/ladleworks/pantry/pkg/intent/keyword"
	"github.com/ladleworks/pantry/pkg/sale"
	"github.com/ladleworks/pantry/pkg/session"
	"github.com/ladleworks/pantry/pkg/vector"
	"github.com/ladleworks/pantry/pkg/vector/flat"
	"github.com/ladleworks/pantry/pkg/vector/registry"
)

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (stubEmbedder) Close() error { return nil }

func newTestRegistry() *registry.Registry {
	indexes := make(map[registry.Category]vector.Index)
	for _, cat := range registry.Categories() {
		idx, err := flat.NewIndex(flat.Config{Dimensions: 2}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
		indexes[cat] = idx
	}

	reg, err := registry.New(indexes, zap.NewNop())
	Expect(err).NotTo(HaveOccurred())
	return reg
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		Expect(json.NewEncoder(&buf).Encode(body)).To(Succeed())
	}
	req, err := http.NewRequest(method, target, &buf)
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(resp *http.Response, into any) {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	Expect(json.Unmarshal(raw, into)).To(Succeed())
}

var _ = Describe("Server", func() {
	var (
		server *Server
		store  *inmemory.Store
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewStore()
		reg := newTestRegistry()

		Expect(store.PutIngredient(ctx, &catalog.Ingredient{ID: "ing-garlic", Name: "Garlic"})).To(Succeed())
		Expect(store.PutShopItem(ctx, &catalog.ShopItem{ID: "item-garlic", IngredientID: "ing-garlic", Price: 2.0})).To(Succeed())
		Expect(store.PutMeal(ctx, &catalog.Meal{
			ID:          "meal-1",
			Name:        "Garlic Butter Pasta",
			Description: "rich garlic pasta",
			Ingredients: []catalog.MealIngredient{{IngredientID: "ing-garlic", Quantity: 3}},
		})).To(Succeed())
		Expect(store.PutCustomer(ctx, &catalog.Customer{ID: "cust-1", Name: "Robin"})).To(Succeed())

		manager, err := session.NewManager(session.NewManagerOpts{
			Store:       store,
			Registry:    reg,
			Embedder:    stubEmbedder{},
			Interpreter: keyword.NewInterpreter(),
			Logger:      zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())

		engine, err := sale.NewEngine(sale.NewEngineOpts{
			Store:     store,
			Registry:  reg,
			Embedder:  stubEmbedder{},
			Publisher: nop.NewPublisher(),
			Logger:    zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())

		server, err = NewServer(Config{ListenAddr: ":0"}, store, manager, engine, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			req, err := http.NewRequest(http.MethodGet, "/ping", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var body string
			decodeBody(resp, &body)
			Expect(body).To(Equal("pong"))
		})
	})

	Describe("GET /stats", func() {
		It("returns catalog counts", func() {
			req, err := http.NewRequest(http.MethodGet, "/stats", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var stats map[string]int
			decodeBody(resp, &stats)
			Expect(stats["meal_count"]).To(Equal(1))
			Expect(stats["ingredient_count"]).To(Equal(1))
			Expect(stats["customer_count"]).To(Equal(1))
		})
	})

	Describe("POST /sessions/:customer_id", func() {
		It("opens a session for a known customer", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/sessions/cust-1", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			var body SessionResponse
			decodeBody(resp, &body)
			Expect(body.CustomerID).To(Equal("cust-1"))
		})

		It("returns 404 for an unknown customer", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/sessions/cust-ghost", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("returns 409 when the customer already has a live session", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/sessions/cust-1", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			resp, err = server.app.Test(jsonRequest(http.MethodPost, "/sessions/cust-1", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusConflict))
		})
	})

	Describe("POST /sessions/:customer_id/turns", func() {
		It("returns 404 when no session is live", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/sessions/cust-1/turns", TurnRequest{Utterance: "checkout"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		Context("with a live session", func() {
			BeforeEach(func() {
				resp, err := server.app.Test(jsonRequest(http.MethodPost, "/sessions/cust-1", nil))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))
			})

			It("rejects a blank utterance", func() {
				resp, err := server.app.Test(jsonRequest(http.MethodPost, "/sessions/cust-1/turns", TurnRequest{}))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			})

			It("adds a meal to the basket", func() {
				resp, err := server.app.Test(jsonRequest(http.MethodPost, "/sessions/cust-1/turns", TurnRequest{Utterance: "add 2 meal-1"}))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

				var result session.TurnResult
				decodeBody(resp, &result)
				Expect(result.Basket).To(HaveLen(1))
				Expect(result.Basket[0].Quantity).To(Equal(2))
			})

			It("returns 404 for an unknown meal", func() {
				resp, err := server.app.Test(jsonRequest(http.MethodPost, "/sessions/cust-1/turns", TurnRequest{Utterance: "add 1 meal-ghost"}))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
			})

			It("rejects checkout with an empty basket", func() {
				resp, err := server.app.Test(jsonRequest(http.MethodPost, "/sessions/cust-1/turns", TurnRequest{Utterance: "checkout"}))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
			})

			It("checks out a non-empty basket and closes the session", func() {
				resp, err := server.app.Test(jsonRequest(http.MethodPost, "/sessions/cust-1/turns", TurnRequest{Utterance: "add 1 meal-1"}))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

				resp, err = server.app.Test(jsonRequest(http.MethodPost, "/sessions/cust-1/turns", TurnRequest{Utterance: "checkout"}))
				Expect(err).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

				var result session.TurnResult
				decodeBody(resp, &result)
				Expect(result.State).To(Equal(session.StateClosed))

				purchases, err := store.PurchasesByCustomer(ctx, "cust-1")
				Expect(err).NotTo(HaveOccurred())
				Expect(purchases).To(HaveLen(1))
			})
		})
	})

	Describe("DELETE /sessions/:customer_id", func() {
		It("abandons a live session", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/sessions/cust-1", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusCreated))

			resp, err = server.app.Test(jsonRequest(http.MethodDelete, "/sessions/cust-1", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNoContent))

			resp, err = server.app.Test(jsonRequest(http.MethodPost, "/sessions/cust-1/turns", TurnRequest{Utterance: "checkout"}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("is a no-op without a live session", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodDelete, "/sessions/cust-1", nil))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNoContent))
		})
	})

	Describe("POST /sale/publish", func() {
		It("rejects an empty change set", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/sale/publish", SalePublishRequest{}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 404 for an unknown shop item", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/sale/publish", SalePublishRequest{
				Changes: []catalog.DiscountChange{{ShopItemID: "item-ghost", Discount: 0.5}},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("applies discounts and returns the targeting event", func() {
			resp, err := server.app.Test(jsonRequest(http.MethodPost, "/sale/publish", SalePublishRequest{
				Changes: []catalog.DiscountChange{{ShopItemID: "item-garlic", Discount: 0.5}},
			}))
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			var event map[string]any
			decodeBody(resp, &event)
			Expect(event["event_id"]).NotTo(BeEmpty())

			meals, ok := event["meals"].([]any)
			Expect(ok).To(BeTrue())
			Expect(meals).To(HaveLen(1))
		})
	})
})
