package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/catalog"
	"github.com/ladleworks/pantry/pkg/session"
)

// ErrorResponse is the JSON body returned on request failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// TurnRequest carries one shopper utterance.
type TurnRequest struct {
	Utterance string `json:"utterance"`
}

// SessionResponse is returned when a session is opened.
type SessionResponse struct {
	CustomerID string        `json:"customer_id"`
	State      session.State `json:"state"`
}

// SalePublishRequest carries staff discount edits to apply and publish.
type SalePublishRequest struct {
	Changes []catalog.DiscountChange `json:"changes"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleStats returns catalog size statistics.
func (s *Server) handleStats(c *fiber.Ctx) error {
	ctx := c.Context()

	meals, err := s.store.ListMeals(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list meals"})
	}

	ingredients, err := s.store.ListIngredients(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list ingredients"})
	}

	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list customers"})
	}

	return c.JSON(map[string]any{
		"meal_count":       len(meals),
		"ingredient_count": len(ingredients),
		"customer_count":   len(customers),
	})
}

// handleOpenSession starts a session for a customer. A second open while one
// is live returns 409 and leaves the first session untouched.
func (s *Server) handleOpenSession(c *fiber.Ctx) error {
	customerID := c.Params("customer_id")
	if customerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "customer_id parameter required"})
	}

	agent, err := s.sessions.Open(c.Context(), customerID)
	if err != nil {
		if errors.Is(err, session.ErrSessionConflict) {
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: "customer already has a live session"})
		}

		var notFound catalog.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: notFound.Error()})
		}

		s.logger.Error("failed to open session",
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to open session"})
	}

	return c.Status(fiber.StatusCreated).JSON(SessionResponse{
		CustomerID: agent.CustomerID(),
		State:      agent.State(),
	})
}

// handleTurn runs one utterance through a customer's live session.
func (s *Server) handleTurn(c *fiber.Ctx) error {
	customerID := c.Params("customer_id")
	if customerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "customer_id parameter required"})
	}

	var req TurnRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Utterance == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "utterance required"})
	}

	agent, ok := s.sessions.Get(customerID)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "no live session for customer"})
	}

	result, err := agent.Turn(c.Context(), req.Utterance)
	if err != nil {
		return s.turnError(c, customerID, err)
	}

	return c.JSON(result)
}

func (s *Server) turnError(c *fiber.Ctx, customerID string, err error) error {
	switch {
	case errors.Is(err, session.ErrTurnInProgress):
		return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{Error: "a turn is already in progress"})
	case errors.Is(err, session.ErrSessionClosed):
		return c.Status(fiber.StatusGone).JSON(ErrorResponse{Error: "session is closed"})
	case errors.Is(err, session.ErrEmptyBasket):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "basket is empty"})
	case errors.Is(err, session.ErrCheckoutFailed):
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "checkout failed, basket preserved"})
	}

	var notFound catalog.NotFoundError
	if errors.As(err, &notFound) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: notFound.Error()})
	}

	s.logger.Error("turn failed",
		zap.String("customer_id", customerID),
		zap.Error(err),
	)
	return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "turn failed"})
}

// handleAbandonSession ends a customer's session without checkout. Abandoning
// a customer with no live session is a no-op.
func (s *Server) handleAbandonSession(c *fiber.Ctx) error {
	customerID := c.Params("customer_id")
	if customerID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "customer_id parameter required"})
	}

	s.sessions.Abandon(customerID)
	return c.SendStatus(fiber.StatusNoContent)
}

// handleSalePublish applies staff discount edits and emits the resulting sale
// targeting event.
func (s *Server) handleSalePublish(c *fiber.Ctx) error {
	var req SalePublishRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if len(req.Changes) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "at least one discount change required"})
	}

	snapshot, err := s.store.ApplyDiscounts(c.Context(), req.Changes)
	if err != nil {
		var notFound catalog.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: notFound.Error()})
		}

		s.logger.Error("failed to apply discounts", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to apply discounts"})
	}

	event, err := s.engine.Publish(c.Context(), snapshot)
	if err != nil {
		s.logger.Error("failed to publish sale targeting", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "discounts applied but targeting publish failed"})
	}

	return c.JSON(event)
}
