package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/catalog"
	"github.com/ladleworks/pantry/pkg/sale"
	"github.com/ladleworks/pantry/pkg/session"
)

// Server is the HTTP server fronting the engine.
type Server struct {
	config   Config
	store    catalog.Store
	sessions *session.Manager
	engine   *sale.Engine
	logger   *zap.Logger
	app      *fiber.App
}

// NewServer creates a new API server. The store, session manager and sale
// engine are injected so they can be shared with the CLI wiring.
func NewServer(config Config, store catalog.Store, sessions *session.Manager, engine *sale.Engine, logger *zap.Logger) (*Server, error) {
	if store == nil || sessions == nil || engine == nil {
		return nil, fmt.Errorf("server requires store, session manager and sale engine")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		store:    store,
		sessions: sessions,
		engine:   engine,
		logger:   logger,
		app:      app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/stats", s.handleStats)
	app.Post("/sessions/:customer_id", s.handleOpenSession)
	app.Post("/sessions/:customer_id/turns", s.handleTurn)
	app.Delete("/sessions/:customer_id", s.handleAbandonSession)
	app.Post("/sale/publish", s.handleSalePublish)

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
