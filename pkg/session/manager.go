package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/catalog"
	"github.com/ladleworks/pantry/pkg/embeddings"
	"github.com/ladleworks/pantry/pkg/intent"
	"github.com/ladleworks/pantry/pkg/vector/registry"
	"github.com/ladleworks/pantry/pkg/worker"
)

// Manager enforces session exclusivity: at most one live agent per customer
// id. Sessions for different customers run independently.
type Manager struct {
	config      Config
	store       catalog.Store
	registry    *registry.Registry
	embedder    embeddings.Embedder
	interpreter intent.Interpreter
	pool        *worker.Pool
	logger      *zap.Logger

	mu     sync.Mutex
	agents map[string]*Agent
}

// NewManagerOpts holds the collaborators shared by every session.
type NewManagerOpts struct {
	Config      Config
	Store       catalog.Store
	Registry    *registry.Registry
	Embedder    embeddings.Embedder
	Interpreter intent.Interpreter
	Pool        *worker.Pool
	Logger      *zap.Logger
}

func NewManager(opts NewManagerOpts) (*Manager, error) {
	if opts.Store == nil || opts.Registry == nil || opts.Embedder == nil || opts.Interpreter == nil {
		return nil, fmt.Errorf("manager requires store, registry, embedder and interpreter")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Manager{
		config:      opts.Config,
		store:       opts.Store,
		registry:    opts.Registry,
		embedder:    opts.Embedder,
		interpreter: opts.Interpreter,
		pool:        opts.Pool,
		logger:      opts.Logger,
		agents:      make(map[string]*Agent),
	}, nil
}

// UpdateRanking changes the re-ranking weights and search depth for sessions
// opened after the call. Live sessions keep the weights they started with.
func (m *Manager) UpdateRanking(descWeight, ingWeight float32, searchK int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if descWeight > 0 || ingWeight > 0 {
		m.config.DescriptionWeight = descWeight
		m.config.IngredientWeight = ingWeight
	}
	if searchK > 0 {
		m.config.SearchK = searchK
	}
}

// Open starts a session for a customer. A second open while one is live
// fails with ErrSessionConflict and leaves the first session untouched.
func (m *Manager) Open(ctx context.Context, customerID string) (*Agent, error) {
	if _, err := m.store.GetCustomer(ctx, customerID); err != nil {
		return nil, fmt.Errorf("looking up customer: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.agents[customerID]; ok && existing.Live() {
		return nil, ErrSessionConflict
	}

	agent, err := NewAgent(NewAgentOpts{
		CustomerID:  customerID,
		Config:      m.config,
		Store:       m.store,
		Registry:    m.registry,
		Embedder:    m.embedder,
		Interpreter: m.interpreter,
		Pool:        m.pool,
		Logger:      m.logger,
	})
	if err != nil {
		return nil, err
	}

	m.agents[customerID] = agent
	m.logger.Info("session opened", zap.String("customer_id", customerID))

	return agent, nil
}

// Get returns the live agent for a customer, or false if none.
func (m *Manager) Get(customerID string) (*Agent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	agent, ok := m.agents[customerID]
	if !ok || !agent.Live() {
		return nil, false
	}
	return agent, true
}

// Abandon ends a customer's session without checkout. Abandoning a customer
// with no live session is a no-op.
func (m *Manager) Abandon(customerID string) {
	m.mu.Lock()
	agent, ok := m.agents[customerID]
	delete(m.agents, customerID)
	m.mu.Unlock()

	if ok {
		agent.Abandon()
		m.logger.Info("session abandoned", zap.String("customer_id", customerID))
	}
}

// Close abandons every live session.
func (m *Manager) Close() {
	m.mu.Lock()
	agents := m.agents
	m.agents = make(map[string]*Agent)
	m.mu.Unlock()

	for _, agent := range agents {
		agent.Abandon()
	}
}
