// Package worker provides an asynchronous worker pool for embedding and
// indexing work. The pool decouples embedding generation from the paths that
// request it: catalog ingestion enqueues index jobs after each catalog write
// commits, and session checkout enqueues a summary recompute without waiting
// for it.
package worker

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/catalog"
	"github.com/ladleworks/pantry/pkg/embeddings"
	"github.com/ladleworks/pantry/pkg/vector/registry"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// JobKind discriminates pool jobs.
type JobKind string

const (
	// JobIndex embeds Text and upserts it under EntityID in Category.
	JobIndex JobKind = "index"

	// JobSummary rebuilds CustomerID's purchase summary from the catalog,
	// persists it, and refreshes the user_summary index entry.
	JobSummary JobKind = "summary"
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Kind       JobKind
	Category   registry.Category
	EntityID   string
	Text       string
	CustomerID string
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Store is the catalog backend, required for summary jobs.
	Store catalog.Store

	// Registry receives the generated embeddings.
	Registry *registry.Registry

	// Embedder generates text embeddings.
	Embedder embeddings.Embedder

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes embedding jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	p := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			zap.String("kind", string(job.Kind)),
			zap.String("entity_id", job.EntityID),
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			zap.String("kind", string(job.Kind)),
			zap.String("entity_id", job.EntityID),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the API server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("worker stopped", zap.Uint("worker_id", id))
}

func (p *Pool) processJob(job Job) {
	ctx := context.Background()

	var err error
	switch job.Kind {
	case JobIndex:
		err = p.index(ctx, job.Category, job.EntityID, job.Text)
	case JobSummary:
		err = p.recomputeSummary(ctx, job.CustomerID)
	default:
		err = fmt.Errorf("unknown job kind: %s", job.Kind)
	}

	if err != nil {
		p.logger.Error("job failed",
			zap.String("kind", string(job.Kind)),
			zap.String("entity_id", job.EntityID),
			zap.String("customer_id", job.CustomerID),
			zap.Error(err),
		)
	}
}

// index embeds text and upserts it into the registry. Skips entities with no
// text rather than indexing an empty string.
func (p *Pool) index(ctx context.Context, category registry.Category, entityID, text string) error {
	if strings.TrimSpace(text) == "" {
		p.logger.Debug("skipping embedding for entity with no text",
			zap.String("category", string(category)),
			zap.String("entity_id", entityID),
		)
		return nil
	}

	embedding, err := p.config.Embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("generating embedding: %w", err)
	}

	if err := p.config.Registry.Upsert(ctx, category, entityID, embedding); err != nil {
		return fmt.Errorf("upserting embedding: %w", err)
	}

	p.logger.Debug("stored embedding",
		zap.String("category", string(category)),
		zap.String("entity_id", entityID),
		zap.Int("embedding_dim", len(embedding)),
	)

	return nil
}

// recomputeSummary rebuilds a customer's rolling purchase summary from their
// purchase history, persists it, and refreshes the user_summary index.
func (p *Pool) recomputeSummary(ctx context.Context, customerID string) error {
	customer, err := p.config.Store.GetCustomer(ctx, customerID)
	if err != nil {
		return fmt.Errorf("loading customer: %w", err)
	}

	purchases, err := p.config.Store.PurchasesByCustomer(ctx, customerID)
	if err != nil {
		return fmt.Errorf("loading purchases: %w", err)
	}

	summary := SummarizePurchases(ctx, p.config.Store, purchases)
	if summary == customer.Summary {
		return nil
	}

	customer.Summary = summary
	if err := p.config.Store.PutCustomer(ctx, customer); err != nil {
		return fmt.Errorf("storing customer summary: %w", err)
	}

	// Index strictly after the catalog write has committed.
	return p.index(ctx, registry.CategoryUserSummary, customerID, summary)
}

// SummarizePurchases renders a purchase history into embedding-ready summary
// text: meal names with counts, most recent last.
func SummarizePurchases(ctx context.Context, store catalog.Store, purchases []*catalog.Purchase) string {
	if len(purchases) == 0 {
		return ""
	}

	counts := make(map[string]int)
	var order []string
	for _, purchase := range purchases {
		name := purchase.MealID
		if meal, err := store.GetMeal(ctx, purchase.MealID); err == nil {
			name = meal.Name
		}
		if counts[name] == 0 {
			order = append(order, name)
		}
		counts[name] += purchase.Quantity
	}

	parts := make([]string, 0, len(order))
	for _, name := range order {
		parts = append(parts, fmt.Sprintf("%s x%d", name, counts[name]))
	}

	return "Frequently purchased meals: " + strings.Join(parts, ", ")
}
