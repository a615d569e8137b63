// Package flat provides an in-memory exact-scan vector index.
//
// Queries score every stored vector by dot product, so results are exact
// top-k rather than approximate. Catalog sizes here are tens of thousands of
// entries at most, which an exact scan handles comfortably while keeping the
// ordering guarantees testable.
package flat

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/vector"
)

// Index implements vector.Index with a mutex-guarded map and a full scan on
// query. Upserts replace the stored slice wholesale, so a concurrent reader
// observes either the old or the new vector, never a partial write.
type Index struct {
	mu         sync.RWMutex
	dimensions int
	entries    map[string][]float32
	logger     *zap.Logger
}

// Config holds configuration for the flat index.
type Config struct {
	// Dimensions is the fixed embedding dimension for this index.
	Dimensions int
}

// NewIndex creates a new flat in-memory index.
func NewIndex(c Config, logger *zap.Logger) (*Index, error) {
	if c.Dimensions <= 0 {
		return nil, vector.DimensionError{Want: 1, Got: c.Dimensions}
	}

	return &Index{
		dimensions: c.Dimensions,
		entries:    make(map[string][]float32),
		logger:     logger,
	}, nil
}

// Upsert stores an embedding under id, replacing any prior entry.
func (x *Index) Upsert(_ context.Context, id string, embedding []float32) error {
	if err := vector.ValidateUnit(embedding, x.dimensions); err != nil {
		return err
	}

	stored := make([]float32, len(embedding))
	copy(stored, embedding)

	x.mu.Lock()
	x.entries[id] = stored
	x.mu.Unlock()

	x.logger.Debug("upserted vector",
		zap.String("id", id),
	)

	return nil
}

// Remove deletes the entry for id. Absent ids are a no-op.
func (x *Index) Remove(_ context.Context, id string) error {
	x.mu.Lock()
	delete(x.entries, id)
	x.mu.Unlock()

	return nil
}

// Query returns up to k entries by descending dot product, ties broken by
// ascending id.
func (x *Index) Query(_ context.Context, embedding []float32, k int) ([]vector.Result, error) {
	if err := vector.ValidateUnit(embedding, x.dimensions); err != nil {
		return nil, err
	}

	if k <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	results := make([]vector.Result, 0, len(x.entries))
	for id, vec := range x.entries {
		results = append(results, vector.Result{
			ID:    id,
			Score: vector.Dot(embedding, vec),
		})
	}
	x.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

// Size returns the number of stored entries.
func (x *Index) Size(_ context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries), nil
}

// Close is a no-op for the in-memory index.
func (x *Index) Close() error {
	return nil
}

var _ vector.Index = (*Index)(nil)
