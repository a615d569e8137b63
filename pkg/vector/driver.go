// Package vector provides interfaces and implementations for vector index
// storage and cosine similarity search.
//
// All stored embeddings are unit length, so cosine similarity reduces to a
// plain dot product. Every index implementation enforces the unit-norm
// invariant at the upsert boundary; vectors that are off-norm are rejected
// rather than renormalized so that an upstream embedding bug surfaces
// instead of being papered over.
package vector

import "context"

// Result represents a search hit with its similarity score.
type Result struct {
	// ID is the stable identifier of the indexed entity.
	ID string

	// Score is the cosine similarity to the query vector (higher = more similar).
	Score float32
}

// Index handles storage and retrieval of vector embeddings for one semantic
// category.
type Index interface {
	// Upsert stores an embedding under id. If an entry with the same id
	// already exists it is replaced, never duplicated. A failed upsert
	// leaves any prior entry for that id untouched.
	Upsert(ctx context.Context, id string, embedding []float32) error

	// Remove deletes the entry for id. Removing an absent id is a no-op.
	Remove(ctx context.Context, id string) error

	// Query returns up to k entries ordered by descending dot product with
	// the query embedding, ties broken by ascending id.
	Query(ctx context.Context, embedding []float32, k int) ([]Result, error)

	// Size returns the number of entries currently held.
	Size(ctx context.Context) (int, error)

	// Close releases any resources held by the index.
	Close() error
}
