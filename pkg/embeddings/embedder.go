// Package embeddings
package embeddings

import "context"

// Embedder provides text embedding capabilities.
//
// Implementations are expected to return vectors of a stable dimension with
// unit L2 norm. The vector index layer rejects anything else, so a backend
// that does not normalize its output must be wrapped before use.
type Embedder interface {
	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
