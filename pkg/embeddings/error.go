package embeddings

import "errors"

var (
	// ErrUnavailable is returned when the embedding backend cannot be
	// reached or keeps failing after retries. Callers should degrade to
	// non-semantic matching rather than fail the whole operation.
	ErrUnavailable = errors.New("embedding backend unavailable")

	// ErrEmptyText is returned when an empty string is submitted for embedding.
	ErrEmptyText = errors.New("cannot embed empty text")
)
