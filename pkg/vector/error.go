package vector

import (
	"errors"
	"fmt"
)

// ErrConnection is returned when a remote index backend cannot be reached.
var ErrConnection = errors.New("vector index connection failed")

// DimensionError is returned when an embedding's length differs from the
// index's fixed dimension.
type DimensionError struct {
	Want int
	Got  int
}

func (e DimensionError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: want %d, got %d", e.Want, e.Got)
}

// NormError is returned when an embedding's L2 norm deviates from 1 by more
// than NormTolerance. Off-norm vectors are rejected, not renormalized.
type NormError struct {
	Norm float64
}

func (e NormError) Error() string {
	return fmt.Sprintf("embedding is not unit length: ‖v‖ = %g", e.Norm)
}
