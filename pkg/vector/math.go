package vector

import "math"

// NormTolerance is how far an embedding's L2 norm may deviate from 1 before
// it is rejected with a NormError.
const NormTolerance = 1e-3

// Dot returns the dot product of two equal-length vectors. For unit vectors
// this equals their cosine similarity.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// ValidateUnit checks that v has the wanted dimension and unit L2 norm.
// A zero want skips the dimension check (used by indexes that infer their
// dimension from the first insert).
func ValidateUnit(v []float32, want int) error {
	if want > 0 && len(v) != want {
		return DimensionError{Want: want, Got: len(v)}
	}

	if n := Norm(v); math.Abs(n-1) > NormTolerance {
		return NormError{Norm: n}
	}

	return nil
}
