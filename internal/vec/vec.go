// Package vec provides shared float32 vector math and input validation
// for the memory core. All norms accumulate in float64 and truncate back
// to float32 at the boundary.
package vec

import (
	"errors"
	"fmt"
	"math"
)

// #region errors

// ErrInvalidInput marks a rejected call: bad shape, NaN/Inf, or an
// out-of-range parameter. State is never mutated on a rejected call.
var ErrInvalidInput = errors.New("invalid input")

// #endregion errors

// #region validation

// Finite reports whether every element of v is a finite number.
func Finite(v []float32) bool {
	for _, x := range v {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

// FiniteScalar reports whether x is a finite number.
func FiniteScalar(x float32) bool {
	f := float64(x)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Check validates that v has exactly dim finite elements.
func Check(name string, v []float32, dim int) error {
	if len(v) != dim {
		return fmt.Errorf("%w: %s has dimension %d, want %d", ErrInvalidInput, name, len(v), dim)
	}
	if !Finite(v) {
		return fmt.Errorf("%w: %s contains NaN or Inf", ErrInvalidInput, name)
	}
	return nil
}

// #endregion validation

// #region norms

// Norm computes the L2 norm of v.
func Norm(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}

// Dot computes the dot product of a and b. Vectors must be equal length.
func Dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}

// Cosine computes the cosine similarity of a and b.
// Returns 0 when either vector has zero norm.
func Cosine(a, b []float32) float32 {
	na := Norm(a)
	nb := Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(float64(Dot(a, b)) / (float64(na) * float64(nb)))
}

// #endregion norms

// #region helpers

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Clone returns an independent copy of v.
func Clone(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

// Zero returns a zero vector of the given dimension.
func Zero(dim int) []float32 {
	return make([]float32, dim)
}

// #endregion helpers
