// Package vecmath provides the small set of float32 vector operations used by the
// embedding and similarity stages. Accumulation is done in float64.
package vecmath

import (
	"math"
)

// NormalizeL2 scales vector to unit length in place.
// A zero vector is left unchanged; callers treat it as degenerate.
func NormalizeL2(vector []float32) {
	norm := Norm(vector)
	if norm == 0 {
		return
	}

	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
}

// Norm returns the Euclidean length of v.
func Norm(v []float32) float64 {
	var sumSquares float64
	for _, x := range v {
		sumSquares += float64(x) * float64(x)
	}

	return math.Sqrt(sumSquares)
}

// Dot returns the dot product of a and b. Both must have the same length.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}

	return sum
}

// Cosine returns dot(a, b) / (|a| |b|) given precomputed norms.
// Returns 0 when either norm is zero. The result is clamped to [-1, 1].
func Cosine(a, b []float32, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}

	return Clamp(Dot(a, b)/(normA*normB), -1, 1)
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
