package distance

import (
	"fmt"
	"math"
	"slices"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two
// vectors. Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var dist float32
	for i := range a {
		d := a[i] - b[i]
		dist += d * d
	}
	return dist
}

// CosineDistance calculates 1 - dot(a, b). Both inputs must already be
// L2-normalized; the result is then 1 - cosine similarity, in [0, 2].
func CosineDistance(a, b []float32) float32 {
	return 1 - Dot(a, b)
}

// NegativeDot calculates the negative inner product, turning "larger dot is
// closer" into a distance where smaller is closer.
func NegativeDot(a, b []float32) float32 {
	return -Dot(a, b)
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v is empty or has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := 1 / float32(math.Sqrt(float64(norm2)))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	MetricL2 Metric = iota
	MetricCosine
	MetricDot
)

func (m Metric) String() string {
	switch m {
	case MetricL2:
		return "L2"
	case MetricCosine:
		return "Cosine"
	case MetricDot:
		return "Dot"
	default:
		return fmt.Sprintf("Unknown(%d)", m)
	}
}

// Func is a function type for distance calculation. Smaller results mean
// closer vectors for every Func returned by ForMetric.
type Func func(a, b []float32) float32

// ForMetric returns the distance function for the given metric.
func ForMetric(m Metric) (Func, error) {
	switch m {
	case MetricL2:
		return SquaredL2, nil
	case MetricCosine:
		return CosineDistance, nil
	case MetricDot:
		return NegativeDot, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}

// NeedsNormalization reports whether vectors under the given metric must be
// L2-normalized before they are stored or compared.
func NeedsNormalization(m Metric) bool {
	return m == MetricCosine
}
