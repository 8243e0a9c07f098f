package vector

import (
	"fmt"
	"math"

	"github.com/viant/sqlite-worker/value"
)

// Metric scores two embeddings of equal dimension.
type Metric func(a, b []float32) (float64, error)

// sums holds the running totals every metric is derived from.
type sums struct {
	dot    float64 // a·b
	aa, bb float64 // |a|², |b|²
	sq     float64 // |a-b|²
}

func accumulate(a, b []float32) (sums, error) {
	var s sums
	if len(a) != len(b) {
		return s, fmt.Errorf("vector: cannot compare embeddings of %d and %d dimensions", len(a), len(b))
	}
	for i, x := range a {
		fa, fb := float64(x), float64(b[i])
		s.dot += fa * fb
		s.aa += fa * fa
		s.bb += fb * fb
		s.sq += (fa - fb) * (fa - fb)
	}
	return s, nil
}

// Cosine returns the cosine of the angle between a and b. It is undefined,
// and fails, when either embedding is empty or all zeros.
func Cosine(a, b []float32) (float64, error) {
	s, err := accumulate(a, b)
	if err != nil {
		return 0, err
	}
	if s.aa == 0 || s.bb == 0 {
		return 0, fmt.Errorf("vector: cosine is undefined for an empty or zero embedding")
	}
	return s.dot / math.Sqrt(s.aa*s.bb), nil
}

// L2 returns the Euclidean distance between a and b.
func L2(a, b []float32) (float64, error) {
	s, err := accumulate(a, b)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(s.sq), nil
}

// Compare scores two Blob-encoded embeddings with m. A Null operand yields
// Null, the way SQL arithmetic propagates NULL.
func Compare(m Metric, a, b value.Value) (value.Value, error) {
	if a.IsNull() || b.IsNull() {
		return value.Null(), nil
	}
	va, err := FromValue(a)
	if err != nil {
		return value.Value{}, err
	}
	vb, err := FromValue(b)
	if err != nil {
		return value.Value{}, err
	}
	score, err := m(va, vb)
	if err != nil {
		return value.Value{}, err
	}
	return value.Float(score), nil
}
