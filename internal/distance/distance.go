// Package distance implements the symmetric Euclidean distance kernel used
// throughout the graph: diversity pruning, the lazy distance cache, and the
// search engine all route through Compute.
package distance

import (
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned when two slices passed to Compute have
// different lengths.
var ErrDimensionMismatch = fmt.Errorf("distance: dimension mismatch")

// Kind selects which of the two documented variants a file was built with.
// The choice is fixed per file (see the Graph Header reserved byte) and
// never changes after creation.
type Kind uint8

const (
	// Squared is the default: cheaper (no sqrt) and the variant every
	// internal comparison (pruning, search ordering) actually needs.
	Squared Kind = iota
	// Rooted reports true Euclidean distance, for callers that want the
	// metric in the vector's native units.
	Rooted
)

// Func computes distance between two equal-length float32 slices.
type Func func(a, b []float32) (float32, error)

// Compute is the dispatch entry point. It never panics on a length
// mismatch; callers get ErrDimensionMismatch instead, per the core's
// closed error taxonomy (precondition violations fail before any unchecked
// code is entered).
func Compute(kind Kind, a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	sq := squaredEuclidean(a, b)
	if kind == Rooted {
		return sqrtf32(sq), nil
	}
	return sq, nil
}

// SquaredEuclidean is a convenience for the overwhelmingly common case (internal
// ordering comparisons, where the monotonic squared distance is sufficient
// and avoids a sqrt per pair). It still validates lengths.
func SquaredEuclidean(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	return squaredEuclidean(a, b), nil
}

// squaredEuclidean dispatches to the best available kernel for the current
// process. The dispatch decision is made once at init time (see
// kernel_amd64.go / kernel_arm64.go / kernel_generic.go) and stored in a
// package-level function variable — the only global mutable state in this
// package, and it is never written again after init.
func squaredEuclidean(a, b []float32) float32 {
	return kernel(a, b)
}

func sqrtf32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}
