package distance

import "math"

// Less implements the total order the spec requires for distance
// comparisons: NaN compares greater than any finite value (so it always
// sorts last and never wins a "closest" comparison), and -0 < +0. No
// comparison here can produce the "unordered" result IEEE 754 gives for
// NaN, so nothing downstream needs to branch on NaN to avoid a panic.
func Less(a, b float32) bool {
	if a == b {
		// Distinguish -0 from +0: bit pattern compare only matters in
		// this tie case, everything else is already ordered correctly
		// by the float compare below.
		return math.Signbit(float64(a)) && !math.Signbit(float64(b))
	}
	aNaN, bNaN := a != a, b != b
	if aNaN && bNaN {
		return false
	}
	if aNaN {
		return false // a (NaN) is never less than anything
	}
	if bNaN {
		return true // any finite a is less than NaN
	}
	return a < b
}
