package link

import (
	"math"

	"github.com/chassisdb/chassis/internal/distance"
)

// maxCacheSize is the compile-time maximum for the lazy symmetric distance
// cache (spec §4.5): 33 points — the base node plus up to 32 candidates,
// matching the largest configurable slot capacity this engine accepts
// (see NewEngine in engine.go).
const maxCacheSize = 33

// distCache is a lazily-filled, symmetric pairwise-distance matrix over a
// base point (always index 0) and its candidates (indices 1..n-1). Entries
// start at a NaN sentinel; dist(i,j) fills both (i,j) and (j,i) on first
// use. Sized as a fixed array so it never escapes to a separate heap
// allocation distinct from the enclosing call frame.
type distCache struct {
	ids    [maxCacheSize]uint64
	vecs   [maxCacheSize][]float32
	mat    [maxCacheSize][maxCacheSize]float32
	n      int
	metric distance.Kind
}

func newDistCache(baseID uint64, baseVec []float32, metric distance.Kind) *distCache {
	c := &distCache{metric: metric}
	for i := range c.mat {
		for j := range c.mat[i] {
			c.mat[i][j] = float32(math.NaN())
		}
	}
	c.ids[0] = baseID
	c.vecs[0] = baseVec
	c.n = 1
	return c
}

// add registers a candidate point and returns its index (always ≥ 1).
// Caller must ensure n never exceeds maxCacheSize.
func (c *distCache) add(id uint64, vec []float32) int {
	idx := c.n
	c.ids[idx] = id
	c.vecs[idx] = vec
	c.n++
	return idx
}

// dist returns the distance between points i and j, computing and caching
// it on first request. A NaN result (only possible from a NaN-valued
// stored vector) is never treated as "cached" — it is recomputed every
// time, which is harmless: it just forgoes caching for that one
// pathological pair.
func (c *distCache) dist(i, j int) (float32, error) {
	if i == j {
		return 0, nil
	}
	if !math.IsNaN(float64(c.mat[i][j])) {
		return c.mat[i][j], nil
	}
	d, err := distance.Compute(c.metric, c.vecs[i], c.vecs[j])
	if err != nil {
		return 0, err
	}
	c.mat[i][j] = d
	c.mat[j][i] = d
	return d, nil
}

func (c *distCache) distToBase(i int) (float32, error) { return c.dist(0, i) }
