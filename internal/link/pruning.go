package link

import (
	"sort"

	"github.com/chassisdb/chassis/internal/chassiserr"
	"github.com/chassisdb/chassis/internal/distance"
)

// vectorLookup resolves a candidate id to its vector for diversity
// pruning; implemented by *Engine in terms of its VectorSource.
type vectorLookup func(id uint64) ([]float32, error)

// selectDiverse runs Heuristic 2 (spec §4.5): sort candidates by distance
// to base ascending, greedily accept a candidate only if it is strictly
// closer to base than to every already-accepted candidate, and — if fewer
// than max(target/2, 1) were accepted — refill from the remaining
// closest-to-base candidates (starvation fallback) until target is
// reached or candidates are exhausted.
//
// Candidate sets larger than the cache's capacity are truncated to the
// maxCacheSize-1 closest to base first, per spec §4.5 ("candidate sets
// exceeding 33 must be truncated by distance to B before pruning") — this
// is the normal path whenever candidates come from an ef_construction
// search (typically far larger than 32). The CAPACITY_EXCEEDED error this
// package can raise is a defensive check for the case truncation itself
// cannot produce (see NewEngine in engine.go): it never fires given
// validated parameters.
func selectDiverse(baseID uint64, baseVec []float32, candidateIDs []uint64, target int, metric distance.Kind, lookup vectorLookup) ([]uint64, error) {
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	type scoredID struct {
		id  uint64
		vec []float32
		d   float32
	}
	scored := make([]scoredID, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		v, err := lookup(id)
		if err != nil {
			return nil, err
		}
		d, err := distance.Compute(metric, baseVec, v)
		if err != nil {
			return nil, err
		}
		scored = append(scored, scoredID{id: id, vec: v, d: d})
	}
	sort.Slice(scored, func(i, j int) bool { return distance.Less(scored[i].d, scored[j].d) })

	if len(scored) > maxCacheSize-1 {
		scored = scored[:maxCacheSize-1]
	}
	if len(scored) > maxCacheSize-1 {
		return nil, chassiserr.New(chassiserr.CapacityExceeded, "link.selectDiverse",
			"candidate set exceeds distance cache capacity", nil, uint64(len(scored)), uint64(maxCacheSize-1))
	}

	cache := newDistCache(baseID, baseVec, metric)
	idx := make([]int, len(scored))
	for i, s := range scored {
		idx[i] = cache.add(s.id, s.vec)
	}

	accepted := make([]int, 0, target)
	for _, i := range idx {
		if len(accepted) >= target {
			break
		}
		di, err := cache.distToBase(i)
		if err != nil {
			return nil, err
		}
		ok := true
		for _, a := range accepted {
			dca, err := cache.dist(i, a)
			if err != nil {
				return nil, err
			}
			if !distance.Less(di, dca) {
				ok = false
				break
			}
		}
		if ok {
			accepted = append(accepted, i)
		}
	}

	floor := target / 2
	if floor < 1 {
		floor = 1
	}
	if len(accepted) < floor {
		have := make(map[int]bool, len(accepted))
		for _, a := range accepted {
			have[a] = true
		}
		for _, i := range idx {
			if len(accepted) >= target {
				break
			}
			if have[i] {
				continue
			}
			accepted = append(accepted, i)
		}
	}

	out := make([]uint64, len(accepted))
	for i, a := range accepted {
		out[i] = cache.ids[a]
	}
	return out, nil
}
