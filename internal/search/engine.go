package search

import (
	"github.com/chassisdb/chassis/internal/chassiserr"
	"github.com/chassisdb/chassis/internal/distance"
	"github.com/chassisdb/chassis/internal/graph"
)

// GraphSource is the subset of *graph.Region the search engine reads.
type GraphSource interface {
	NodeCount() uint64
	EntryPoint() uint64
	ReadNode(id uint64) (*graph.Record, error)
}

// VectorSource resolves a node id to its vector bytes. The caller is
// responsible for holding whatever lock keeps the returned slice valid for
// the duration of the search (spec §5: search is a non-mutating,
// shared-access operation; the facade holds the Storage RLock around the
// whole call).
type VectorSource interface {
	Vector(id uint64) ([]float32, error)
}

// Engine implements C6: hierarchical top-down search over a GraphSource,
// scoring with a VectorSource and C1's distance kernels.
type Engine struct {
	Nodes     GraphSource
	Vectors   VectorSource
	Metric    distance.Kind
	Dimension uint32
}

func (e *Engine) distTo(query []float32, id uint64) (float32, error) {
	v, err := e.Vectors.Vector(id)
	if err != nil {
		return 0, err
	}
	return distance.Compute(e.Metric, query, v)
}

// SearchLayer runs HNSW's search_layer primitive: a greedy best-first
// search bounded to ef results, starting from entry (spec §4.6). Used both
// for the ef=1 descents between layers and for the full-ef pass at layer
// 0, and reused as-is by the linking engine at construction time.
func (e *Engine) SearchLayer(query []float32, entry uint64, ef int, layer int) ([]Candidate, error) {
	n := e.Nodes.NodeCount()
	if n == 0 {
		return nil, nil
	}

	vis := newVisited(n)
	d0, err := e.distTo(query, entry)
	if err != nil {
		return nil, err
	}

	var cand minHeap
	var result maxHeap
	cand.pushC(Candidate{ID: entry, Dist: d0})
	result.pushC(Candidate{ID: entry, Dist: d0})
	vis.mark(entry)

	for cand.Len() > 0 {
		c := cand.popC()
		if result.Len() >= ef && distance.Less(result.peek().Dist, c.Dist) {
			break
		}

		rec, err := e.Nodes.ReadNode(c.ID)
		if err != nil {
			return nil, err
		}
		if layer >= rec.LayerCount() {
			continue
		}

		for nb := range rec.Neighbors(layer) {
			if vis.seen(nb) {
				continue
			}
			vis.mark(nb)

			d, err := e.distTo(query, nb)
			if err != nil {
				return nil, err
			}
			if result.Len() < ef || distance.Less(d, result.peek().Dist) {
				cand.pushC(Candidate{ID: nb, Dist: d})
				result.pushC(Candidate{ID: nb, Dist: d})
				if result.Len() > ef {
					result.popC()
				}
			}
		}
	}

	out := make([]Candidate, result.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = result.popC()
	}
	return out, nil
}

// Search returns the k nearest node ids to query (spec §4.6). An empty
// graph yields an empty, non-error result. ef is raised to k if smaller.
func (e *Engine) Search(query []float32, k int, efSearch int) ([]Candidate, error) {
	if e.Dimension != 0 && uint32(len(query)) != e.Dimension {
		return nil, chassiserr.New(chassiserr.DimensionMismatch, "search.Search",
			"query length does not match dimension", nil, uint64(len(query)), uint64(e.Dimension))
	}

	n := e.Nodes.NodeCount()
	if n == 0 || k <= 0 {
		return nil, nil
	}

	ef := efSearch
	if ef < k {
		ef = k
	}

	entry := e.Nodes.EntryPoint()
	rec, err := e.Nodes.ReadNode(entry)
	if err != nil {
		return nil, err
	}

	cur := entry
	for layer := rec.LayerCount() - 1; layer > 0; layer-- {
		res, err := e.SearchLayer(query, cur, 1, layer)
		if err != nil {
			return nil, err
		}
		if len(res) > 0 {
			cur = res[0].ID
		}
	}

	res, err := e.SearchLayer(query, cur, ef, 0)
	if err != nil {
		return nil, err
	}
	if len(res) > k {
		res = res[:k]
	}
	return res, nil
}
