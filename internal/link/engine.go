// Package link implements C5: the crash-consistent bidirectional linking
// engine that grows the HNSW graph one node at a time.
package link

import (
	"math"
	"math/rand"
	"sync"

	"github.com/chassisdb/chassis/internal/chassiserr"
	"github.com/chassisdb/chassis/internal/distance"
	"github.com/chassisdb/chassis/internal/graph"
	"github.com/chassisdb/chassis/internal/search"
)

// VectorSource resolves a node id to its vector. Shared with the search
// package's interface of the same shape so a single storage adapter in the
// facade satisfies both.
type VectorSource interface {
	Vector(id uint64) ([]float32, error)
}

// Engine drives graph.Region to install one new node at a time using the
// three-step protocol from spec §4.5: persist the node record, update
// backlinks (with diversity pruning), then publish.
type Engine struct {
	Graph          *graph.Region
	Vectors        VectorSource
	Metric         distance.Kind
	Params         graph.Params
	EfConstruction uint32
	ML             float32
	Dimension      uint32

	mu  sync.Mutex // serializes rng access only; serializing InsertNode calls is the caller's job (chassis.DB.writeMu)
	rng *rand.Rand
}

// NewEngine validates params against the distance cache's fixed capacity
// (spec §4.5: candidate sets are truncated to 32 before pruning, so no
// configured slot may itself exceed 32) before constructing the engine.
func NewEngine(g *graph.Region, vectors VectorSource, metric distance.Kind, params graph.Params, efConstruction uint32, mL float32, dimension uint32, seed int64) (*Engine, error) {
	if params.M0 > maxCacheSize-1 || params.M > maxCacheSize-1 {
		return nil, chassiserr.New(chassiserr.CapacityExceeded, "link.NewEngine",
			"M and M0 must each be at most the distance cache capacity minus the base point", nil,
			uint64(params.M), uint64(params.M0), uint64(maxCacheSize-1))
	}
	return &Engine{
		Graph:          g,
		Vectors:        vectors,
		Metric:         metric,
		Params:         params,
		EfConstruction: efConstruction,
		ML:             mL,
		Dimension:      dimension,
		rng:            rand.New(rand.NewSource(seed)),
	}, nil
}

func (e *Engine) targetSize(layer int) int {
	if layer == 0 {
		return int(e.Params.M0)
	}
	return int(e.Params.M)
}

// generateLevel draws this node's top layer using the standard HNSW
// exponential-decay level distribution with multiplier ML, capped to the
// file's fixed max_layers.
func (e *Engine) generateLevel() int {
	e.mu.Lock()
	u := e.rng.Float64()
	e.mu.Unlock()
	if u <= 0 {
		u = 1e-300
	}
	level := int(math.Floor(-math.Log(u) * float64(e.ML)))
	if level > int(e.Params.MaxLayers)-1 {
		level = int(e.Params.MaxLayers) - 1
	}
	if level < 0 {
		level = 0
	}
	return level
}

func (e *Engine) lookup(id uint64) ([]float32, error) { return e.Vectors.Vector(id) }

// InsertNode runs the three-step protocol for node id. id must equal the
// graph's current node count (spec §4.5 "sequentiality"); otherwise this
// fails with NON_MONOTONIC_ID without mutating anything. Recovers
// transparently from a prior crash that left a ghost node at id: the
// stale bytes are simply overwritten by AllocateNode before being
// republished.
func (e *Engine) InsertNode(id uint64) error {
	n := e.Graph.NodeCount()
	if id != n {
		return chassiserr.New(chassiserr.NonMonotonicID, "link.InsertNode",
			"insert_node requires id == current node count", nil, id, n)
	}

	vec, err := e.Vectors.Vector(id)
	if err != nil {
		return err
	}

	layerCount := e.generateLevel() + 1

	if err := e.Graph.EnsureNodeCapacity(id + 1); err != nil {
		return err
	}

	if n == 0 {
		if _, err := e.Graph.AllocateNode(id, layerCount); err != nil {
			return err
		}
		return e.Graph.Publish(id, layerCount-1)
	}

	selected, err := e.selectNeighbors(id, vec, layerCount)
	if err != nil {
		return err
	}

	// Step 1: persist A's own record with its pruned outgoing links.
	rec, err := e.Graph.AllocateNode(id, layerCount)
	if err != nil {
		return err
	}
	for layer := 0; layer < layerCount; layer++ {
		rec.SetNeighbors(layer, selected[layer])
	}

	// Step 2: update backlinks, independently per neighbor per layer.
	for layer := 0; layer < layerCount; layer++ {
		for _, b := range selected[layer] {
			if err := e.addBacklink(b, id, layer); err != nil {
				return err
			}
		}
	}

	// Step 3: publish.
	return e.Graph.Publish(id, layerCount-1)
}

// selectNeighbors runs the top-down search-then-prune phases that pick the
// new node's neighbors at every layer it participates in (spec §4.5: the
// search descent down to layerCount with ef=1, then ef_construction search
// plus Heuristic 2 at each of the node's own layers).
func (e *Engine) selectNeighbors(id uint64, vec []float32, layerCount int) ([][]uint64, error) {
	se := &search.Engine{Nodes: e.Graph, Vectors: vectorSourceAdapter{e.Vectors}, Metric: e.Metric, Dimension: e.Dimension}

	entry := e.Graph.EntryPoint()
	entryRec, err := e.Graph.ReadNode(entry)
	if err != nil {
		return nil, err
	}
	topLayer := entryRec.LayerCount() - 1

	cur := entry
	for layer := topLayer; layer >= layerCount; layer-- {
		res, err := se.SearchLayer(vec, cur, 1, layer)
		if err != nil {
			return nil, err
		}
		if len(res) > 0 {
			cur = res[0].ID
		}
	}

	selected := make([][]uint64, layerCount)
	start := topLayer
	if layerCount-1 < start {
		start = layerCount - 1
	}
	for layer := start; layer >= 0; layer-- {
		candidates, err := se.SearchLayer(vec, cur, int(e.EfConstruction), layer)
		if err != nil {
			return nil, err
		}
		ids := make([]uint64, 0, len(candidates))
		for _, c := range candidates {
			if c.ID == id || c.ID >= id {
				continue
			}
			ids = append(ids, c.ID)
		}
		picked, err := selectDiverse(id, vec, ids, e.targetSize(layer), e.Metric, e.lookup)
		if err != nil {
			return nil, err
		}
		selected[layer] = picked
		if len(candidates) > 0 {
			cur = candidates[0].ID
		}
	}
	for layer := start + 1; layer < layerCount; layer++ {
		selected[layer] = nil
	}
	return selected, nil
}

// addBacklink makes A a neighbor of B at layer, pruning B's slot
// (diversity, including A) if it is already full. Idempotent: repeating an
// insertion that previously crashed mid-step-2 converges without
// duplicating edges (spec §4.5 "idempotency").
//
// B's record is obtained as a zero-copy view into the live mapping
// (graph.Region.ReadNode), so AddNeighbor/SetNeighbors writes through it
// are already persisted in the mapping — no separate write-back call is
// needed.
func (e *Engine) addBacklink(b, a uint64, layer int) error {
	rec, err := e.Graph.ReadNode(b)
	if err != nil {
		return err
	}
	if rec.HasNeighbor(layer, a) {
		return nil
	}
	if rec.AddNeighbor(layer, a) {
		return nil
	}

	bVec, err := e.Vectors.Vector(b)
	if err != nil {
		return err
	}
	existing := make([]uint64, 0, rec.NeighborCount(layer)+1)
	for nb := range rec.Neighbors(layer) {
		existing = append(existing, nb)
	}
	existing = append(existing, a)

	pruned, err := selectDiverse(b, bVec, existing, e.targetSize(layer), e.Metric, e.lookup)
	if err != nil {
		return err
	}
	rec.SetNeighbors(layer, pruned)
	return nil
}

// vectorSourceAdapter lets link's VectorSource satisfy search.VectorSource
// (identical method shape; kept as distinct named interfaces so each
// package documents its own contract independently).
type vectorSourceAdapter struct{ v VectorSource }

func (a vectorSourceAdapter) Vector(id uint64) ([]float32, error) { return a.v.Vector(id) }
