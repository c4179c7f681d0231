package search

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chassisdb/chassis/internal/distance"
	"github.com/chassisdb/chassis/internal/graph"
)

// fakeGraph is a tiny in-memory HNSW graph used to exercise Engine without
// the storage/graph file machinery.
type fakeGraph struct {
	params     graph.Params
	records    [][]byte
	entryPoint uint64
}

func newFakeGraph(p graph.Params) *fakeGraph {
	return &fakeGraph{params: p}
}

func (g *fakeGraph) NodeCount() uint64 { return uint64(len(g.records)) }
func (g *fakeGraph) EntryPoint() uint64 { return g.entryPoint }

func (g *fakeGraph) ReadNode(id uint64) (*graph.Record, error) {
	return graph.FromBytes(g.records[id], g.params)
}

// addNode appends node id = len(records) with the given layer-0 neighbor
// list (layer 0 only, sufficient for these tests) and returns its id.
func (g *fakeGraph) addNode(layerCount int, layer0Neighbors []uint64, topLayerEntry bool) uint64 {
	id := uint64(len(g.records))
	buf := make([]byte, graph.RecordSize(g.params))
	rec := graph.NewEmpty(buf, g.params, id, layerCount)
	rec.SetNeighbors(0, layer0Neighbors)
	g.records = append(g.records, rec.ToBytes())
	if topLayerEntry || len(g.records) == 1 {
		g.entryPoint = id
	}
	return id
}

// fakeVectors resolves node id -> vector by plain index into a slice.
type fakeVectors struct {
	vecs [][]float32
}

func (v *fakeVectors) Vector(id uint64) ([]float32, error) { return v.vecs[id], nil }

func chain(p graph.Params, vecs [][]float32) (*fakeGraph, *fakeVectors) {
	g := newFakeGraph(p)
	for i, v := range vecs {
		var neighbors []uint64
		if i > 0 {
			neighbors = append(neighbors, uint64(i-1))
		}
		g.addNode(1, neighbors, false)
		_ = v
	}
	// Make every node reachable from every other at layer 0 by also
	// linking forward (HNSW backlinks would normally do this at insert
	// time; the fake graph wires it directly for test simplicity).
	for i := 0; i < len(g.records)-1; i++ {
		rec, _ := graph.FromBytes(g.records[i], p)
		rec.AddNeighbor(0, uint64(i+1))
		g.records[i] = rec.ToBytes()
	}
	return g, &fakeVectors{vecs: vecs}
}

func TestSearchEmptyGraphReturnsEmpty(t *testing.T) {
	p := graph.Params{M: 16, M0: 32, MaxLayers: 8}
	g := newFakeGraph(p)
	e := &Engine{Nodes: g, Vectors: &fakeVectors{}, Metric: distance.Squared, Dimension: 3}

	res, err := e.Search([]float32{1, 0, 0}, 5, 50)
	require.NoError(t, err)
	require.Empty(t, res)
}

func TestSearchSingleNode(t *testing.T) {
	p := graph.Params{M: 16, M0: 32, MaxLayers: 8}
	g, v := chain(p, [][]float32{{0, 0, 0}})

	e := &Engine{Nodes: g, Vectors: v, Metric: distance.Squared, Dimension: 3}
	res, err := e.Search([]float32{1, 1, 1}, 1, 50)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, uint64(0), res[0].ID)
}

func TestSearchUnitBasisNearestNeighbor(t *testing.T) {
	p := graph.Params{M: 16, M0: 32, MaxLayers: 8}
	g, v := chain(p, [][]float32{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	})

	e := &Engine{Nodes: g, Vectors: v, Metric: distance.Rooted, Dimension: 3}
	res, err := e.Search([]float32{1, 0.1, 0}, 1, 50)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, uint64(0), res[0].ID)
	require.InDelta(t, 0.1, res[0].Dist, 1e-4)
}

func TestSearchReturnsAscendingNoDuplicates(t *testing.T) {
	p := graph.Params{M: 16, M0: 32, MaxLayers: 8}
	vecs := [][]float32{
		{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}, {4, 0, 0},
	}
	g, v := chain(p, vecs)

	e := &Engine{Nodes: g, Vectors: v, Metric: distance.Squared, Dimension: 3}
	res, err := e.Search([]float32{0, 0, 0}, 3, 50)
	require.NoError(t, err)
	require.LessOrEqual(t, len(res), 3)

	seen := map[uint64]bool{}
	for i, c := range res {
		require.False(t, seen[c.ID])
		seen[c.ID] = true
		if i > 0 {
			require.True(t, res[i-1].Dist <= c.Dist)
		}
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	p := graph.Params{M: 16, M0: 32, MaxLayers: 8}
	g, v := chain(p, [][]float32{{0, 0, 0}})
	e := &Engine{Nodes: g, Vectors: v, Metric: distance.Squared, Dimension: 3}

	_, err := e.Search([]float32{1, 2}, 1, 10)
	require.Error(t, err)
}
