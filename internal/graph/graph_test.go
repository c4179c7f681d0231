package graph

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// fakeStorage is an in-memory stand-in for *storage.File, sized generously
// so capacity growth in these tests is never exercised against a real
// page-aligned mmap — that behavior belongs to the storage package's own
// tests. It backs Lock/Unlock/RLock/RUnlock with a real sync.RWMutex
// (rather than no-ops) so a Region method that re-locks sf from inside an
// already-locked call deadlocks here too, the same way it would against
// the real *storage.File.
type fakeStorage struct {
	mu sync.RWMutex

	data       []byte
	graphStart uint64
	vecCount   uint64
}

func newFakeStorage(size int) *fakeStorage {
	return &fakeStorage{data: make([]byte, size)}
}

func (f *fakeStorage) Bytes() []byte { return f.data }

func (f *fakeStorage) GraphStart() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.graphStart
}

func (f *fakeStorage) GraphStartLocked() uint64 { return f.graphStart }

func (f *fakeStorage) ReserveGraphRegion(hint uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.graphStart == 0 {
		f.graphStart = 4096
	}
	return f.graphStart, nil
}
func (f *fakeStorage) EnsureCapacity(min int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if int64(len(f.data)) < min {
		grown := make([]byte, min+4096)
		copy(grown, f.data)
		f.data = grown
	}
	return nil
}
func (f *fakeStorage) VectorCount() uint64 { return f.vecCount }
func (f *fakeStorage) Lock()               { f.mu.Lock() }
func (f *fakeStorage) Unlock()             { f.mu.Unlock() }
func (f *fakeStorage) RLock()              { f.mu.RLock() }
func (f *fakeStorage) RUnlock()            { f.mu.RUnlock() }

func testParams() Params {
	return Params{M: 16, M0: 32, MaxLayers: 8}
}

func testDefaults() Defaults {
	return Defaults{EfConstruction: 200, EfSearch: 64, ML: 0.36, Metric: MetricEuclideanSquared}
}

func TestRecordSizeAndOffsets(t *testing.T) {
	p := testParams()
	size := RecordSize(p)
	require.Greater(t, size, int64(nodeHeaderSize))
	require.Equal(t, int64(0), size%8)
	require.Equal(t, int64(nodeHeaderSize), offsetOfLayer(p, 0))
	require.Equal(t, int64(nodeHeaderSize)+int64(p.M0)*8, offsetOfLayer(p, 1))
	require.Equal(t, int64(nodeHeaderSize)+int64(p.M0)*8+int64(p.M)*8, offsetOfLayer(p, 2))
}

func TestRecordNeighborsRoundTrip(t *testing.T) {
	p := testParams()
	buf := make([]byte, RecordSize(p))
	rec := NewEmpty(buf, p, 42, 3)

	require.Equal(t, uint64(42), rec.ID())
	require.Equal(t, 3, rec.LayerCount())
	require.Equal(t, 0, rec.NeighborCount(0))

	require.True(t, rec.AddNeighbor(0, 7))
	require.True(t, rec.AddNeighbor(0, 9))
	require.True(t, rec.HasNeighbor(0, 7))
	require.False(t, rec.HasNeighbor(0, 100))
	require.Equal(t, 2, rec.NeighborCount(0))

	var got []uint64
	for id := range rec.Neighbors(0) {
		got = append(got, id)
	}
	require.ElementsMatch(t, []uint64{7, 9}, got)
}

// TestRecordSetNeighborsPreservesOrder checks that SetNeighbors (unlike
// the incremental AddNeighbor used above) writes an exact, order-preserving
// slot assignment — diversity pruning relies on this to keep its
// closest-to-base-first ordering intact across a write-back.
func TestRecordSetNeighborsPreservesOrder(t *testing.T) {
	p := testParams()
	buf := make([]byte, RecordSize(p))
	rec := NewEmpty(buf, p, 1, 1)

	want := []uint64{5, 2, 9, 1}
	rec.SetNeighbors(0, want)

	var got []uint64
	for id := range rec.Neighbors(0) {
		got = append(got, id)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("neighbor order mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordAddNeighborFullReturnsFalse(t *testing.T) {
	p := Params{M: 2, M0: 2, MaxLayers: 2}
	buf := make([]byte, RecordSize(p))
	rec := NewEmpty(buf, p, 1, 1)

	require.True(t, rec.AddNeighbor(0, 1))
	require.True(t, rec.AddNeighbor(0, 2))
	require.False(t, rec.AddNeighbor(0, 3))
}

func TestRecordSetNeighborsPanicsOnOverflow(t *testing.T) {
	p := Params{M: 2, M0: 2, MaxLayers: 2}
	buf := make([]byte, RecordSize(p))
	rec := NewEmpty(buf, p, 1, 1)

	require.Panics(t, func() {
		rec.SetNeighbors(0, []uint64{1, 2, 3})
	})
}

func TestRecordSetNeighborsPanicsOnLayerOutOfRange(t *testing.T) {
	p := testParams()
	buf := make([]byte, RecordSize(p))
	rec := NewEmpty(buf, p, 1, 2)

	require.Panics(t, func() {
		rec.SetNeighbors(5, []uint64{1})
	})
}

func TestFromBytesValidatesLength(t *testing.T) {
	p := testParams()
	_, err := FromBytes(make([]byte, 3), p)
	require.Error(t, err)
}

func TestFromBytesValidatesLayerCount(t *testing.T) {
	p := testParams()
	buf := make([]byte, RecordSize(p))
	buf[8] = p.MaxLayers + 1
	_, err := FromBytes(buf, p)
	require.Error(t, err)
}

func TestGraphHeaderEncodeDecodeRoundTrip(t *testing.T) {
	h := &ghHeader{
		version:        CurrentVersion,
		m:              16,
		m0:             32,
		maxLayers:      8,
		nodeCount:      5,
		entryPoint:     3,
		mL:             0.36,
		efConstruction: 200,
		efSearch:       64,
		metric:         MetricEuclideanRooted,
	}
	buf := make([]byte, HeaderSize)
	encodeGraphHeader(buf, h)

	got, err := decodeGraphHeader(buf)
	require.NoError(t, err)
	require.Equal(t, h.m, got.m)
	require.Equal(t, h.m0, got.m0)
	require.Equal(t, h.maxLayers, got.maxLayers)
	require.Equal(t, h.nodeCount, got.nodeCount)
	require.Equal(t, h.entryPoint, got.entryPoint)
	require.InDelta(t, h.mL, got.mL, 1e-9)
	require.Equal(t, h.efConstruction, got.efConstruction)
	require.Equal(t, h.efSearch, got.efSearch)
	require.Equal(t, h.metric, got.metric)
}

func TestDecodeGraphHeaderRejectsBadMagic(t *testing.T) {
	buf := make([]byte, HeaderSize)
	_, err := decodeGraphHeader(buf)
	require.Error(t, err)
}

func TestRegionCreateAndPublishFirstNode(t *testing.T) {
	sf := newFakeStorage(8192)
	p := testParams()
	r, err := Open(sf, p, testDefaults(), nil)
	require.NoError(t, err)
	require.Equal(t, uint64(0), r.NodeCount())

	require.NoError(t, r.EnsureNodeCapacity(1))
	rec, err := r.AllocateNode(0, 3)
	require.NoError(t, err)
	require.Equal(t, uint64(0), rec.ID())

	require.NoError(t, r.Publish(0, 2))
	require.Equal(t, uint64(1), r.NodeCount())
	require.Equal(t, uint64(0), r.EntryPoint())
}

func TestRegionPublishRejectsNonMonotonicID(t *testing.T) {
	sf := newFakeStorage(8192)
	p := testParams()
	r, err := Open(sf, p, testDefaults(), nil)
	require.NoError(t, err)

	require.NoError(t, r.EnsureNodeCapacity(1))
	_, err = r.AllocateNode(0, 1)
	require.NoError(t, err)

	err = r.Publish(5, 0)
	require.Error(t, err)
}

func TestRegionReadNodeRejectsUnpublished(t *testing.T) {
	sf := newFakeStorage(8192)
	p := testParams()
	r, err := Open(sf, p, testDefaults(), nil)
	require.NoError(t, err)

	require.NoError(t, r.EnsureNodeCapacity(1))
	_, err = r.AllocateNode(0, 1)
	require.NoError(t, err)

	_, err = r.ReadNode(0)
	require.Error(t, err)
}

func TestRegionEntryPointTracksTallestNode(t *testing.T) {
	sf := newFakeStorage(1 << 16)
	p := testParams()
	r, err := Open(sf, p, testDefaults(), nil)
	require.NoError(t, err)

	require.NoError(t, r.EnsureNodeCapacity(3))

	_, err = r.AllocateNode(0, 1)
	require.NoError(t, err)
	require.NoError(t, r.Publish(0, 0))

	_, err = r.AllocateNode(1, 4)
	require.NoError(t, err)
	require.NoError(t, r.Publish(1, 3))
	require.Equal(t, uint64(1), r.EntryPoint())

	_, err = r.AllocateNode(2, 2)
	require.NoError(t, err)
	require.NoError(t, r.Publish(2, 1))
	require.Equal(t, uint64(1), r.EntryPoint())
}

func TestRegionValidatesParamsOnReopen(t *testing.T) {
	sf := newFakeStorage(8192)
	p := testParams()
	_, err := Open(sf, p, testDefaults(), nil)
	require.NoError(t, err)

	wrong := p
	wrong.M = p.M + 1
	_, err = Open(sf, wrong, testDefaults(), nil)
	require.Error(t, err)
}
