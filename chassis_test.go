package chassis

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func tempPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.chassis")
}

// Scenario 1 (spec §8): create, insert, reopen — state survives a close
// and reopen cycle.
func TestCreateInsertReopen(t *testing.T) {
	path := tempPath(t)

	db, err := Open(path, 3)
	require.NoError(t, err)

	id, err := db.InsertVector([]float32{1, 2, 3})
	require.NoError(t, err)
	require.NoError(t, db.InsertNode(id))
	require.NoError(t, db.Commit())
	require.NoError(t, db.Close())

	db2, err := Open(path, 3)
	require.NoError(t, err)
	defer db2.Close()

	require.Equal(t, uint64(1), db2.Len())
	require.Equal(t, uint64(1), db2.NodeCount())

	v, err := db2.VectorAt(0)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3}, v)
}

// Scenario 2 (spec §8): nearest neighbor on a set of unit basis vectors —
// the query should recover its exact match first.
func TestSearchUnitBasisNearestNeighbor(t *testing.T) {
	path := tempPath(t)
	db, err := Open(path, 4, WithRandomSeed(7))
	require.NoError(t, err)
	defer db.Close()

	basis := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
	for _, v := range basis {
		id, err := db.InsertVector(v)
		require.NoError(t, err)
		require.NoError(t, db.InsertNode(id))
	}

	results, err := db.Search([]float32{0, 1, 0, 0}, 1, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, uint64(1), results[0].ID)
	require.InDelta(t, 0, results[0].Distance, 1e-6)
}

// Scenario 3 (spec §8): a second Open on a file already held exclusively
// fails with ALREADY_LOCKED.
func TestSecondOpenIsAlreadyLocked(t *testing.T) {
	path := tempPath(t)
	db, err := Open(path, 3)
	require.NoError(t, err)
	defer db.Close()

	_, err = Open(path, 3)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrAlreadyLocked))
}

// Scenario 4 (spec §8): dimension is enforced on both insert and reopen.
func TestDimensionEnforcement(t *testing.T) {
	path := tempPath(t)
	db, err := Open(path, 3)
	require.NoError(t, err)

	_, err = db.InsertVector([]float32{1, 2})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrDimensionMismatch))
	require.NoError(t, db.Close())

	_, err = Open(path, 5)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrDimensionMismatch))
}

// Scenario 5 (spec §8) at the facade level: a crash between InsertVector
// and InsertNode leaves a vector with no published node (N_v=2, N_g=1); a
// later InsertNode at that id publishes it rather than rejecting it. The
// facade cannot write an unpublished node record, so overwriting actual
// ghost record bytes is covered by internal/link's
// TestGhostNodeRecoveryOverwritesStaleBytes.
func TestGhostNodeRecoveryAtFacade(t *testing.T) {
	path := tempPath(t)
	db, err := Open(path, 2)
	require.NoError(t, err)
	defer db.Close()

	id0, err := db.InsertVector([]float32{0, 0})
	require.NoError(t, err)
	require.NoError(t, db.InsertNode(id0))

	// A vector is inserted but its node publish step is simulated as
	// having crashed: the vector zone has the bytes, the graph does not.
	id1, err := db.InsertVector([]float32{5, 5})
	require.NoError(t, err)
	require.Equal(t, uint64(2), db.Len())
	require.Equal(t, uint64(1), db.NodeCount())

	require.NoError(t, db.InsertNode(id1))
	require.Equal(t, uint64(2), db.NodeCount())

	results, err := db.Search([]float32{5, 5}, 1, 0)
	require.NoError(t, err)
	require.Equal(t, id1, results[0].ID)
}

// Scenario 6 (spec §8): diversity property over a small lattice — every
// published node keeps at least one neighbor and never exceeds M0 at
// layer 0, and a search over the lattice returns ascending distances.
func TestDiversityPropertyOverLattice(t *testing.T) {
	path := tempPath(t)
	db, err := Open(path, 2, WithM0(8), WithMaxConnections(4))
	require.NoError(t, err)
	defer db.Close()

	n := 0
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			id, err := db.InsertVector([]float32{float32(x), float32(y)})
			require.NoError(t, err)
			require.NoError(t, db.InsertNode(id))
			n++
		}
	}
	require.Equal(t, uint64(64), db.NodeCount())

	for id := uint64(0); id < uint64(n); id++ {
		rec, err := db.graph.ReadNode(id)
		require.NoError(t, err)
		require.GreaterOrEqual(t, rec.NeighborCount(0), 1, "node %d", id)
		require.LessOrEqual(t, rec.NeighborCount(0), 8, "node %d", id)
	}

	results, err := db.Search([]float32{3.5, 3.5}, 5, 0)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for i := 1; i < len(results); i++ {
		require.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestSearchEmptyGraphReturnsEmptyResult(t *testing.T) {
	path := tempPath(t)
	db, err := Open(path, 3)
	require.NoError(t, err)
	defer db.Close()

	results, err := db.Search([]float32{1, 1, 1}, 5, 0)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestMetricsDisabled(t *testing.T) {
	path := tempPath(t)
	db, err := Open(path, 3, WithMetrics(false))
	require.NoError(t, err)
	defer db.Close()

	require.Nil(t, db.Metrics())

	id, err := db.InsertVector([]float32{1, 1, 1})
	require.NoError(t, err)
	require.NoError(t, db.InsertNode(id))
}

func TestMetricsCountInsertsAndQueries(t *testing.T) {
	path := tempPath(t)
	db, err := Open(path, 2)
	require.NoError(t, err)
	defer db.Close()

	id, err := db.InsertVector([]float32{1, 1})
	require.NoError(t, err)
	require.NoError(t, db.InsertNode(id))
	_, err = db.Search([]float32{1, 1}, 1, 0)
	require.NoError(t, err)

	require.NotNil(t, db.Metrics())
	require.Equal(t, float64(1), testutil.ToFloat64(db.Metrics().VectorInserts))
	require.Equal(t, float64(1), testutil.ToFloat64(db.Metrics().NodeInserts))
	require.Equal(t, float64(1), testutil.ToFloat64(db.Metrics().SearchQueries))
}
