package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chassisdb/chassis/internal/chassiserr"
)

func tempPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "t.chassis")
}

func TestCreateInsertReopen(t *testing.T) {
	path := tempPath(t)

	sf, err := Open(path, 3, nil)
	require.NoError(t, err)

	id0, err := sf.InsertVector([]float32{1, 0, 0})
	require.NoError(t, err)
	require.Equal(t, uint64(0), id0)

	id1, err := sf.InsertVector([]float32{0, 1, 0})
	require.NoError(t, err)
	require.Equal(t, uint64(1), id1)

	_, err = sf.InsertVector([]float32{0, 0, 1})
	require.NoError(t, err)

	require.NoError(t, sf.Commit())
	require.NoError(t, sf.Close())

	sf2, err := Open(path, 3, nil)
	require.NoError(t, err)
	defer sf2.Close()

	require.EqualValues(t, 3, sf2.VectorCount())
	view, err := sf2.VectorAt(1)
	require.NoError(t, err)
	require.Equal(t, []float32{0, 1, 0}, view.Slice())
}

func TestAlreadyLocked(t *testing.T) {
	path := tempPath(t)

	sf, err := Open(path, 3, nil)
	require.NoError(t, err)
	defer sf.Close()

	_, err = Open(path, 3, nil)
	require.ErrorIs(t, err, chassiserr.ErrAlreadyLocked)
}

func TestDimensionMismatchOnInsert(t *testing.T) {
	path := tempPath(t)
	sf, err := Open(path, 3, nil)
	require.NoError(t, err)
	defer sf.Close()

	_, err = sf.InsertVector([]float32{1, 2})
	require.ErrorIs(t, err, chassiserr.ErrDimensionMismatch)
}

func TestDimensionMismatchOnReopen(t *testing.T) {
	path := tempPath(t)
	sf, err := Open(path, 3, nil)
	require.NoError(t, err)
	require.NoError(t, sf.Close())

	_, err = Open(path, 4, nil)
	require.ErrorIs(t, err, chassiserr.ErrDimensionMismatch)
}

func TestIndexOutOfBounds(t *testing.T) {
	path := tempPath(t)
	sf, err := Open(path, 3, nil)
	require.NoError(t, err)
	defer sf.Close()

	_, err = sf.VectorAt(0)
	require.ErrorIs(t, err, chassiserr.ErrIndexOutOfBounds)
}

func TestGrowthIsPageAligned(t *testing.T) {
	path := tempPath(t)
	sf, err := Open(path, 1, nil)
	require.NoError(t, err)
	defer sf.Close()

	for i := 0; i < 2000; i++ {
		_, err := sf.InsertVector([]float32{float32(i)})
		require.NoError(t, err)
	}

	require.Zero(t, int64(len(sf.data))%PageSize)
}

func TestStaleVectorViewPanicsAfterGrowth(t *testing.T) {
	path := tempPath(t)
	sf, err := Open(path, 1, nil)
	require.NoError(t, err)
	defer sf.Close()

	_, err = sf.InsertVector([]float32{1})
	require.NoError(t, err)
	view, err := sf.VectorAt(0)
	require.NoError(t, err)

	// Force growth by inserting enough vectors to cross a page boundary.
	for i := 0; i < 2000; i++ {
		_, err := sf.InsertVector([]float32{float32(i)})
		require.NoError(t, err)
	}

	require.Panics(t, func() { view.Slice() })
}

func TestVectorCountNeverShrinks(t *testing.T) {
	path := tempPath(t)
	sf, err := Open(path, 2, nil)
	require.NoError(t, err)
	defer sf.Close()

	var last uint64
	for i := 0; i < 50; i++ {
		_, err := sf.InsertVector([]float32{1, 2})
		require.NoError(t, err)
		require.GreaterOrEqual(t, sf.VectorCount(), last)
		last = sf.VectorCount()
	}
}
