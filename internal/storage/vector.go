package storage

import (
	"unsafe"

	"github.com/chassisdb/chassis/internal/chassiserr"
)

// InsertVector appends v (must have length Dimension()) to the vector
// zone and returns its new id. Not durable until Commit. The header's
// vector count is incremented as the last step of the append, so a crash
// mid-copy leaves the new bytes unreachable rather than half-published
// (spec §4.2 "Invariants enforced").
func (sf *File) InsertVector(v []float32) (uint64, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if uint32(len(v)) != sf.h.dimension {
		return 0, chassiserr.New(chassiserr.DimensionMismatch, "storage.InsertVector",
			"vector length does not match dimension", nil, uint64(len(v)), uint64(sf.h.dimension))
	}

	id := sf.h.vectorCount
	if id+1 > sf.vectorCapacityLocked() {
		if err := sf.growVectorCapacityLocked(id + 1); err != nil {
			return 0, err
		}
	}

	end := sf.h.vectorOffset(id + 1)
	if err := sf.ensureCapacityLocked(end); err != nil {
		return 0, err
	}

	offset := sf.h.vectorOffset(id)
	dst := asFloat32Slice(sf.data[offset:offset+int64(sf.h.dimension)*4], int(sf.h.dimension))
	copy(dst, v)

	sf.h.vectorCount++
	encodeHeader(sf.data[:HeaderSize], sf.h)

	return id, nil
}

// VectorView is a zero-copy handle onto one vector's bytes in the live
// mapping. It must not be used after any subsequent growth, commit, or
// mutation; Slice panics if it detects that its generation is stale rather
// than risk handing back dangling memory (spec §4.2, §5, §9 strategy (b)).
type VectorView struct {
	sf         *File
	generation uint64
	data       []float32
}

// Slice returns the D floats this view refers to.
func (v *VectorView) Slice() []float32 {
	if v.sf.Generation() != v.generation {
		panic("chassis: VectorView used after the mapping grew; views must be dropped before any mutating call")
	}
	return v.data
}

// VectorAt returns a zero-copy view of vector id. Ids ≥ VectorCount() fail
// with IndexOutOfBounds (spec §4.2).
func (sf *File) VectorAt(id uint64) (*VectorView, error) {
	sf.mu.RLock()
	defer sf.mu.RUnlock()

	if id >= sf.h.vectorCount {
		return nil, chassiserr.New(chassiserr.IndexOutOfBounds, "storage.VectorAt",
			"vector id not visible", nil, id, sf.h.vectorCount)
	}

	offset := sf.h.vectorOffset(id)
	data := asFloat32Slice(sf.data[offset:offset+int64(sf.h.dimension)*4], int(sf.h.dimension))

	return &VectorView{sf: sf, generation: sf.generation, data: data}, nil
}

// asFloat32Slice reinterprets a native-byte-order byte slice as []float32
// without copying. b must be at least n*4 bytes and 4-byte aligned, which
// it always is here: it's a sub-slice of an mmap'd region whose vectors
// start at a 4-byte-aligned offset (HeaderSize plus a multiple of D*4).
func asFloat32Slice(b []byte, n int) []float32 {
	return unsafe.Slice((*float32)(unsafe.Pointer(&b[0])), n)
}
