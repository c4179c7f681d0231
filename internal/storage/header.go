package storage

import (
	"encoding/binary"

	"github.com/chassisdb/chassis/internal/chassiserr"
)

const (
	// HeaderSize is the fixed size of the Storage Header (spec §3/§6).
	HeaderSize = 4096
	// PageSize is the unit file size is always padded to (spec §3: "page-aligned
	// growth").
	PageSize = 4096

	// CurrentVersion is the format version this build writes and the
	// highest it accepts on open.
	CurrentVersion = uint32(1)

	// MinDimension and MaxDimension bound D per spec §3.
	MinDimension = 1
	MaxDimension = 4096
)

// storageMagic is "CHASSIS\0".
var storageMagic = [8]byte{'C', 'H', 'A', 'S', 'S', 'I', 'S', 0x00}

// header is an in-memory decoded view of the on-disk Storage Header. It is
// the sole authority on what is visible in the vector zone (spec invariant
// 6): any vector at an id ≥ vectorCount is unreachable, even if its bytes
// physically exist past the last commit.
type header struct {
	version     uint32
	dimension   uint32
	vectorCount uint64
	graphStart  uint64
}

// encodeHeader writes h into the first HeaderSize bytes of dst.
func encodeHeader(dst []byte, h *header) {
	copy(dst[0:8], storageMagic[:])
	binary.NativeEndian.PutUint32(dst[8:12], h.version)
	binary.NativeEndian.PutUint32(dst[12:16], h.dimension)
	binary.NativeEndian.PutUint64(dst[16:24], h.vectorCount)
	binary.NativeEndian.PutUint64(dst[24:32], h.graphStart)
	for i := 32; i < HeaderSize; i++ {
		dst[i] = 0
	}
}

// decodeHeader validates and parses the Storage Header out of src.
// Validation order follows spec §4.2: magic, then version, then dimension
// bounds. Size is validated by the caller (it knows the actual file size).
func decodeHeader(src []byte) (*header, error) {
	if len(src) < HeaderSize {
		return nil, chassiserr.New(chassiserr.CorruptHeader, "storage.decodeHeader",
			"file shorter than header", nil, uint64(len(src)))
	}
	var magic [8]byte
	copy(magic[:], src[0:8])
	if magic != storageMagic {
		return nil, chassiserr.New(chassiserr.CorruptHeader, "storage.decodeHeader",
			"bad magic", nil)
	}

	h := &header{
		version:     binary.NativeEndian.Uint32(src[8:12]),
		dimension:   binary.NativeEndian.Uint32(src[12:16]),
		vectorCount: binary.NativeEndian.Uint64(src[16:24]),
		graphStart:  binary.NativeEndian.Uint64(src[24:32]),
	}

	if h.version == 0 || h.version > CurrentVersion {
		return nil, chassiserr.New(chassiserr.CorruptHeader, "storage.decodeHeader",
			"unsupported version", nil, uint64(h.version))
	}
	if h.dimension < MinDimension || h.dimension > MaxDimension {
		return nil, chassiserr.New(chassiserr.CorruptHeader, "storage.decodeHeader",
			"dimension out of range", nil, uint64(h.dimension))
	}

	return h, nil
}

// vectorOffset returns the byte offset of vector i (4096 + i*D*4, spec §3).
func (h *header) vectorOffset(i uint64) int64 {
	return HeaderSize + int64(i)*int64(h.dimension)*4
}

// vectorZoneEnd returns the offset one past the last densely-packed vector.
func (h *header) vectorZoneEnd() int64 {
	return h.vectorOffset(h.vectorCount)
}

// roundUpPage rounds n up to the next multiple of PageSize.
func roundUpPage(n int64) int64 {
	if n%PageSize == 0 {
		return n
	}
	return (n/PageSize + 1) * PageSize
}
