package storage

// The vector zone and the graph zone share one file, vector zone first.
// Because both zones only ever grow by appending, and nothing may come
// between the two zones, the vector zone's physical capacity has to be
// reserved ahead of its logical count (N_v). graph_start marks the
// boundary; capacity is never stored explicitly, it's simply
// (graph_start-HeaderSize)/(D*4) — the header stays exactly as bit-exact
// as spec §6 describes, with no extra field.
//
// When N_v is about to exceed that reserved capacity, the graph zone
// (everything from graph_start to the end of the file: the 64-byte Graph
// Header plus every node record written so far) is relocated forward to
// make room, and graph_start is republished last, same discipline as every
// other header update in this package.

// GraphStart returns the current graph-region start offset. It is read
// fresh by the caller on every operation rather than cached, because it
// can move when the vector zone outgrows its reserved capacity.
// (Already exposed as GraphStart() in file.go; this file adds the
// reservation and relocation machinery behind it.)

// ReserveGraphRegion carves out the graph region if one doesn't exist yet,
// sizing the vector zone's initial reserved capacity from vectorCapacityHint
// (rounded up to a power of two, minimum 16). It is idempotent: once a
// graph region exists, it just returns the existing offset.
func (sf *File) ReserveGraphRegion(vectorCapacityHint uint64) (uint64, error) {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if sf.h.graphStart != 0 {
		return sf.h.graphStart, nil
	}

	cap := nextPow2(maxU64(vectorCapacityHint, sf.h.vectorCount))
	if cap < 16 {
		cap = 16
	}
	graphStart := int64(HeaderSize) + int64(cap)*int64(sf.h.dimension)*4

	if err := sf.ensureCapacityLocked(graphStart + 64); err != nil {
		return 0, err
	}

	sf.h.graphStart = uint64(graphStart)
	encodeHeader(sf.data[:HeaderSize], sf.h)
	return sf.h.graphStart, nil
}

// growVectorCapacityLocked relocates the graph zone forward so the vector
// zone can hold at least minVectors entries. Caller must hold sf.mu.
func (sf *File) growVectorCapacityLocked(minVectors uint64) error {
	oldGraphStart := int64(sf.h.graphStart)
	dim := int64(sf.h.dimension)

	newCap := nextPow2(minVectors)
	if newCap < 16 {
		newCap = 16
	}
	newGraphStart := int64(HeaderSize) + int64(newCap)*dim*4

	graphBytesLen := int64(len(sf.data)) - oldGraphStart
	newTotal := newGraphStart + graphBytesLen

	if err := sf.ensureCapacityLocked(newTotal); err != nil {
		return err
	}

	// copy() is memmove-safe for overlapping source/destination, so this
	// is correct regardless of how far forward the zone moves.
	copy(sf.data[newGraphStart:newGraphStart+graphBytesLen], sf.data[oldGraphStart:oldGraphStart+graphBytesLen])

	sf.h.graphStart = uint64(newGraphStart)
	encodeHeader(sf.data[:HeaderSize], sf.h)

	sf.log.WithFields(map[string]interface{}{
		"path":              sf.path,
		"old_graph_start":   oldGraphStart,
		"new_graph_start":   newGraphStart,
		"vector_capacity":   newCap,
	}).Debug("chassis vector zone grown, graph zone relocated")

	return nil
}

// vectorCapacityLocked returns the number of vector slots currently
// reserved before the graph zone, or the max uint64 if no graph region has
// been carved out yet (vector zone may then grow unbounded by plain
// append). Caller must hold sf.mu (read or write).
func (sf *File) vectorCapacityLocked() uint64 {
	if sf.h.graphStart == 0 {
		return ^uint64(0)
	}
	return (sf.h.graphStart - HeaderSize) / (uint64(sf.h.dimension) * 4)
}

func nextPow2(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
