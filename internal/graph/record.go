// Package graph implements C3 (the fixed-width node record) and C4 (the
// graph file region: addressing, read/write, mmap neighbor iteration)
// inside the tail of the same mapping C2 owns.
package graph

import (
	"encoding/binary"

	"github.com/chassisdb/chassis/internal/chassiserr"
)

// InvalidNodeID is the sentinel filling unused adjacency slots.
const InvalidNodeID = ^uint64(0)

// nodeHeaderSize is id(8) + layer_count(1) + reserved(7).
const nodeHeaderSize = 16

// Params are the geometry parameters fixed for the lifetime of a file
// (spec §3 invariant 7: D, M, M0, max_layers, R are immutable once the
// file exists).
type Params struct {
	M         uint16
	M0        uint16
	MaxLayers uint8
}

// RecordSize computes R: the node header plus every layer's adjacency
// slots, rounded up to 8 bytes. Every field here is already a multiple of
// 8 bytes (u64 neighbor ids, 16-byte header), so the rounding is a no-op in
// practice; it's kept explicit because spec §4.3 calls it out as a
// computed, not assumed, invariant.
func RecordSize(p Params) int64 {
	slots := int64(p.M0) + int64(p.MaxLayers-1)*int64(p.M)
	size := int64(nodeHeaderSize) + slots*8
	return roundUp8(size)
}

func roundUp8(n int64) int64 {
	if n%8 == 0 {
		return n
	}
	return (n/8 + 1) * 8
}

// offsetOfLayer returns the byte offset of layer ℓ's adjacency slot,
// relative to the start of a node record.
func offsetOfLayer(p Params, layer int) int64 {
	if layer == 0 {
		return nodeHeaderSize
	}
	return nodeHeaderSize + int64(p.M0)*8 + int64(layer-1)*int64(p.M)*8
}

// slotCapacity returns the number of neighbor slots at layer ℓ: M0 for
// layer 0, M otherwise.
func slotCapacity(p Params, layer int) int {
	if layer == 0 {
		return int(p.M0)
	}
	return int(p.M)
}

// Record is a decoded view over one node's bytes. It holds no I/O state of
// its own — the buffer can be a zero-copy sub-slice of the live mapping
// (see Region.ReadNode) or a standalone copy (FromBytes).
type Record struct {
	buf []byte
	p   Params
}

// NewEmpty initializes buf (which must already be exactly RecordSize(p)
// bytes, normally a freshly-grown, zero-filled region of the mapping) as a
// brand new record: sets id and layer_count, and fills every slot up to
// layerCount with InvalidNodeID.
func NewEmpty(buf []byte, p Params, id uint64, layerCount int) *Record {
	r := &Record{buf: buf, p: p}
	r.SetID(id)
	r.setLayerCountRaw(layerCount)
	for layer := 0; layer < layerCount; layer++ {
		off := offsetOfLayer(p, layer)
		capn := slotCapacity(p, layer)
		for i := 0; i < capn; i++ {
			pos := off + int64(i)*8
			binary.NativeEndian.PutUint64(r.buf[pos:pos+8], InvalidNodeID)
		}
	}
	return r
}

// FromBytes decodes a standalone copy of a record and validates its
// ranges: length must match RecordSize(p) exactly and layer_count must not
// exceed MaxLayers. There is no separate magic tag on a node record — the
// fixed 16-byte header (id:8 + layer_count:1 + reserved:7) has no spare
// room for one, so the length check plus range validation on layer_count
// is the whole of "validates magic and ranges" for this type; the id is
// not checked (see DESIGN.md).
func FromBytes(data []byte, p Params) (*Record, error) {
	want := RecordSize(p)
	if int64(len(data)) != want {
		return nil, chassiserr.New(chassiserr.CorruptRecord, "graph.FromBytes",
			"unexpected record length", nil, uint64(len(data)), uint64(want))
	}
	lc := int(data[8])
	if lc > int(p.MaxLayers) {
		return nil, chassiserr.New(chassiserr.CorruptRecord, "graph.FromBytes",
			"layer_count exceeds max_layers", nil, uint64(lc), uint64(p.MaxLayers))
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Record{buf: buf, p: p}, nil
}

// ToBytes returns a standalone copy of the record's bytes.
// ToBytes(FromBytes(b)) == b for any valid record.
func (r *Record) ToBytes() []byte {
	out := make([]byte, len(r.buf))
	copy(out, r.buf)
	return out
}

// ID returns the node id stored in the record header.
func (r *Record) ID() uint64 { return binary.NativeEndian.Uint64(r.buf[0:8]) }

// SetID overwrites the node id.
func (r *Record) SetID(id uint64) { binary.NativeEndian.PutUint64(r.buf[0:8], id) }

// LayerCount returns the number of layers this node participates in.
func (r *Record) LayerCount() int { return int(r.buf[8]) }

func (r *Record) setLayerCountRaw(n int) { r.buf[8] = byte(n) }

// NeighborCount returns the number of non-sentinel entries in layer ℓ's
// slot.
func (r *Record) NeighborCount(layer int) int {
	n := 0
	for id := range r.Neighbors(layer) {
		_ = id
		n++
	}
	return n
}

// Neighbors returns a lazy, allocation-free sequence over layer ℓ's
// non-sentinel neighbor ids (spec §4.3: "skips sentinel values without
// allocating").
func (r *Record) Neighbors(layer int) func(yield func(uint64) bool) {
	off := offsetOfLayer(r.p, layer)
	capn := slotCapacity(r.p, layer)
	buf := r.buf
	return func(yield func(uint64) bool) {
		for i := 0; i < capn; i++ {
			pos := off + int64(i)*8
			id := binary.NativeEndian.Uint64(buf[pos : pos+8])
			if id == InvalidNodeID {
				continue
			}
			if !yield(id) {
				return
			}
		}
	}
}

// HasNeighbor reports whether id already occupies a slot at layer ℓ —
// used by the linking engine to make backlink installation idempotent.
func (r *Record) HasNeighbor(layer int, id uint64) bool {
	for existing := range r.Neighbors(layer) {
		if existing == id {
			return true
		}
	}
	return false
}

// AddNeighbor appends id to the first free slot at layer ℓ. Returns false
// if the slot is already full (spec §4.3).
func (r *Record) AddNeighbor(layer int, id uint64) bool {
	off := offsetOfLayer(r.p, layer)
	capn := slotCapacity(r.p, layer)
	for i := 0; i < capn; i++ {
		pos := off + int64(i)*8
		if binary.NativeEndian.Uint64(r.buf[pos:pos+8]) == InvalidNodeID {
			binary.NativeEndian.PutUint64(r.buf[pos:pos+8], id)
			return true
		}
	}
	return false
}

// SetNeighbors overwrites layer ℓ's entire slot with ids, padding the rest
// with InvalidNodeID. Panics if len(ids) exceeds the slot's capacity or ℓ
// is not one of this record's layers — both are programmer errors per
// spec §4.3 ("panics on overflow or ℓ ≥ layer_count").
func (r *Record) SetNeighbors(layer int, ids []uint64) {
	if layer >= r.LayerCount() {
		panic("chassis: graph.Record.SetNeighbors: layer >= layer_count")
	}
	capn := slotCapacity(r.p, layer)
	if len(ids) > capn {
		panic("chassis: graph.Record.SetNeighbors: too many neighbors for slot capacity")
	}
	off := offsetOfLayer(r.p, layer)
	i := 0
	for ; i < len(ids); i++ {
		pos := off + int64(i)*8
		binary.NativeEndian.PutUint64(r.buf[pos:pos+8], ids[i])
	}
	for ; i < capn; i++ {
		pos := off + int64(i)*8
		binary.NativeEndian.PutUint64(r.buf[pos:pos+8], InvalidNodeID)
	}
}
