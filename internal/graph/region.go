package graph

import (
	"github.com/sirupsen/logrus"

	"github.com/chassisdb/chassis/internal/chassiserr"
)

// Storage is the subset of *storage.File the graph region needs. Declared
// here (rather than importing the storage package's concrete type) so this
// package's tests can exercise it against a fake in-memory backing store
// without pulling in mmap/flock machinery.
type Storage interface {
	Bytes() []byte
	GraphStart() uint64
	// GraphStartLocked is GraphStart for a caller that already holds this
	// Storage's lock (read or write); GraphStart locks internally and
	// would self-deadlock if called from inside an already-locked region
	// operation.
	GraphStartLocked() uint64
	ReserveGraphRegion(vectorCapacityHint uint64) (uint64, error)
	EnsureCapacity(minBytes int64) error
	VectorCount() uint64
	Lock()
	Unlock()
	RLock()
	RUnlock()
}

// Region owns the Graph Header and every Node Record living in the tail of
// the Storage file's mapping (C4). It never caches graph_start across
// calls — the vector zone can relocate the graph zone forward, so every
// operation re-reads the offset from the Storage handle (spec invariant 8:
// "no reference into the mapping may outlive the next growth operation").
type Region struct {
	sf         Storage
	params     Params
	recordSize int64
	log        *logrus.Logger
}

// Open attaches to an existing graph region, or creates one (with the
// given params) if the file has none yet.
func Open(sf Storage, params Params, defaults Defaults, log *logrus.Logger) (*Region, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Region{sf: sf, params: params, recordSize: RecordSize(params), log: log}

	if sf.GraphStart() == 0 {
		if err := r.create(defaults); err != nil {
			return nil, err
		}
		return r, nil
	}

	if err := r.validateExisting(defaults.Metric); err != nil {
		return nil, err
	}
	return r, nil
}

// Defaults carries the graph-wide parameters recorded once, at creation,
// in the Graph Header.
type Defaults struct {
	EfConstruction uint32
	EfSearch       uint32
	ML             float32
	Metric         Metric
}

func (r *Region) create(d Defaults) error {
	// ReserveGraphRegion and EnsureCapacity each take sf's write lock
	// themselves (sync.RWMutex isn't reentrant), so they must be called
	// before this method takes its own lock below, not from inside it.
	start, err := r.sf.ReserveGraphRegion(0)
	if err != nil {
		return err
	}
	if err := r.sf.EnsureCapacity(int64(start) + HeaderSize); err != nil {
		return err
	}

	h := &ghHeader{
		version:        CurrentVersion,
		m:              r.params.M,
		m0:             r.params.M0,
		maxLayers:      r.params.MaxLayers,
		nodeCount:      0,
		entryPoint:     0,
		mL:             d.ML,
		efConstruction: d.EfConstruction,
		efSearch:       d.EfSearch,
		metric:         d.Metric,
	}

	r.sf.Lock()
	defer r.sf.Unlock()
	buf := r.sf.Bytes()
	encodeGraphHeader(buf[start:start+HeaderSize], h)
	return nil
}

func (r *Region) validateExisting(metric Metric) error {
	r.sf.RLock()
	defer r.sf.RUnlock()

	start := r.sf.GraphStartLocked()
	buf := r.sf.Bytes()
	h, err := decodeGraphHeader(buf[start : start+HeaderSize])
	if err != nil {
		return err
	}
	if h.m != r.params.M || h.m0 != r.params.M0 || h.maxLayers != r.params.MaxLayers {
		return chassiserr.New(chassiserr.CorruptHeader, "graph.Open",
			"graph parameters do not match configured geometry", nil)
	}
	if h.metric != metric {
		return chassiserr.New(chassiserr.CorruptHeader, "graph.Open",
			"stored distance metric does not match configured metric", nil,
			uint64(h.metric), uint64(metric))
	}
	return nil
}

// readHeaderLocked re-reads the live Graph Header. Caller must hold sf's
// lock (read or write); it reads the offset via GraphStartLocked rather
// than GraphStart since the latter would self-deadlock by re-locking sf.
func (r *Region) readHeaderLocked() (*ghHeader, int64) {
	start := int64(r.sf.GraphStartLocked())
	buf := r.sf.Bytes()
	h, _ := decodeGraphHeader(buf[start : start+HeaderSize]) // validated at Open
	return h, start
}

// NodeCount returns N_g.
func (r *Region) NodeCount() uint64 {
	r.sf.RLock()
	defer r.sf.RUnlock()
	h, _ := r.readHeaderLocked()
	return h.nodeCount
}

// EntryPoint returns the current entry-point node id. Only meaningful when
// NodeCount() > 0.
func (r *Region) EntryPoint() uint64 {
	r.sf.RLock()
	defer r.sf.RUnlock()
	h, _ := r.readHeaderLocked()
	return h.entryPoint
}

// EfConstruction, EfSearch, ML, Metric, Params expose the fixed geometry
// recorded in the Graph Header.
func (r *Region) EfConstruction() uint32 {
	r.sf.RLock()
	defer r.sf.RUnlock()
	h, _ := r.readHeaderLocked()
	return h.efConstruction
}

func (r *Region) DefaultEfSearch() uint32 {
	r.sf.RLock()
	defer r.sf.RUnlock()
	h, _ := r.readHeaderLocked()
	return h.efSearch
}

func (r *Region) ML() float32 {
	r.sf.RLock()
	defer r.sf.RUnlock()
	h, _ := r.readHeaderLocked()
	return h.mL
}

func (r *Region) Metric() Metric {
	r.sf.RLock()
	defer r.sf.RUnlock()
	h, _ := r.readHeaderLocked()
	return h.metric
}

func (r *Region) Params() Params { return r.params }

// nodeOffset computes node i's byte offset with a single multiplication
// (spec §4.4 "Addressing"). graphStart must already be the freshly-read
// value (not cached across an operation that could have triggered growth).
func (r *Region) nodeOffset(graphStart int64, i uint64) int64 {
	return graphStart + HeaderSize + int64(i)*r.recordSize
}

// EnsureNodeCapacity grows the file so node id n-1 (i.e. n nodes, 0..n-1)
// fits, delegating to the storage layer's page-aligned growth (spec §4.4).
// GraphStart and EnsureCapacity each take sf's lock themselves, so this
// method must not hold it across the two calls (sync.RWMutex isn't
// reentrant); callers already serialize InsertNode at a higher level
// (chassis.DB.writeMu), so no growth can race between the two reads here.
func (r *Region) EnsureNodeCapacity(n uint64) error {
	start := int64(r.sf.GraphStart())
	need := r.nodeOffset(start, n)
	return r.sf.EnsureCapacity(need)
}

// ReadNode returns a zero-copy Record view of node i. Ids ≥ NodeCount()
// fail with IndexOutOfBounds (the node bytes may physically exist as a
// ghost, but per spec invariant 6 they must be treated as nonexistent).
func (r *Region) ReadNode(i uint64) (*Record, error) {
	r.sf.RLock()
	defer r.sf.RUnlock()

	h, start := r.readHeaderLocked()
	if i >= h.nodeCount {
		return nil, chassiserr.New(chassiserr.IndexOutOfBounds, "graph.ReadNode",
			"node id not visible", nil, i, h.nodeCount)
	}
	off := r.nodeOffset(start, i)
	buf := r.sf.Bytes()[off : off+r.recordSize]
	return &Record{buf: buf, p: r.params}, nil
}

// AllocateNode initializes the bytes for node id i via NewEmpty (id,
// layer_count, and every slot of its layerCount layers set to
// InvalidNodeID; other bytes are left as they were), inside the capacity
// the caller has already grown to via EnsureNodeCapacity, without
// publishing it: N_g is
// not touched here. This is step 1 of the linking engine's three-step
// protocol (spec §4.5) — a crash after this call and before Publish leaves
// a harmless ghost node.
func (r *Region) AllocateNode(i uint64, layerCount int) (*Record, error) {
	r.sf.Lock()
	defer r.sf.Unlock()

	_, start := r.readHeaderLocked()
	off := r.nodeOffset(start, i)
	buf := r.sf.Bytes()[off : off+r.recordSize]
	return NewEmpty(buf, r.params, i, layerCount), nil
}

// WriteBack copies all of rec's bytes into node i's slot in the live
// mapping. Because Record's buffer is itself a zero-copy slice of the
// mapping for records obtained via ReadNode/AllocateNode, neighbor slot
// writes through AddNeighbor/SetNeighbors are already live; WriteBack only
// needs to exist for records that were decoded standalone (FromBytes) and
// must be copied back.
func (r *Region) WriteBack(i uint64, rec *Record) error {
	r.sf.Lock()
	defer r.sf.Unlock()
	_, start := r.readHeaderLocked()
	off := r.nodeOffset(start, i)
	dst := r.sf.Bytes()[off : off+r.recordSize]
	copy(dst, rec.buf)
	return nil
}

// Publish is step 3 of the linking engine's protocol: increments N_g and,
// if newTopLayer exceeds the current entry point's layer, updates
// entry_point. This is the single write that makes node i — and any
// backlink writes already made to its neighbors in step 2 — visible (spec
// §4.4 "Ordering guarantees": it is emitted only after the node record and
// backward links are already on disk).
func (r *Region) Publish(i uint64, newTopLayer int) error {
	r.sf.Lock()
	defer r.sf.Unlock()

	h, start := r.readHeaderLocked()
	if i != h.nodeCount {
		return chassiserr.New(chassiserr.NonMonotonicID, "graph.Publish",
			"node id is not the next sequential id", nil, i, h.nodeCount)
	}

	if h.nodeCount == 0 || newTopLayer > layerOf(h, r, start) {
		h.entryPoint = i
	}
	h.nodeCount = i + 1

	buf := r.sf.Bytes()
	encodeGraphHeader(buf[start:start+HeaderSize], h)
	return nil
}

// layerOf returns the current entry point's layer_count-1 (its top layer),
// by reading its record directly (caller already holds the lock).
func layerOf(h *ghHeader, r *Region, start int64) int {
	if h.nodeCount == 0 {
		return -1
	}
	off := r.nodeOffset(start, h.entryPoint)
	buf := r.sf.Bytes()[off : off+r.recordSize]
	return int(buf[8]) - 1
}
