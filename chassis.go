package chassis

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chassisdb/chassis/internal/chassiserr"
	"github.com/chassisdb/chassis/internal/distance"
	"github.com/chassisdb/chassis/internal/graph"
	"github.com/chassisdb/chassis/internal/link"
	"github.com/chassisdb/chassis/internal/obs"
	"github.com/chassisdb/chassis/internal/search"
	"github.com/chassisdb/chassis/internal/storage"
)

// Error is chassis's closed error taxonomy (spec §7), re-exported so
// callers can use errors.Is/errors.As without importing an internal
// package.
type Error = chassiserr.Error

var (
	ErrCorruptHeader     = chassiserr.ErrCorruptHeader
	ErrCorruptRecord     = chassiserr.ErrCorruptRecord
	ErrAlreadyLocked     = chassiserr.ErrAlreadyLocked
	ErrDimensionMismatch = chassiserr.ErrDimensionMismatch
	ErrIndexOutOfBounds  = chassiserr.ErrIndexOutOfBounds
	ErrNonMonotonicID    = chassiserr.ErrNonMonotonicID
	ErrIOFailure         = chassiserr.ErrIOFailure
	ErrCapacityExceeded  = chassiserr.ErrCapacityExceeded
)

// DB is the embedded single-file vector-similarity engine: the external
// facade wrapping C2 (storage) + C4 (graph region) + C5 (linking) + C6
// (search) and enforcing the "register last" insert protocol (spec §2).
type DB struct {
	writeMu sync.Mutex // the "internal exclusion primitive" spec §5 calls for in a language without borrow checking

	storage *storage.File
	graph   *graph.Region
	link    *link.Engine
	search  *search.Engine
	vectors *vectorAdapter

	metrics *obs.Metrics
	log     *logrus.Logger
}

// vectorAdapter satisfies both search.VectorSource and link.VectorSource
// (identical single-method shape) in terms of storage.File's zero-copy
// VectorAt. The returned slice is copied out before the view's generation
// can go stale. During Search these reads happen while the caller holds
// storage's RLock for the whole call; during InsertNode they happen under
// writeMu only, while the linking engine may itself grow the file between
// reads, so each returned slice must not depend on the view staying valid.
type vectorAdapter struct{ sf *storage.File }

func (a *vectorAdapter) Vector(id uint64) ([]float32, error) {
	view, err := a.sf.VectorAt(id)
	if err != nil {
		return nil, err
	}
	s := view.Slice()
	out := make([]float32, len(s))
	copy(out, s)
	return out, nil
}

// Open creates or opens path as a chassis file for the given dimension.
// Creating a new file requires 1 <= dimension <= 4096. When opening an
// existing file, dimension may be 0 (accept the header's stored dimension);
// any other value must match it.
func Open(path string, dimension uint32, opts ...Option) (*DB, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	log, err := obs.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	sf, err := storage.Open(path, dimension, log)
	if err != nil {
		return nil, err
	}

	var metrics *obs.Metrics
	if cfg.MetricsEnabled {
		metrics = obs.NewMetrics()
	}

	params := graph.Params{
		M:         uint16(cfg.MaxConnections),
		M0:        uint16(cfg.M0),
		MaxLayers: uint8(cfg.MaxLayers),
	}
	defaults := graph.Defaults{
		EfConstruction: uint32(cfg.EfConstruction),
		EfSearch:       uint32(cfg.EfSearch),
		ML:             float32(cfg.ML),
		Metric:         cfg.Metric.graphMetric(),
	}

	region, err := graph.Open(sf, params, defaults, log)
	if err != nil {
		sf.Close()
		return nil, err
	}

	distKind := distance.Squared
	if region.Metric() == graph.MetricEuclideanRooted {
		distKind = distance.Rooted
	}

	vectors := &vectorAdapter{sf: sf}

	linkEngine, err := link.NewEngine(region, vectors, distKind, region.Params(),
		region.EfConstruction(), region.ML(), sf.Dimension(), cfg.RandomSeed)
	if err != nil {
		sf.Close()
		return nil, err
	}

	searchEngine := &search.Engine{
		Nodes:     region,
		Vectors:   vectors,
		Metric:    distKind,
		Dimension: sf.Dimension(),
	}

	return &DB{
		storage: sf,
		graph:   region,
		link:    linkEngine,
		search:  searchEngine,
		vectors: vectors,
		metrics: metrics,
		log:     log,
	}, nil
}

// Dimension returns D.
func (db *DB) Dimension() uint32 { return db.storage.Dimension() }

// Len returns N_v, the number of vectors stored.
func (db *DB) Len() uint64 { return db.storage.VectorCount() }

// NodeCount returns N_g, the number of published graph nodes.
func (db *DB) NodeCount() uint64 { return db.graph.NodeCount() }

// InsertVector appends v to the vector zone and returns its id. Not
// durable until Commit.
func (db *DB) InsertVector(v []float32) (uint64, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	id, err := db.storage.InsertVector(v)
	if err != nil {
		return 0, err
	}
	if db.metrics != nil {
		db.metrics.VectorInserts.Inc()
	}
	return id, nil
}

// InsertNode runs the three-step linking protocol (spec §4.5) to publish
// node id as a graph node. id must equal NodeCount(); typically id is the
// id just returned by InsertVector, inserted immediately afterward so the
// co-indexing invariant (node id i refers to vector i) holds.
func (db *DB) InsertNode(id uint64) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	start := time.Now()
	err := db.link.InsertNode(id)
	if db.metrics != nil {
		db.metrics.InsertLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return err
	}
	if db.metrics != nil {
		db.metrics.NodeInserts.Inc()
	}
	return nil
}

// VectorAt returns a copy of vector id's D floats.
func (db *DB) VectorAt(id uint64) ([]float32, error) {
	return db.vectors.Vector(id)
}

// SearchResult is one scored hit from Search.
type SearchResult struct {
	ID       uint64
	Distance float32
}

// Search returns the k nearest node ids to query, sorted by distance
// ascending (spec §4.6). An empty graph yields an empty, non-error result.
// efSearch, if 0, falls back to the graph's configured default.
func (db *DB) Search(query []float32, k int, efSearch int) ([]SearchResult, error) {
	db.storage.RLock()
	defer db.storage.RUnlock()

	start := time.Now()
	if efSearch <= 0 {
		efSearch = int(db.graph.DefaultEfSearch())
	}

	candidates, err := db.search.Search(query, k, efSearch)
	if db.metrics != nil {
		db.metrics.SearchLatency.Observe(time.Since(start).Seconds())
		db.metrics.SearchQueries.Inc()
		if err != nil {
			db.metrics.SearchErrors.Inc()
		}
	}
	if err != nil {
		return nil, err
	}

	out := make([]SearchResult, len(candidates))
	for i, c := range candidates {
		out[i] = SearchResult{ID: c.ID, Distance: c.Dist}
	}
	return out, nil
}

// Commit flushes the mapped region and forces the underlying file to
// durable storage (spec §4.2).
func (db *DB) Commit() error {
	start := time.Now()
	err := db.storage.Commit()
	if db.metrics != nil {
		db.metrics.CommitLatency.Observe(time.Since(start).Seconds())
	}
	return err
}

// Metrics returns this DB's Prometheus metrics (counters, histograms and
// the registry they are registered against), or nil if metrics collection
// was disabled via WithMetrics(false).
func (db *DB) Metrics() *obs.Metrics { return db.metrics }

// Close unmaps the file and releases the exclusive lock.
func (db *DB) Close() error {
	return db.storage.Close()
}
