// Package storage implements C2: the single-file lifecycle described in
// spec §3/§4.2 — header, vector zone, page-aligned growth, mmap
// management, exclusive lock, and the explicit durability barrier. It owns
// the entire memory-mapped byte range; the graph package (C3/C4) interprets
// a suffix of it.
package storage

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/chassisdb/chassis/internal/chassiserr"
)

// File is the single-file storage engine. Mutating operations
// (InsertVector, EnsureCapacity, Commit) require the writer lock; reads
// (VectorAt, metadata accessors) take the reader lock, matching the SWMR
// model in spec §5.
type File struct {
	mu sync.RWMutex

	f    *os.File
	path string
	data []byte // the live mapping; data[0:HeaderSize] is the Storage Header

	h *header

	// generation is bumped on every successful growth/remap. Outstanding
	// VectorViews capture it at creation and are invalidated the instant
	// it changes (spec §4.2, §5 "Resource policy"; strategy (b) of §9).
	generation uint64

	locked bool
	log    *logrus.Logger
}

// Open creates or opens path as a Storage file for dimension wantDim.
// When creating a new file wantDim must be in [MinDimension, MaxDimension],
// otherwise the open fails with DimensionMismatch. When opening an existing
// file wantDim may be 0 (no check); any other value must match the header's
// stored dimension or the open fails with DimensionMismatch.
func Open(path string, wantDim uint32, log *logrus.Logger) (*File, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, chassiserr.New(chassiserr.IOFailure, "storage.Open", "open file", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, chassiserr.New(chassiserr.AlreadyLocked, "storage.Open",
				"another process or handle holds the exclusive lock", err)
		}
		return nil, chassiserr.New(chassiserr.IOFailure, "storage.Open", "flock", err)
	}

	sf := &File{f: f, path: path, locked: true, log: log}

	info, err := f.Stat()
	if err != nil {
		sf.unlockAndClose()
		return nil, chassiserr.New(chassiserr.IOFailure, "storage.Open", "stat", err)
	}

	if info.Size() == 0 {
		if err := sf.initNew(wantDim); err != nil {
			sf.unlockAndClose()
			return nil, err
		}
	} else {
		if err := sf.openExisting(info.Size(), wantDim); err != nil {
			sf.unlockAndClose()
			return nil, err
		}
	}

	sf.log.WithFields(logrus.Fields{
		"path":      path,
		"dimension": sf.h.dimension,
		"vectors":   sf.h.vectorCount,
	}).Debug("chassis storage file opened")

	return sf, nil
}

func (sf *File) initNew(dim uint32) error {
	if dim < MinDimension || dim > MaxDimension {
		return chassiserr.New(chassiserr.DimensionMismatch, "storage.Open",
			"dimension out of range for new file", nil, uint64(dim))
	}
	if err := sf.f.Truncate(HeaderSize); err != nil {
		return chassiserr.New(chassiserr.IOFailure, "storage.Open", "truncate new file", err)
	}
	data, err := unix.Mmap(int(sf.f.Fd()), 0, HeaderSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return chassiserr.New(chassiserr.IOFailure, "storage.Open", "mmap new file", err)
	}
	sf.data = data

	h := &header{version: CurrentVersion, dimension: dim, vectorCount: 0, graphStart: 0}
	encodeHeader(sf.data[:HeaderSize], h)
	sf.h = h
	return nil
}

func (sf *File) openExisting(size int64, wantDim uint32) error {
	if size < HeaderSize {
		return chassiserr.New(chassiserr.CorruptHeader, "storage.Open",
			"file smaller than header", nil, uint64(size))
	}

	data, err := unix.Mmap(int(sf.f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return chassiserr.New(chassiserr.IOFailure, "storage.Open", "mmap existing file", err)
	}
	sf.data = data

	h, err := decodeHeader(sf.data[:HeaderSize])
	if err != nil {
		return err
	}
	if wantDim != 0 && wantDim != h.dimension {
		return chassiserr.New(chassiserr.DimensionMismatch, "storage.Open",
			"dimension argument does not match header", nil, uint64(wantDim), uint64(h.dimension))
	}
	sf.h = h
	return nil
}

func (sf *File) unlockAndClose() {
	if sf.data != nil {
		unix.Munmap(sf.data)
		sf.data = nil
	}
	if sf.locked {
		unix.Flock(int(sf.f.Fd()), unix.LOCK_UN)
		sf.locked = false
	}
	sf.f.Close()
}

// Close unmaps and releases the exclusive lock.
func (sf *File) Close() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	sf.unlockAndClose()
	return nil
}

// Dimension returns D.
func (sf *File) Dimension() uint32 {
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.h.dimension
}

// VectorCount returns N_v.
func (sf *File) VectorCount() uint64 {
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.h.vectorCount
}

// GraphStart returns the graph-region start offset recorded in the header.
func (sf *File) GraphStart() uint64 {
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.h.graphStart
}

// GraphStartLocked is GraphStart for a caller that already holds sf's lock
// (read or write) — e.g. the graph package reading the offset as part of a
// larger already-locked operation, where calling the locking GraphStart
// again would self-deadlock on the non-reentrant RWMutex.
func (sf *File) GraphStartLocked() uint64 { return sf.h.graphStart }

// Generation returns the current generation counter, bumped on every
// growth. Callers holding a VectorView compare against this to detect
// staleness.
func (sf *File) Generation() uint64 {
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.generation
}

// Bytes exposes the raw mapping for the graph package (C4), which owns
// everything from GraphStart() onward. Callers must not retain the
// returned slice past the next EnsureCapacity call (spec §3 invariant 8).
func (sf *File) Bytes() []byte {
	return sf.data
}

// Lock/Unlock expose the storage handle's mutex so C4/C5/C6 can enforce the
// same SWMR discipline over the shared mapping instead of introducing a
// second lock.
func (sf *File) Lock()    { sf.mu.Lock() }
func (sf *File) Unlock()  { sf.mu.Unlock() }
func (sf *File) RLock()   { sf.mu.RLock() }
func (sf *File) RUnlock() { sf.mu.RUnlock() }
