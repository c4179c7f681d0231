package storage

import (
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/chassisdb/chassis/internal/chassiserr"
)

// EnsureCapacity grows the mapping so it is at least minBytes long,
// page-aligning the new file size (spec §4.2). It is a no-op if the
// current mapping is already large enough. Safe to call from any mutator;
// it takes the writer lock itself.
func (sf *File) EnsureCapacity(minBytes int64) error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.ensureCapacityLocked(minBytes)
}

// ensureCapacityLocked assumes the caller already holds sf.mu for writing.
func (sf *File) ensureCapacityLocked(minBytes int64) error {
	if int64(len(sf.data)) >= minBytes {
		return nil
	}

	newSize := roundUpPage(minBytes)

	if err := unix.Munmap(sf.data); err != nil {
		return chassiserr.New(chassiserr.IOFailure, "storage.EnsureCapacity", "munmap", err)
	}
	sf.data = nil

	if err := sf.f.Truncate(newSize); err != nil {
		return chassiserr.New(chassiserr.IOFailure, "storage.EnsureCapacity", "truncate", err)
	}

	data, err := unix.Mmap(int(sf.f.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return chassiserr.New(chassiserr.IOFailure, "storage.EnsureCapacity", "remap", err)
	}
	sf.data = data
	sf.generation++

	sf.log.WithFields(logrus.Fields{
		"path":       sf.path,
		"new_size":   newSize,
		"generation": sf.generation,
	}).Debug("chassis storage file grown")

	return nil
}
