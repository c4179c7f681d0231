package storage

import (
	"golang.org/x/sys/unix"

	"github.com/chassisdb/chassis/internal/chassiserr"
)

// Commit flushes the mapped region (msync) and then forces file contents
// to the underlying device (platform-specific data sync; spec §4.2).
// Metadata need not be synced, only data and the logical size.
func (sf *File) Commit() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if err := unix.Msync(sf.data, unix.MS_SYNC); err != nil {
		return chassiserr.New(chassiserr.IOFailure, "storage.Commit", "msync", err)
	}
	if err := datasync(sf.f); err != nil {
		return chassiserr.New(chassiserr.IOFailure, "storage.Commit", "datasync", err)
	}
	return nil
}
