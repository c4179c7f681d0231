//go:build !linux && !darwin

package storage

import "os"

// datasync falls back to the portable os.File.Sync (e.g. Windows'
// FlushFileBuffers via the standard library) where no cheaper data-only
// primitive is exposed through x/sys/unix.
func datasync(f *os.File) error {
	return f.Sync()
}
