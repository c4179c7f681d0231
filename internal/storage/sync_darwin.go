//go:build darwin

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

// datasync forces data to the device. Darwin's fsync does not guarantee
// the drive has actually flushed its cache, so spec §4.2 calls for
// F_FULLFSYNC specifically.
func datasync(f *os.File) error {
	_, err := unix.FcntlInt(f.Fd(), unix.F_FULLFSYNC, 0)
	return err
}
