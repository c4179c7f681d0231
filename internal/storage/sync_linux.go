//go:build linux

package storage

import (
	"os"

	"golang.org/x/sys/unix"
)

// datasync forces data (not necessarily metadata) to the device, per spec
// §4.2's "On Linux this is fdatasync".
func datasync(f *os.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
