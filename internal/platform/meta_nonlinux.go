//go:build !linux

package platform

import (
	"os"
	"time"
)

// SetTimes sets atime and mtime on the file by path.
func SetTimes(f *os.File, atime, mtime time.Time) error {
	return os.Chtimes(f.Name(), atime, mtime)
}

// CopyXattrs is a no-op outside Linux.
func CopyXattrs(_ string, _ *os.File) {}
