//go:build darwin

package platform

import (
	"os"
	"syscall"
	"time"
)

// AccessTime returns the last access time recorded in info, or its mtime
// when the platform stat is unavailable.
func AccessTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Atimespec.Sec, st.Atimespec.Nsec)
	}
	return info.ModTime()
}

// FileID returns the (device, inode) pair identifying info's file.
func FileID(info os.FileInfo) (FileKey, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return FileKey{}, false
	}
	return FileKey{Dev: uint64(st.Dev), Ino: st.Ino}, true //nolint:gosec // G115: dev_t is non-negative
}
