//go:build linux

package platform

import (
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// AccessTime returns the last access time recorded in info, or its mtime
// when the platform stat is unavailable.
func AccessTime(info os.FileInfo) time.Time {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return time.Unix(st.Atim.Sec, st.Atim.Nsec)
	}
	return info.ModTime()
}

// SetTimes sets atime and mtime on an open file.
//
//nolint:gosec // G115: fd values are small non-negative integers
func SetTimes(f *os.File, atime, mtime time.Time) error {
	times := []unix.Timespec{
		unix.NsecToTimespec(atime.UnixNano()),
		unix.NsecToTimespec(mtime.UnixNano()),
	}
	if err := unix.UtimesNanoAt(int(f.Fd()), "", times, unix.AT_EMPTY_PATH); err != nil {
		// Older kernels reject AT_EMPTY_PATH.
		if err2 := unix.UtimesNanoAt(unix.AT_FDCWD, f.Name(), times, 0); err2 != nil {
			return fmt.Errorf("utimensat: %w", err)
		}
	}
	return nil
}

// CopyXattrs copies extended attributes from srcPath onto dst. Attributes
// that cannot be read or set are skipped; filesystems without xattr support
// yield no error.
//
//nolint:gosec // G115: fd values are small non-negative integers
func CopyXattrs(srcPath string, dst *os.File) {
	sz, err := unix.Listxattr(srcPath, nil)
	if err != nil || sz == 0 {
		return
	}
	buf := make([]byte, sz)
	sz, err = unix.Listxattr(srcPath, buf)
	if err != nil {
		return
	}

	for _, name := range splitNullNames(buf[:sz]) {
		val, err := getXattr(srcPath, name)
		if err != nil {
			continue
		}
		_ = unix.Fsetxattr(int(dst.Fd()), name, val, 0)
	}
}

func getXattr(path, name string) ([]byte, error) {
	sz, err := unix.Getxattr(path, name, nil)
	if err != nil || sz == 0 {
		return nil, err
	}
	buf := make([]byte, sz)
	n, err := unix.Getxattr(path, name, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// FileID returns the (device, inode) pair identifying info's file.
func FileID(info os.FileInfo) (FileKey, bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return FileKey{}, false
	}
	return FileKey{Dev: st.Dev, Ino: st.Ino}, true
}
