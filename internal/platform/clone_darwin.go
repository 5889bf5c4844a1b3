//go:build darwin

package platform

import (
	"errors"

	"golang.org/x/sys/unix"
)

// CloneFile makes dstPath a copy-on-write clone of srcPath. dstPath must not
// exist. It reports false with a nil error when the filesystem cannot clone,
// leaving the caller to copy the data itself.
func CloneFile(srcPath, dstPath string) (bool, error) {
	err := unix.Clonefile(srcPath, dstPath, 0)
	if err == nil {
		return true, nil
	}
	if isFallbackCloneErr(err) {
		return false, nil
	}
	return false, err
}

func isFallbackCloneErr(err error) bool {
	return errors.Is(err, unix.ENOTSUP) || errors.Is(err, unix.EXDEV)
}
