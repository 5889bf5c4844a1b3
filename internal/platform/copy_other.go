//go:build !linux

package platform

import "os"

// CopyFile falls back to a userspace copy on platforms without
// copy_file_range.
func CopyFile(dst, src *os.File, _ int64) (CopyResult, error) {
	return CopyReader(dst, src)
}
