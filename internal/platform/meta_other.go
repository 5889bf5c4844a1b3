//go:build !linux && !darwin

package platform

import (
	"os"
	"time"
)

// AccessTime returns info's mtime; access times are not exposed portably.
func AccessTime(info os.FileInfo) time.Time {
	return info.ModTime()
}

// FileID is unavailable on this platform.
func FileID(_ os.FileInfo) (FileKey, bool) {
	return FileKey{}, false
}
