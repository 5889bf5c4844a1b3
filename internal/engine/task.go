package engine

import (
	"os"
	"time"
)

// FileTask describes one regular file to copy into its bucket.
type FileTask struct {
	ModTime time.Time
	AccTime time.Time
	SrcPath string // path as discovered under the source root
	RelPath string // SrcPath relative to the source root
	Size    int64
	Mode    os.FileMode
}

// Name returns the file's base name, which is also its name in the bucket.
func (t FileTask) Name() string {
	return baseName(t.SrcPath)
}
