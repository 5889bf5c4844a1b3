package engine

import (
	"path/filepath"
	"strings"
)

// DefaultUnknownBucket holds files whose name has no extension.
const DefaultUnknownBucket = "unknown"

// Extension returns the part of name after its last ".", case preserved.
// A leading dot does not start an extension (".gitignore" has none) and a
// trailing dot yields none ("notes.").
func Extension(name string) string {
	_, ext := splitExt(name)
	return strings.TrimPrefix(ext, ".")
}

// splitExt splits name into stem and ".ext". ext is empty when name has no
// usable extension.
func splitExt(name string) (stem, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return name, ""
	}
	return name[:i], name[i:]
}

// BucketNamer maps a file name to its bucket directory name.
type BucketNamer struct {
	Unknown  string // bucket for extension-less files; DefaultUnknownBucket if empty
	FoldCase bool   // lowercase extensions so "JPG" and "jpg" share a bucket
}

// Bucket returns the bucket for the file called name.
func (b BucketNamer) Bucket(name string) string {
	ext := Extension(name)
	if ext == "" {
		if b.Unknown == "" {
			return DefaultUnknownBucket
		}
		return b.Unknown
	}
	if b.FoldCase {
		return strings.ToLower(ext)
	}
	return ext
}

func baseName(path string) string {
	return filepath.Base(path)
}
