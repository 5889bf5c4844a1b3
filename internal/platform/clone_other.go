//go:build !darwin

package platform

// CloneFile is unsupported here; copy_file_range already reflinks where
// the filesystem allows it.
func CloneFile(_, _ string) (bool, error) {
	return false, nil
}
