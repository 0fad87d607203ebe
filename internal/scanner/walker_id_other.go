//go:build !unix

package scanner

import "path/filepath"

// directoryID keys a directory by its symlink-resolved path, the
// closest portable stand-in for a (device, inode) identity.
func directoryID(path string) (string, error) {
	return filepath.EvalSymlinks(path)
}
