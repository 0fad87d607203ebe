//go:build unix

package scanner

import (
	"fmt"
	"os"
	"syscall"
)

// directoryID keys a directory by (device, inode) so that symlinked
// paths to one directory resolve to one visited-set entry.
func directoryID(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}

	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return path, nil
	}

	return fmt.Sprintf("%d:%d", stat.Dev, stat.Ino), nil
}
