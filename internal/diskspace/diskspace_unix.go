//go:build !windows

package diskspace

import (
	"path/filepath"
	"syscall"
)

// availableBytes reports the space available to unprivileged users on the
// filesystem containing path. ok is false when the filesystem cannot be
// queried (network mounts, virtual filesystems).
func availableBytes(path string) (int64, bool) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(filepath.Dir(path), &stat); err != nil {
		return 0, false
	}
	return int64(stat.Bavail) * int64(stat.Bsize), true
}
