//go:build linux

package surfacehash

import "golang.org/x/sys/unix"

// fadviseWillNeed asks the kernel to start reading the range ahead of the
// decode pass in OpenFile. Best-effort: errors are silently ignored.
func fadviseWillNeed(fd int, offset, length int64) {
	_ = unix.Fadvise(fd, offset, length, unix.FADV_WILLNEED)
}
