//go:build linux

package surfacehash

import (
	"os"

	"golang.org/x/sys/unix"
)

// fallocateFile reserves size bytes for the index before it is mapped, so a
// full disk surfaces as an error here rather than SIGBUS while writing slots.
func fallocateFile(file *os.File, size int64) error {
	fd := int(file.Fd())
	// NFS and some other filesystems reject fallocate; the truncate below
	// still sizes the file.
	_ = unix.Fallocate(fd, 0, 0, size)
	return unix.Ftruncate(fd, size)
}
