//go:build linux

package surfacehash

import "golang.org/x/sys/unix"

// madvPopulateWrite is MADV_POPULATE_WRITE (Linux 5.14+).
const madvPopulateWrite = 23

// prefaultRegion populates the writable index mapping up front so slot and
// payload writes do not take one page fault each. Older kernels return
// EINVAL, which is ignored.
func prefaultRegion(data []byte) {
	if len(data) > 0 {
		_ = unix.Madvise(data, madvPopulateWrite)
	}
}
