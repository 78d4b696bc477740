//go:build !linux && !darwin

package surfacehash

import "os"

// fallocateFile sizes the index file. Blocks may stay unreserved.
func fallocateFile(file *os.File, size int64) error {
	return file.Truncate(size)
}
