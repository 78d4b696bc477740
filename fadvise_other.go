//go:build !linux

package surfacehash

// fadviseWillNeed is a no-op on non-Linux platforms.
func fadviseWillNeed(fd int, offset, length int64) {}
