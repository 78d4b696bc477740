//go:build !linux

package surfacehash

func prefaultRegion([]byte) {}
