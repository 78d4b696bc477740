package surfacehash

import "github.com/tamirms/surfacehash/internal/lattice"

// Sample is one oriented surface point. Normal must be non-zero; it is
// usually reduced to lowest terms (see ReduceNormal) so that parallel
// directions share one catalog entry.
type Sample[T any] struct {
	Location []uint32
	Normal   []int32
	Contents T
}

// SampleFunc returns sample i. It must be a pure function of i: Build calls
// it once per sample and requires identical results on every call. The
// returned slices are copied, so they may be reused between calls.
type SampleFunc[T any] func(i int) Sample[T]

// sampleSource adapts a materialized sample slice to catalog.Source.
type sampleSource[T any] []Sample[T]

func (s sampleSource[T]) Len() int                { return len(s) }
func (s sampleSource[T]) Location(i int) []uint32 { return s[i].Location }
func (s sampleSource[T]) Normal(i int) []int32    { return s[i].Normal }

// ReduceNormal divides n in place by the gcd of its components and returns
// it. Parallel directions then share one catalog entry.
func ReduceNormal(n []int32) []int32 {
	return lattice.Reduce(n)
}
