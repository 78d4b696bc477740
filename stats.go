package surfacehash

import (
	"slices"

	"github.com/tamirms/surfacehash/internal/fks"
)

// Stats holds construction and occupancy statistics for a Map or Index.
type Stats struct {
	NumSamples    uint64
	Dims          int
	Extents       []uint32
	Offset        uint32
	Attempts      int
	TableSize     uint64
	Occupied      int
	Redirected    int
	Buckets       int
	MaxBucket     int
	RedirectSlots int
	NumNormals    int
	LoadFactor    float64 // Occupied / TableSize
	MemorySize    int
	SampleDigest  uint64

	// Index only.
	PayloadSize int
	IndexSize   int64
	BitsPerKey  float64
}

func newStats(t *fks.Table, n uint64, attempts int, digest uint64) *Stats {
	ts := t.Stats()
	box := t.Layout().Box()
	st := &Stats{
		NumSamples:    n,
		Dims:          box.Dims(),
		Extents:       slices.Clone(box.Extents),
		Offset:        box.Offset,
		Attempts:      attempts,
		TableSize:     ts.TableSize,
		Occupied:      ts.Occupied,
		Redirected:    ts.Redirected,
		Buckets:       ts.Buckets,
		MaxBucket:     ts.MaxBucket,
		RedirectSlots: ts.RedirectSlots,
		NumNormals:    t.Catalog().Len(),
		MemorySize:    t.MemorySize(),
		SampleDigest:  digest,
	}
	if ts.TableSize > 0 {
		st.LoadFactor = float64(ts.Occupied) / float64(ts.TableSize)
	}
	return st
}
