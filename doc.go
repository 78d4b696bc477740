// Package surfacehash implements a minimal perfect spatial hash over oriented
// surface samples: lattice points carrying an outward normal and a payload,
// as produced by voxelizing a mesh.
//
// Instead of addressing the full box volume, every sample is moved along its
// normal to the box boundary and hashed by its boundary point. The primary
// table is therefore sized to the box's surface area. Samples whose boundary
// points coincide are resolved through small per-slot redirect tables, and a
// slot stores only a verify token (normal, quantized travel) rather than the
// sample's location. A query recovers the normal from position alone by
// intersecting per-axis bit vectors of the normal catalog.
//
// # Basic Usage
//
// Building a map:
//
//	m, err := surfacehash.BuildSlice(ctx, samples)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	v, err := m.Get([]uint32{3, 7, 1})
//	if errors.Is(err, surferrors.ErrNotFound) {
//	    // no sample at that position
//	}
//
// Persisting and querying an index:
//
//	err := m.WriteFile("shell.idx", 4, func(v uint32) uint64 { return uint64(v) })
//
//	idx, err := surfacehash.Open("shell.idx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer idx.Close()
//	payload, err := idx.QueryPayload([]uint32{3, 7, 1})
//
// # Package Structure
//
// The implementation is organized as follows:
//
//   - Public API: map.go (Build, Get, Stats, Validate), index.go (Open, Query)
//   - Errors: errors/ (sentinels shared with the internal packages)
//   - Configuration: builder_options.go (BuildOption, With* functions)
//   - Serialization: header.go (header, footer), index_writer.go
//   - Normal recovery: internal/catalog/, internal/bitset/
//   - Geometry: internal/lattice/ (boxes, mixed-radix indexing), internal/surface/
//   - Construction and lookup: internal/fks/
//   - Platform: fallocate_*.go, fadvise_*.go, prefault_*.go (OS-specific optimizations)
package surfacehash
