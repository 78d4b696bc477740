package lattice

import (
	"slices"

	"github.com/pkg/errors"

	surferrors "github.com/tamirms/surfacehash/errors"
)

// Box is the working lattice frame. Coordinates on axis a range over
// [0, Extents[a]] inclusive; sample locations are shifted by Offset before
// projection so that growth leaves room on every side.
type Box struct {
	Extents []uint32
	Offset  uint32
}

// NewBox returns a box with a copy of extents and zero offset.
func NewBox(extents []uint32) Box {
	return Box{Extents: slices.Clone(extents)}
}

// Dims returns the dimension count.
func (b Box) Dims() int {
	return len(b.Extents)
}

// Grow returns the next box in the retry sequence: every extent grows by
// 2·d and the offset by d, so the original data stays centered.
func (b Box) Grow() (Box, error) {
	d := uint64(len(b.Extents))
	next := Box{Extents: make([]uint32, len(b.Extents))}
	for a, e := range b.Extents {
		grown := uint64(e) + 2*d
		if grown > maxExtent {
			return Box{}, errors.Wrapf(surferrors.ErrAttemptFailed, "extent %d overflows on growth", a)
		}
		next.Extents[a] = uint32(grown)
	}
	next.Offset = b.Offset + uint32(d)
	return next, nil
}

// Contains reports whether every coordinate of p lies in [0, Extents[a]].
func (b Box) Contains(p []uint32) bool {
	if len(p) != len(b.Extents) {
		return false
	}
	for a, v := range p {
		if v > b.Extents[a] {
			return false
		}
	}
	return true
}

// Bound returns Extents[a]+1 per axis, the number of lattice values.
func (b Box) Bound() []uint64 {
	out := make([]uint64, len(b.Extents))
	for a, e := range b.Extents {
		out[a] = uint64(e) + 1
	}
	return out
}

// Clone returns a deep copy.
func (b Box) Clone() Box {
	return Box{Extents: slices.Clone(b.Extents), Offset: b.Offset}
}

// maxExtent keeps Extents[a]+1 and shifted coordinates inside uint32.
const maxExtent = 1<<32 - 2
