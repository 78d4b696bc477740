// Package surface maps lattice points onto the boundary of the working box
// and addresses boundary points in a linear table sized to the box's surface
// area rather than its volume.
//
// # Projection
//
// A point is shifted by the box offset and then moved along its normal until
// the first axis reaches its bound. The travel t is quantized into an
// integer distance (t · DistanceScale, rounded). The quantization is lossy on
// purpose: it keeps verify tokens narrow, and two samples that share a
// normal, a boundary point and a quantized distance are simply a
// construction-time collision.
//
// # Addressing
//
// Face 2a is the lower face of axis a (coordinate 0) and face 2a+1 the upper
// face (coordinate Extents[a]). A boundary point belongs to exactly one face:
// the lowest-indexed axis sitting on a bound, lower bound first. Its slot is
// the row-major index of its d-1 free coordinates (each ranging over
// Extents+1 values) plus the face's offset. Every boundary lattice point
// therefore has a distinct slot in [0, TableSize).
package surface

import (
	"math"

	"github.com/pkg/errors"

	surferrors "github.com/tamirms/surfacehash/errors"
	"github.com/tamirms/surfacehash/internal/lattice"
)

// DistanceScale converts fractional travel into the verify token's
// distance domain.
const DistanceScale = math.MaxUint32 >> 4

// MaxTableSize keeps slot indices, stored 1-based in redirect buckets,
// inside uint32.
const MaxTableSize = math.MaxUint32 - 1

// Layout holds the per-box addressing constants. It is immutable and safe
// for concurrent use.
type Layout struct {
	box        lattice.Box
	bound      []uint64 // Extents[a]+1
	faceSize   []uint64 // per axis: product of the other axes' bounds
	faceOffset []uint64 // per face: prefix sum of face sizes
	tableSize  uint64
}

// NewLayout precomputes face sizes and offsets for box.
func NewLayout(box lattice.Box) (*Layout, error) {
	d := box.Dims()
	if err := lattice.CheckDims(d); err != nil {
		return nil, err
	}
	l := &Layout{
		box:        box.Clone(),
		bound:      box.Bound(),
		faceSize:   make([]uint64, d),
		faceOffset: make([]uint64, 2*d),
	}
	var free [lattice.MaxDims]uint64
	for a := 0; a < d; a++ {
		k := 0
		for b := 0; b < d; b++ {
			if b != a {
				free[k] = l.bound[b]
				k++
			}
		}
		l.faceSize[a] = lattice.Volume(free[:k])
	}
	var total uint64
	for f := 0; f < 2*d; f++ {
		l.faceOffset[f] = total
		size := l.faceSize[f/2]
		if size > MaxTableSize || total+size > MaxTableSize {
			return nil, surferrors.Invalidf("surface table for extents %v exceeds %d slots", box.Extents, uint64(MaxTableSize))
		}
		total += size
	}
	l.tableSize = total
	return l, nil
}

// Box returns the box the layout was built for.
func (l *Layout) Box() lattice.Box {
	return l.box
}

// Dims returns the dimension count.
func (l *Layout) Dims() int {
	return len(l.bound)
}

// TableSize returns the number of primary slots: the box's surface area in
// lattice points, Σ_a 2·Π_{b≠a}(Extents[b]+1).
func (l *Layout) TableSize() uint64 {
	return l.tableSize
}

// FaceOffset returns the first slot of face f.
func (l *Layout) FaceOffset(f int) uint64 {
	return l.faceOffset[f]
}

// Project shifts pos by the box offset and moves it along normal to the
// boundary, writing the boundary point into dst (len Dims). It returns the
// quantized travel distance.
func (l *Layout) Project(pos []uint32, normal []int32, dst []uint32) (uint64, error) {
	ext := l.box.Extents
	if len(pos) != len(ext) || len(normal) != len(ext) {
		return 0, errors.Wrapf(surferrors.ErrDimensionMismatch, "project %d/%d components in %d dims", len(pos), len(normal), len(ext))
	}
	var shifted [lattice.MaxDims]uint64
	t := math.Inf(1)
	for a, p := range pos {
		v := uint64(p) + uint64(l.box.Offset)
		if v > uint64(ext[a]) {
			return 0, errors.Wrapf(surferrors.ErrLocationOutOfBox, "axis %d value %d exceeds extent %d", a, v, ext[a])
		}
		shifted[a] = v
		var move float64
		switch n := normal[a]; {
		case n > 0:
			move = float64(uint64(ext[a])-v) / float64(n)
		case n < 0:
			move = float64(v) / -float64(n)
		default:
			continue
		}
		t = min(t, move)
	}
	if math.IsInf(t, 1) {
		return 0, surferrors.ErrZeroNormal
	}
	for a := range pos {
		moved := int64(shifted[a]) + int64(math.Round(t*float64(normal[a])))
		moved = max(0, min(moved, int64(ext[a])))
		dst[a] = uint32(moved)
	}
	return uint64(math.Round(t * DistanceScale)), nil
}

// IsOnBoundary reports whether some coordinate of p equals 0 or its extent.
func IsOnBoundary(p []uint32, box lattice.Box) bool {
	_, ok := WhichFace(p, box)
	return ok
}

// WhichFace returns the face a boundary point is attributed to. Axes are
// scanned in increasing order and the first axis on a bound decides; on that
// axis the lower face wins when both bounds coincide (zero extent).
func WhichFace(p []uint32, box lattice.Box) (int, bool) {
	for a, v := range p {
		switch {
		case v == 0:
			return 2 * a, true
		case v == box.Extents[a]:
			return 2*a + 1, true
		}
	}
	return -1, false
}

// Address returns the slot of boundary point p on face f.
func (l *Layout) Address(p []uint32, f int) uint64 {
	fixed := f / 2
	var free [lattice.MaxDims]uint32
	var bound [lattice.MaxDims]uint64
	k := 0
	for a, v := range p {
		if a == fixed {
			continue
		}
		free[k] = v
		bound[k] = l.bound[a]
		k++
	}
	return l.faceOffset[f] + lattice.PointToIndex(free[:k], bound[:k], l.faceSize[fixed])
}

// Slot projects pos along normal and returns its primary slot together with
// the quantized distance.
func (l *Layout) Slot(pos []uint32, normal []int32) (slot, distance uint64, err error) {
	if len(pos) != l.Dims() {
		return 0, 0, errors.Wrapf(surferrors.ErrDimensionMismatch, "position has %d components, want %d", len(pos), l.Dims())
	}
	var buf [lattice.MaxDims]uint32
	moved := buf[:len(pos)]
	distance, err = l.Project(pos, normal, moved)
	if err != nil {
		return 0, 0, err
	}
	f, ok := WhichFace(moved, l.box)
	if !ok {
		// Projection always stops on a bound; reaching here means the
		// layout and the box disagree.
		return 0, 0, errors.Wrapf(surferrors.ErrLocationOutOfBox, "projected point %v not on boundary", moved)
	}
	return l.Address(moved, f), distance, nil
}
