// Package catalog implements the normal catalog: a deduplicated table of the
// normal directions present in a dataset plus, for every axis and every
// coordinate value along it, a bit vector flagging which normals occur on
// that lattice plane.
//
// Intersecting the d plane vectors of a position recovers the normal stored
// there without keeping a normal per table slot. This only works when no two
// samples whose planes intersect at a stored position carry different
// normals; Resolves reports positions where that invariant is violated.
package catalog

import (
	"github.com/pkg/errors"

	surferrors "github.com/tamirms/surfacehash/errors"
	"github.com/tamirms/surfacehash/internal/bitset"
	"github.com/tamirms/surfacehash/internal/lattice"
)

// Source is the sample view the catalog needs. Location and Normal must
// return the same values every time they are called for an index.
type Source interface {
	Len() int
	Location(i int) []uint32
	Normal(i int) []int32
}

// Catalog is immutable after Build and safe for concurrent readers.
type Catalog struct {
	dims    int
	normals [][]int32
	index   map[lattice.NormalKey]uint32

	// planes[a][v] flags normals occurring at coordinate v on axis a.
	planes [][]*bitset.BitVector
}

// Build deduplicates the normals of src in first-seen order and fills the
// per-axis plane vectors. Every location must lie within extents.
func Build(src Source, extents []uint32) (*Catalog, error) {
	dims := len(extents)
	if err := lattice.CheckDims(dims); err != nil {
		return nil, err
	}
	c := &Catalog{
		dims:  dims,
		index: make(map[lattice.NormalKey]uint32),
	}

	n := src.Len()
	ids := make([]uint32, n)
	for i := 0; i < n; i++ {
		nrm := src.Normal(i)
		if len(nrm) != dims {
			return nil, errors.Wrapf(surferrors.ErrDimensionMismatch, "sample %d: normal has %d components, want %d", i, len(nrm), dims)
		}
		if lattice.IsZero(nrm) {
			return nil, errors.Wrapf(surferrors.ErrZeroNormal, "sample %d", i)
		}
		key := lattice.KeyOf(nrm)
		id, ok := c.index[key]
		if !ok {
			id = uint32(len(c.normals))
			c.index[key] = id
			c.normals = append(c.normals, append([]int32(nil), nrm...))
		}
		ids[i] = id
	}

	size := len(c.normals)
	c.planes = make([][]*bitset.BitVector, dims)
	for a := range c.planes {
		c.planes[a] = make([]*bitset.BitVector, uint64(extents[a])+1)
		for v := range c.planes[a] {
			c.planes[a][v] = bitset.New(size)
		}
	}

	for i := 0; i < n; i++ {
		loc := src.Location(i)
		if len(loc) != dims {
			return nil, errors.Wrapf(surferrors.ErrDimensionMismatch, "sample %d: location has %d components, want %d", i, len(loc), dims)
		}
		for a, v := range loc {
			if v > extents[a] {
				return nil, errors.Wrapf(surferrors.ErrLocationOutOfBox, "sample %d: axis %d value %d exceeds extent %d", i, a, v, extents[a])
			}
			if err := c.planes[a][v].Set(int(ids[i])); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// FromParts reassembles a catalog from decoded normals and plane vectors.
func FromParts(normals [][]int32, planes [][]*bitset.BitVector) (*Catalog, error) {
	dims := len(planes)
	if err := lattice.CheckDims(dims); err != nil {
		return nil, err
	}
	c := &Catalog{
		dims:    dims,
		normals: normals,
		index:   make(map[lattice.NormalKey]uint32, len(normals)),
		planes:  planes,
	}
	for id, nrm := range normals {
		if len(nrm) != dims || lattice.IsZero(nrm) {
			return nil, errors.Wrapf(surferrors.ErrCorruptedIndex, "normal %d", id)
		}
		c.index[lattice.KeyOf(nrm)] = uint32(id)
	}
	for a := range planes {
		for v, p := range planes[a] {
			if p.Len() != len(normals) {
				return nil, errors.Wrapf(surferrors.ErrCorruptedIndex, "plane %d/%d has %d bits, want %d", a, v, p.Len(), len(normals))
			}
		}
	}
	return c, nil
}

// Dims returns the dimension count.
func (c *Catalog) Dims() int {
	return c.dims
}

// Len returns the number of distinct normals.
func (c *Catalog) Len() int {
	return len(c.normals)
}

// Normal returns normal id. The slice must not be modified.
func (c *Catalog) Normal(id uint32) []int32 {
	return c.normals[id]
}

// Normals returns the full normal table in id order.
func (c *Catalog) Normals() [][]int32 {
	return c.normals
}

// Planes returns the plane vectors of axis a, indexed by coordinate value.
func (c *Catalog) Planes(a int) []*bitset.BitVector {
	return c.planes[a]
}

// Lookup returns the id of normal n.
func (c *Catalog) Lookup(n []int32) (uint32, bool) {
	if len(n) != c.dims {
		return 0, false
	}
	id, ok := c.index[lattice.KeyOf(n)]
	return id, ok
}

// Recover intersects the plane vectors of pos and returns the lowest normal
// id present on all of them. Positions outside the catalog's extents
// recover nothing.
func (c *Catalog) Recover(pos []uint32) (uint32, bool) {
	var buf [lattice.MaxDims]*bitset.BitVector
	vs, ok := c.planesAt(pos, buf[:0])
	if !ok {
		return 0, false
	}
	id, found := bitset.FirstCommon(vs...)
	if !found {
		return 0, false
	}
	return uint32(id), true
}

// Ambiguous reports whether more than one normal is consistent with pos.
func (c *Catalog) Ambiguous(pos []uint32) bool {
	var buf [lattice.MaxDims]*bitset.BitVector
	vs, ok := c.planesAt(pos, buf[:0])
	if !ok {
		return false
	}
	return bitset.CountCommon(2, vs...) > 1
}

// Resolves reports whether Recover(pos) yields the id of normal n. A
// position whose planes share several normals still resolves when the
// lowest of them is its own.
func (c *Catalog) Resolves(pos []uint32, n []int32) bool {
	want, ok := c.Lookup(n)
	if !ok {
		return false
	}
	got, ok := c.Recover(pos)
	return ok && got == want
}

func (c *Catalog) planesAt(pos []uint32, vs []*bitset.BitVector) ([]*bitset.BitVector, bool) {
	if len(pos) != c.dims {
		return nil, false
	}
	for a, v := range pos {
		if uint64(v) >= uint64(len(c.planes[a])) {
			return nil, false
		}
		vs = append(vs, c.planes[a][v])
	}
	return vs, true
}

// MemorySize returns the bytes owned by the normal table and plane vectors.
func (c *Catalog) MemorySize() int {
	size := len(c.normals) * c.dims * 4
	for a := range c.planes {
		size += cap(c.planes[a]) * 8
		for _, p := range c.planes[a] {
			size += p.MemorySize()
		}
	}
	return size
}
