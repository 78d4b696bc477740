// Package fks builds and queries the two-level perfect hash over the surface
// address space.
//
// The first level is the surface table: every sample is projected onto the
// box boundary and its boundary point addresses one primary slot. Samples
// whose natural slot is already taken are moved into free slots, and the
// natural slot (the anchor) gets a redirect bucket: a small FKS-style table
// whose modulus is chosen so the secondary hash is collision-free over the
// bucket's verify tokens.
//
// A slot never stores the sample's location. The verify token (normal id,
// quantized projection distance) is enough to tell the stored sample apart
// from every other position that addresses the same slot.
package fks

import (
	"unsafe"

	"github.com/pkg/errors"

	surferrors "github.com/tamirms/surfacehash/errors"
	"github.com/tamirms/surfacehash/internal/catalog"
	"github.com/tamirms/surfacehash/internal/surface"
)

// Token identifies which sample a slot holds.
type Token struct {
	Normal   uint32 // catalog normal id + 1; 0 marks an empty slot
	Distance uint64 // quantized projection distance
}

// Empty reports whether the token is the empty sentinel.
func (t Token) Empty() bool {
	return t.Normal == 0
}

// Slot is one primary table entry.
type Slot struct {
	Token Token

	// Redirect is the bucket index + 1 when the slot is an anchor, else 0.
	Redirect uint32

	// Redirected marks occupants moved here from their natural slot. They
	// are only reachable through their anchor's bucket.
	Redirected bool
}

// Bucket is a second-level table. Entries hold primary slot index + 1, with
// 0 meaning unset; len(Slots) == Modulus.
type Bucket struct {
	Modulus uint32
	Slots   []uint32
}

// Table is the built structure. It is immutable and safe for concurrent
// readers.
type Table struct {
	layout  *surface.Layout
	catalog *catalog.Catalog
	slots   []Slot
	buckets []Bucket
}

// NewTable assembles a table from decoded parts, checking that every
// reference stays in range.
func NewTable(layout *surface.Layout, cat *catalog.Catalog, slots []Slot, buckets []Bucket) (*Table, error) {
	if uint64(len(slots)) != layout.TableSize() {
		return nil, errors.Wrapf(surferrors.ErrCorruptedIndex, "%d slots for table size %d", len(slots), layout.TableSize())
	}
	if cat.Dims() != layout.Dims() {
		return nil, errors.Wrapf(surferrors.ErrCorruptedIndex, "catalog has %d dims, layout %d", cat.Dims(), layout.Dims())
	}
	for i, s := range slots {
		if s.Token.Normal > uint32(cat.Len()) {
			return nil, errors.Wrapf(surferrors.ErrCorruptedIndex, "slot %d: normal %d of %d", i, s.Token.Normal, cat.Len())
		}
		if s.Redirect > uint32(len(buckets)) {
			return nil, errors.Wrapf(surferrors.ErrCorruptedIndex, "slot %d: bucket %d of %d", i, s.Redirect, len(buckets))
		}
	}
	for i, b := range buckets {
		if b.Modulus == 0 || int(b.Modulus) != len(b.Slots) {
			return nil, errors.Wrapf(surferrors.ErrCorruptedIndex, "bucket %d: modulus %d with %d entries", i, b.Modulus, len(b.Slots))
		}
		for _, ref := range b.Slots {
			if uint64(ref) > uint64(len(slots)) {
				return nil, errors.Wrapf(surferrors.ErrCorruptedIndex, "bucket %d references slot %d", i, ref)
			}
		}
	}
	return &Table{layout: layout, catalog: cat, slots: slots, buckets: buckets}, nil
}

// Layout returns the addressing layout.
func (t *Table) Layout() *surface.Layout {
	return t.layout
}

// Catalog returns the normal catalog.
func (t *Table) Catalog() *catalog.Catalog {
	return t.catalog
}

// Slots returns the primary table. Callers must not modify it.
func (t *Table) Slots() []Slot {
	return t.slots
}

// Buckets returns the redirect table. Callers must not modify it.
func (t *Table) Buckets() []Bucket {
	return t.buckets
}

// Locate returns the primary slot holding the sample stored at pos.
//
// Every mismatch along the way (no consistent normal, position outside the
// box, token mismatch, unset bucket entry) is a definitive miss: the
// surface address space is shared by many positions and a mismatch is how
// absence is detected.
func (t *Table) Locate(pos []uint32) (int, bool) {
	id, ok := t.catalog.Recover(pos)
	if !ok {
		return -1, false
	}
	normal := t.catalog.Normal(id)
	slot, distance, err := t.layout.Slot(pos, normal)
	if err != nil {
		return -1, false
	}
	tok := Token{Normal: id + 1, Distance: distance}

	e := &t.slots[slot]
	if e.Redirect == 0 {
		if e.Redirected || e.Token != tok {
			return -1, false
		}
		return int(slot), true
	}

	b := &t.buckets[e.Redirect-1]
	ref := b.Slots[SecondaryHash(normal, distance, b.Modulus)]
	if ref == 0 || t.slots[ref-1].Token != tok {
		return -1, false
	}
	return int(ref - 1), true
}

// Stats summarizes table occupancy.
type Stats struct {
	TableSize     uint64
	Occupied      int
	Redirected    int
	Buckets       int
	MaxBucket     int
	RedirectSlots int
}

// Stats walks the tables and returns occupancy counts.
func (t *Table) Stats() Stats {
	s := Stats{TableSize: t.layout.TableSize(), Buckets: len(t.buckets)}
	for i := range t.slots {
		if !t.slots[i].Token.Empty() {
			s.Occupied++
		}
		if t.slots[i].Redirected {
			s.Redirected++
		}
	}
	for _, b := range t.buckets {
		s.RedirectSlots += len(b.Slots)
		members := 0
		for _, ref := range b.Slots {
			if ref != 0 {
				members++
			}
		}
		s.MaxBucket = max(s.MaxBucket, members)
	}
	return s
}

// MemorySize returns the bytes owned by the primary and redirect tables
// and the catalog.
func (t *Table) MemorySize() int {
	size := cap(t.slots) * int(unsafe.Sizeof(Slot{}))
	size += cap(t.buckets) * int(unsafe.Sizeof(Bucket{}))
	for _, b := range t.buckets {
		size += cap(b.Slots) * 4
	}
	return size + t.catalog.MemorySize()
}
