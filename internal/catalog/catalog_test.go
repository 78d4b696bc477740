package catalog

import (
	"errors"
	"slices"
	"testing"

	surferrors "github.com/tamirms/surfacehash/errors"
	"github.com/tamirms/surfacehash/internal/bitset"
)

type sample struct {
	loc []uint32
	nrm []int32
}

type sliceSource []sample

func (s sliceSource) Len() int                { return len(s) }
func (s sliceSource) Location(i int) []uint32 { return s[i].loc }
func (s sliceSource) Normal(i int) []int32    { return s[i].nrm }

// faceCenters are the six face centers of a 2-cube with outward normals.
var faceCenters = sliceSource{
	{[]uint32{0, 1, 1}, []int32{-1, 0, 0}},
	{[]uint32{2, 1, 1}, []int32{1, 0, 0}},
	{[]uint32{1, 0, 1}, []int32{0, -1, 0}},
	{[]uint32{1, 2, 1}, []int32{0, 1, 0}},
	{[]uint32{1, 1, 0}, []int32{0, 0, -1}},
	{[]uint32{1, 1, 2}, []int32{0, 0, 1}},
}

func TestBuildDeduplicatesInFirstSeenOrder(t *testing.T) {
	src := sliceSource{
		{[]uint32{0, 0}, []int32{0, 1}},
		{[]uint32{1, 0}, []int32{1, 0}},
		{[]uint32{2, 0}, []int32{0, 1}},
	}
	c, err := Build(src, []uint32{2, 0})
	if err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if !slices.Equal(c.Normal(0), []int32{0, 1}) || !slices.Equal(c.Normal(1), []int32{1, 0}) {
		t.Fatalf("normals = %v", c.Normals())
	}
	if id, ok := c.Lookup([]int32{1, 0}); !ok || id != 1 {
		t.Fatalf("Lookup = (%d, %v)", id, ok)
	}
	if _, ok := c.Lookup([]int32{1, 1}); ok {
		t.Fatal("Lookup found an unseen normal")
	}
}

func TestRecoverFaceCenters(t *testing.T) {
	c, err := Build(faceCenters, []uint32{2, 2, 2})
	if err != nil {
		t.Fatal(err)
	}
	for i, s := range faceCenters {
		id, ok := c.Recover(s.loc)
		if !ok {
			t.Fatalf("sample %d: nothing recovered", i)
		}
		if !slices.Equal(c.Normal(id), s.nrm) {
			t.Fatalf("sample %d: recovered %v, want %v", i, c.Normal(id), s.nrm)
		}
		if c.Ambiguous(s.loc) {
			t.Fatalf("sample %d reported ambiguous", i)
		}
	}
	if _, ok := c.Recover([]uint32{1, 1, 1}); ok {
		t.Fatal("interior center recovered a normal")
	}
	if _, ok := c.Recover([]uint32{3, 1, 1}); ok {
		t.Fatal("out-of-extent position recovered a normal")
	}
	if _, ok := c.Recover([]uint32{1, 1}); ok {
		t.Fatal("wrong dimension position recovered a normal")
	}
}

func TestAmbiguousPositionReturnsLowestID(t *testing.T) {
	// Same location, two normals.
	src := sliceSource{
		{[]uint32{1, 1}, []int32{0, 1}},
		{[]uint32{1, 1}, []int32{1, 0}},
	}
	c, err := Build(src, []uint32{1, 1})
	if err != nil {
		t.Fatal(err)
	}
	if !c.Ambiguous([]uint32{1, 1}) {
		t.Fatal("expected ambiguity")
	}
	if id, ok := c.Recover([]uint32{1, 1}); !ok || id != 0 {
		t.Fatalf("Recover = (%d, %v), want lowest id 0", id, ok)
	}
	if !c.Resolves([]uint32{1, 1}, []int32{0, 1}) {
		t.Fatal("lowest normal does not resolve")
	}
	if c.Resolves([]uint32{1, 1}, []int32{1, 0}) {
		t.Fatal("shadowed normal resolves")
	}
}

func TestSharedPlanesResolveToLowestOwnNormal(t *testing.T) {
	// (0,0) shares both planes with normal 1 but owns normal 0.
	src := sliceSource{
		{[]uint32{0, 0}, []int32{-1, -1}},
		{[]uint32{0, 2}, []int32{1, 1}},
		{[]uint32{2, 0}, []int32{1, 1}},
	}
	c, err := Build(src, []uint32{2, 2})
	if err != nil {
		t.Fatal(err)
	}
	if !c.Ambiguous([]uint32{0, 0}) {
		t.Fatal("expected two normals on both planes of (0,0)")
	}
	for i, s := range src {
		if !c.Resolves(s.loc, s.nrm) {
			t.Errorf("sample %d at %v does not resolve", i, s.loc)
		}
	}
	if c.Resolves([]uint32{0, 0}, []int32{1, 0}) {
		t.Fatal("unknown normal resolves")
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	cases := []struct {
		name    string
		src     sliceSource
		extents []uint32
		want    error
	}{
		{"ZeroNormal", sliceSource{{[]uint32{0, 0}, []int32{0, 0}}}, []uint32{1, 1}, surferrors.ErrZeroNormal},
		{"NormalDims", sliceSource{{[]uint32{0, 0}, []int32{1}}}, []uint32{1, 1}, surferrors.ErrDimensionMismatch},
		{"LocationDims", sliceSource{{[]uint32{0}, []int32{1, 0}}}, []uint32{1, 1}, surferrors.ErrDimensionMismatch},
		{"OutOfBox", sliceSource{{[]uint32{2, 0}, []int32{1, 0}}}, []uint32{1, 1}, surferrors.ErrLocationOutOfBox},
		{"NoDims", sliceSource{}, []uint32{}, surferrors.ErrTooManyDims},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build(tc.src, tc.extents)
			if !errors.Is(err, tc.want) {
				t.Fatalf("Build = %v, want %v", err, tc.want)
			}
			if !errors.Is(err, surferrors.ErrInvalidInput) {
				t.Fatalf("Build error %v is not in the invalid input category", err)
			}
		})
	}
}

func TestFromPartsRoundTrip(t *testing.T) {
	c, err := Build(faceCenters, []uint32{2, 2, 2})
	if err != nil {
		t.Fatal(err)
	}
	rebuilt, err := FromParts(c.Normals(), [][]*bitset.BitVector{c.Planes(0), c.Planes(1), c.Planes(2)})
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range faceCenters {
		a, _ := c.Recover(s.loc)
		b, ok := rebuilt.Recover(s.loc)
		if !ok || a != b {
			t.Fatalf("rebuilt catalog recovered %d, want %d", b, a)
		}
	}
	if rebuilt.MemorySize() != c.MemorySize() {
		t.Fatalf("MemorySize %d != %d", rebuilt.MemorySize(), c.MemorySize())
	}
}
