package surface

import (
	"errors"
	"math"
	"slices"
	"testing"

	surferrors "github.com/tamirms/surfacehash/errors"
	"github.com/tamirms/surfacehash/internal/lattice"
)

func TestTableSizeIsSurfaceArea(t *testing.T) {
	cases := []struct {
		extents []uint32
		want    uint64
	}{
		{[]uint32{2, 2, 2}, 6 * 9},
		{[]uint32{1, 2, 3}, 2*(3*4) + 2*(2*4) + 2*(2*3)},
		{[]uint32{4, 4}, 4 * 5},
		{[]uint32{7}, 2},
		{[]uint32{0, 0, 0}, 6},
	}
	for _, tc := range cases {
		l, err := NewLayout(lattice.NewBox(tc.extents))
		if err != nil {
			t.Fatal(err)
		}
		if got := l.TableSize(); got != tc.want {
			t.Errorf("extents %v: TableSize = %d, want %d", tc.extents, got, tc.want)
		}
	}
}

func TestFaceOffsetsArePrefixSums(t *testing.T) {
	l, err := NewLayout(lattice.NewBox([]uint32{1, 2, 3}))
	if err != nil {
		t.Fatal(err)
	}
	sizes := []uint64{12, 12, 8, 8, 6, 6}
	var want uint64
	for f, s := range sizes {
		if got := l.FaceOffset(f); got != want {
			t.Fatalf("FaceOffset(%d) = %d, want %d", f, got, want)
		}
		want += s
	}
}

func TestTableSizeNonDecreasingUnderGrowth(t *testing.T) {
	box := lattice.NewBox([]uint32{3, 0, 5})
	prev := uint64(0)
	for i := 0; i < 6; i++ {
		l, err := NewLayout(box)
		if err != nil {
			t.Fatal(err)
		}
		if l.TableSize() < prev {
			t.Fatalf("attempt %d: table shrank from %d to %d", i, prev, l.TableSize())
		}
		prev = l.TableSize()
		if box, err = box.Grow(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestNewLayoutRejectsHugeBox(t *testing.T) {
	_, err := NewLayout(lattice.NewBox([]uint32{1 << 20, 1 << 20, 1 << 20}))
	if !errors.Is(err, surferrors.ErrInvalidInput) {
		t.Fatalf("NewLayout = %v, want invalid input", err)
	}
}

func TestProject(t *testing.T) {
	box := lattice.NewBox([]uint32{4, 4, 4})
	l, err := NewLayout(box)
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name   string
		pos    []uint32
		normal []int32
		want   []uint32
		dist   uint64
	}{
		{"AxisDown", []uint32{2, 2, 1}, []int32{0, 0, -1}, []uint32{2, 2, 0}, DistanceScale},
		{"Diagonal", []uint32{2, 1, 1}, []int32{0, 1, -1}, []uint32{2, 2, 0}, DistanceScale},
		{"AlreadyOnFace", []uint32{4, 4, 4}, []int32{1, 1, 1}, []uint32{4, 4, 4}, 0},
		{"Fractional", []uint32{1, 1, 1}, []int32{2, 3, 0}, []uint32{3, 4, 1}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := make([]uint32, 3)
			dist, err := l.Project(tc.pos, tc.normal, got)
			if err != nil {
				t.Fatal(err)
			}
			if !slices.Equal(got, tc.want) {
				t.Fatalf("Project = %v, want %v", got, tc.want)
			}
			if tc.dist != 0 && dist != tc.dist {
				t.Fatalf("distance = %d, want %d", dist, tc.dist)
			}
			if !IsOnBoundary(got, box) {
				t.Fatalf("%v not on boundary", got)
			}
		})
	}
}

func TestProjectFractionalDistance(t *testing.T) {
	l, err := NewLayout(lattice.NewBox([]uint32{4, 4, 4}))
	if err != nil {
		t.Fatal(err)
	}
	got := make([]uint32, 3)
	dist, err := l.Project([]uint32{1, 1, 1}, []int32{2, 3, 0}, got)
	if err != nil {
		t.Fatal(err)
	}
	// Limited by axis 1: t = 3/3 = 1; axis 0 moves round(2·1) = 2.
	if dist != DistanceScale {
		t.Fatalf("distance = %d, want %d", dist, uint64(DistanceScale))
	}
	dist, err = l.Project([]uint32{1, 0, 1}, []int32{2, 3, 0}, got)
	if err != nil {
		t.Fatal(err)
	}
	// t = min(3/2, 4/3) = 4/3.
	tt := 4.0 / 3.0
	want := uint64(math.Round(tt * DistanceScale))
	if dist != want {
		t.Fatalf("distance = %d, want %d", dist, want)
	}
	if !slices.Equal(got, []uint32{4, 4, 1}) {
		t.Fatalf("moved = %v", got)
	}
}

func TestProjectUsesOffset(t *testing.T) {
	box := lattice.Box{Extents: []uint32{10, 10}, Offset: 3}
	l, err := NewLayout(box)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]uint32, 2)
	if _, err := l.Project([]uint32{0, 0}, []int32{-1, 0}, got); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, []uint32{0, 3}) {
		t.Fatalf("moved = %v", got)
	}
	if _, err := l.Project([]uint32{8, 0}, []int32{1, 0}, got); !errors.Is(err, surferrors.ErrLocationOutOfBox) {
		t.Fatalf("Project outside box = %v", err)
	}
}

func TestProjectZeroNormal(t *testing.T) {
	l, err := NewLayout(lattice.NewBox([]uint32{2, 2}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.Project([]uint32{1, 1}, []int32{0, 0}, make([]uint32, 2)); !errors.Is(err, surferrors.ErrZeroNormal) {
		t.Fatalf("Project = %v", err)
	}
}

func TestWhichFaceTieBreak(t *testing.T) {
	box := lattice.NewBox([]uint32{4, 4, 4})
	cases := []struct {
		p    []uint32
		want int
		ok   bool
	}{
		{[]uint32{0, 2, 2}, 0, true},
		{[]uint32{4, 2, 2}, 1, true},
		{[]uint32{2, 0, 2}, 2, true},
		{[]uint32{2, 4, 2}, 3, true},
		{[]uint32{2, 2, 0}, 4, true},
		{[]uint32{2, 2, 4}, 5, true},
		{[]uint32{4, 0, 4}, 1, true}, // corner goes to the lowest axis
		{[]uint32{2, 4, 0}, 3, true},
		{[]uint32{2, 2, 2}, -1, false},
	}
	for _, tc := range cases {
		got, ok := WhichFace(tc.p, box)
		if got != tc.want || ok != tc.ok {
			t.Errorf("WhichFace(%v) = (%d, %v), want (%d, %v)", tc.p, got, ok, tc.want, tc.ok)
		}
	}
	flat := lattice.NewBox([]uint32{0, 3})
	if f, _ := WhichFace([]uint32{0, 1}, flat); f != 0 {
		t.Errorf("zero extent axis: face %d, want lower face 0", f)
	}
}

// TestAddressInjective enumerates every boundary lattice point and checks
// that each gets its own slot inside the table.
func TestAddressInjective(t *testing.T) {
	for _, ext := range [][]uint32{{3, 4, 2}, {5, 5}, {2, 0, 3}, {6}, {1, 2, 1, 2}} {
		box := lattice.NewBox(ext)
		l, err := NewLayout(box)
		if err != nil {
			t.Fatal(err)
		}
		seen := make(map[uint64][]uint32)
		p := make([]uint32, len(ext))
		var walk func(a int)
		walk = func(a int) {
			if a == len(ext) {
				f, ok := WhichFace(p, box)
				if !ok {
					return
				}
				s := l.Address(p, f)
				if s >= l.TableSize() {
					t.Fatalf("extents %v: slot %d outside table %d", ext, s, l.TableSize())
				}
				if prev, dup := seen[s]; dup {
					t.Fatalf("extents %v: %v and %v share slot %d", ext, prev, p, s)
				}
				seen[s] = slices.Clone(p)
				return
			}
			for v := uint32(0); v <= ext[a]; v++ {
				p[a] = v
				walk(a + 1)
			}
		}
		walk(0)
	}
}

func TestSlotMatchesProjectAndAddress(t *testing.T) {
	box := lattice.NewBox([]uint32{4, 4, 4})
	l, err := NewLayout(box)
	if err != nil {
		t.Fatal(err)
	}
	pos, nrm := []uint32{2, 1, 1}, []int32{0, 1, -1}
	slot, dist, err := l.Slot(pos, nrm)
	if err != nil {
		t.Fatal(err)
	}
	moved := make([]uint32, 3)
	wantDist, _ := l.Project(pos, nrm, moved)
	f, _ := WhichFace(moved, box)
	if want := l.Address(moved, f); slot != want || dist != wantDist {
		t.Fatalf("Slot = (%d, %d), want (%d, %d)", slot, dist, want, wantDist)
	}
	if _, _, err := l.Slot([]uint32{1, 1}, nrm); !errors.Is(err, surferrors.ErrDimensionMismatch) {
		t.Fatalf("Slot with short position = %v", err)
	}
}
