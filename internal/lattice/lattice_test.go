package lattice

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	surferrors "github.com/tamirms/surfacehash/errors"
)

func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(sum[:8]), binary.LittleEndian.Uint64(sum[8:])))
}

func TestPointToIndexRowMajor(t *testing.T) {
	bound := []uint32{3, 4, 5}
	want := uint64(0)
	for x := uint32(0); x < 3; x++ {
		for y := uint32(0); y < 4; y++ {
			for z := uint32(0); z < 5; z++ {
				got := PointToIndex([]uint32{x, y, z}, bound, 60)
				if got != want {
					t.Fatalf("PointToIndex(%d,%d,%d) = %d, want %d", x, y, z, got, want)
				}
				want++
			}
		}
	}
}

func TestIndexRoundTrip(t *testing.T) {
	rng := newTestRNG(t)
	for iter := 0; iter < 2000; iter++ {
		d := 1 + rng.IntN(MaxDims)
		bound := make([]uint16, d)
		for a := range bound {
			bound[a] = uint16(1 + rng.IntN(40))
		}
		vol := Volume(bound)
		p := make([]uint8, d)
		for a := range p {
			p[a] = uint8(rng.IntN(int(bound[a])))
		}
		idx := PointToIndex(p, bound, vol)
		if idx >= vol {
			t.Fatalf("index %d outside volume %d", idx, vol)
		}
		back := IndexToPoint(idx, bound, vol, make([]uint8, d))
		if !slices.Equal(back, p) {
			t.Fatalf("round trip %v -> %d -> %v (bound %v)", p, idx, back, bound)
		}
	}
}

func TestPointToIndexReducesModulus(t *testing.T) {
	bound := []uint32{10, 10}
	p := []uint32{7, 3}
	if got := PointToIndex(p, bound, 13); got != 73%13 {
		t.Fatalf("got %d, want %d", got, 73%13)
	}
	if got := PointToIndex(p, bound, 0); got != 0 {
		t.Fatalf("zero modulus = %d", got)
	}
}

func TestPointToIndexWideMultiplier(t *testing.T) {
	// The exact mixed-radix value exceeds 64 bits; only the residue matters.
	bound := []uint64{math.MaxUint32, math.MaxUint32, math.MaxUint32}
	p := []uint32{math.MaxUint32 - 1, 1, 2}
	const m = 1_000_000_007
	// (a*B^2 + b*B + c) mod m computed step by step.
	B := uint64(math.MaxUint32) % m
	want := ((uint64(p[0])%m)*B%m*B%m + uint64(p[1])*B%m + uint64(p[2])) % m
	if got := PointToIndex(p, bound, m); got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestIndexToPointOverflowStaysOnAxisZero(t *testing.T) {
	bound := []uint32{2, 3}
	got := IndexToPoint(7, bound, 100, make([]uint32, 2))
	if !slices.Equal(got, []uint32{2, 1}) {
		t.Fatalf("got %v", got)
	}
}

func TestVolumeSaturates(t *testing.T) {
	if v := Volume([]uint64{1 << 40, 1 << 40}); v != math.MaxUint64 {
		t.Fatalf("Volume = %d", v)
	}
	if v := Volume([]uint32{}); v != 1 {
		t.Fatalf("empty Volume = %d", v)
	}
}

func TestBoxGrowMonotone(t *testing.T) {
	b := NewBox([]uint32{4, 0, 9})
	for i := 0; i < 5; i++ {
		next, err := b.Grow()
		if err != nil {
			t.Fatal(err)
		}
		for a := range b.Extents {
			if next.Extents[a] != b.Extents[a]+6 {
				t.Fatalf("axis %d: %d -> %d", a, b.Extents[a], next.Extents[a])
			}
		}
		if next.Offset != b.Offset+3 {
			t.Fatalf("offset %d -> %d", b.Offset, next.Offset)
		}
		b = next
	}
}

func TestBoxGrowOverflow(t *testing.T) {
	b := NewBox([]uint32{math.MaxUint32 - 1})
	if _, err := b.Grow(); !errors.Is(err, surferrors.ErrAttemptFailed) {
		t.Fatalf("Grow = %v, want ErrAttemptFailed", err)
	}
}

func TestBoxContains(t *testing.T) {
	b := NewBox([]uint32{2, 3})
	cases := []struct {
		p    []uint32
		want bool
	}{
		{[]uint32{0, 0}, true},
		{[]uint32{2, 3}, true},
		{[]uint32{3, 0}, false},
		{[]uint32{0, 4}, false},
		{[]uint32{0}, false},
	}
	for _, c := range cases {
		if got := b.Contains(c.p); got != c.want {
			t.Errorf("Contains(%v) = %v", c.p, got)
		}
	}
}

func TestReduce(t *testing.T) {
	cases := []struct{ in, want []int32 }{
		{[]int32{2, 4, -6}, []int32{1, 2, -3}},
		{[]int32{0, 0, -5}, []int32{0, 0, -1}},
		{[]int32{3, 5}, []int32{3, 5}},
		{[]int32{0, 0}, []int32{0, 0}},
		{[]int32{math.MinInt32, 0}, []int32{-1, 0}},
	}
	for _, c := range cases {
		got := Reduce(slices.Clone(c.in))
		if !slices.Equal(got, c.want) {
			t.Errorf("Reduce(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestCheckDims(t *testing.T) {
	for _, d := range []int{0, MaxDims + 1} {
		if err := CheckDims(d); !errors.Is(err, surferrors.ErrTooManyDims) {
			t.Errorf("CheckDims(%d) = %v", d, err)
		}
	}
	if err := CheckDims(3); err != nil {
		t.Errorf("CheckDims(3) = %v", err)
	}
}
