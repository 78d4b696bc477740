package surfacehash

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"io"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"testing"

	log "github.com/sirupsen/logrus"

	surferrors "github.com/tamirms/surfacehash/errors"
	"github.com/tamirms/surfacehash/internal/lattice"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// quietLogger discards build logging so test output stays readable.
func quietLogger() log.FieldLogger {
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}

// faceCenters returns the six face centers of a 2-cube with outward
// axis-aligned normals.
func faceCenters() []Sample[bool] {
	return []Sample[bool]{
		{[]uint32{0, 1, 1}, []int32{-1, 0, 0}, true},
		{[]uint32{2, 1, 1}, []int32{1, 0, 0}, true},
		{[]uint32{1, 0, 1}, []int32{0, -1, 0}, true},
		{[]uint32{1, 2, 1}, []int32{0, 1, 0}, true},
		{[]uint32{1, 1, 0}, []int32{0, 0, -1}, true},
		{[]uint32{1, 1, 2}, []int32{0, 0, 1}, true},
	}
}

// collidingSamples holds two samples landing on the same boundary point
// (2,2,0) after one unit of travel, plus a corner sample fixing the box.
func collidingSamples() []Sample[string] {
	return []Sample[string]{
		{[]uint32{2, 2, 1}, []int32{0, 0, -1}, "a"},
		{[]uint32{2, 1, 1}, []int32{0, 1, -1}, "b"},
		{[]uint32{4, 4, 4}, []int32{1, 1, 1}, "c"},
	}
}

// slabNormals are chosen by x mod 3, so every x plane carries a single
// normal and recovery is never ambiguous.
var slabNormals = [][]int32{{1, 2, -1}, {-2, 1, 3}, {0, -1, 1}}

// randomSamples draws n distinct positions in a cube of side ext with
// uint32 contents equal to the draw order.
func randomSamples(rng *rand.Rand, n int, ext uint32) []Sample[uint32] {
	seen := make(map[lattice.PointKey]bool)
	out := make([]Sample[uint32], 0, n)
	for len(out) < n {
		p := []uint32{rng.Uint32N(ext + 1), rng.Uint32N(ext + 1), rng.Uint32N(ext + 1)}
		k := lattice.PointKeyOf(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, Sample[uint32]{
			Location: p,
			Normal:   slices.Clone(slabNormals[p[0]%3]),
			Contents: uint32(len(out)) + 1,
		})
	}
	return out
}

// denseGrid covers every point of an (ext+1)² grid with normal (x+1, y+1).
// It has more samples than the tight box has surface slots, so the first
// attempt always fails.
func denseGrid(ext uint32) []Sample[int] {
	var out []Sample[int]
	for x := uint32(0); x <= ext; x++ {
		for y := uint32(0); y <= ext; y++ {
			out = append(out, Sample[int]{
				Location: []uint32{x, y},
				Normal:   []int32{int32(x) + 1, int32(y) + 1},
				Contents: int(x*100 + y),
			})
		}
	}
	return out
}

// buildMap builds samples with quiet logging and fails the test on error.
func buildMap[T any](t *testing.T, samples []Sample[T], opts ...BuildOption) *Map[T] {
	t.Helper()
	opts = append([]BuildOption{WithLogger(quietLogger())}, opts...)
	m, err := BuildSlice(context.Background(), samples, opts...)
	if err != nil {
		t.Fatalf("BuildSlice: %v", err)
	}
	return m
}

// verifyRoundTrip checks every sample resolves to its own contents.
func verifyRoundTrip[T comparable](t *testing.T, m *Map[T], samples []Sample[T]) {
	t.Helper()
	for i, s := range samples {
		got, err := m.Get(s.Location)
		if err != nil {
			t.Fatalf("sample %d at %v: %v", i, s.Location, err)
		}
		if got != s.Contents {
			t.Fatalf("sample %d at %v: got %v, want %v", i, s.Location, got, s.Contents)
		}
	}
}

// verifyCubeNegatives walks every lattice position in [0, ext]^3 and checks
// that unstored ones are NotFound.
func verifyCubeNegatives[T any](t *testing.T, m *Map[T], samples []Sample[T], ext uint32) {
	t.Helper()
	stored := make(map[lattice.PointKey]bool, len(samples))
	for _, s := range samples {
		stored[lattice.PointKeyOf(s.Location)] = true
	}
	p := make([]uint32, 3)
	for x := uint32(0); x <= ext; x++ {
		for y := uint32(0); y <= ext; y++ {
			for z := uint32(0); z <= ext; z++ {
				p[0], p[1], p[2] = x, y, z
				if stored[lattice.PointKeyOf(p)] {
					continue
				}
				if _, err := m.Get(p); err != surferrors.ErrNotFound {
					t.Fatalf("unstored %v: got err %v, want ErrNotFound", p, err)
				}
			}
		}
	}
}

// writeAndOpen persists m with a uint32 payload and opens the result.
func writeAndOpen(t *testing.T, m *Map[uint32], opts ...WriteOption) (*Index, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.idx")
	if err := m.WriteFile(path, 4, func(v uint32) uint64 { return uint64(v) }, opts...); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	idx, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx, path
}
