package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"

	"github.com/tamirms/surfacehash"
)

// sphereShell returns the lattice points within half a cell of a sphere of
// the given radius centered in [0, 2r]^3. Each point carries its octant
// normal, so every coordinate plane holds normals of a single sign per axis
// and recovery is unambiguous. density thins the shell through a seeded
// murmur3 hash of the point.
func sphereShell(radius uint32, density float64, seed uint32) []surfacehash.Sample[uint64] {
	c := float64(radius)
	threshold := uint32(math.Min(density, 1) * math.MaxUint32)
	var buf [12]byte
	var out []surfacehash.Sample[uint64]
	for x := uint32(0); x <= 2*radius; x++ {
		for y := uint32(0); y <= 2*radius; y++ {
			for z := uint32(0); z <= 2*radius; z++ {
				dx, dy, dz := float64(x)-c, float64(y)-c, float64(z)-c
				if math.Abs(math.Sqrt(dx*dx+dy*dy+dz*dz)-c) >= 0.5 {
					continue
				}
				binary.LittleEndian.PutUint32(buf[0:], x)
				binary.LittleEndian.PutUint32(buf[4:], y)
				binary.LittleEndian.PutUint32(buf[8:], z)
				h := murmur3.Sum32WithSeed(buf[:], seed)
				if density < 1 && h > threshold {
					continue
				}
				out = append(out, surfacehash.Sample[uint64]{
					Location: []uint32{x, y, z},
					Normal:   []int32{octant(dx), octant(dy), octant(dz)},
					Contents: uint64(len(out)),
				})
			}
		}
	}
	return out
}

func octant(d float64) int32 {
	if d < 0 {
		return -1
	}
	return 1
}

// readSamples parses whitespace-separated sample lines of the form
//
//	x y z nx ny nz value
//
// for any dimension count; the value is optional and defaults to the line's
// sample index. Normals are reduced to lowest terms. Blank lines and lines
// starting with '#' are skipped.
func readSamples(r io.Reader) ([]surfacehash.Sample[uint64], error) {
	var out []surfacehash.Sample[uint64]
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Fields(text)
		d := len(fields) / 2
		if d == 0 {
			return nil, fmt.Errorf("line %d: need location and normal", line)
		}
		s := surfacehash.Sample[uint64]{
			Location: make([]uint32, d),
			Normal:   make([]int32, d),
			Contents: uint64(len(out)),
		}
		for a := 0; a < d; a++ {
			v, err := strconv.ParseUint(fields[a], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: location: %w", line, err)
			}
			s.Location[a] = uint32(v)
			n, err := strconv.ParseInt(fields[d+a], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("line %d: normal: %w", line, err)
			}
			s.Normal[a] = int32(n)
		}
		surfacehash.ReduceNormal(s.Normal)
		if len(fields)%2 == 1 {
			v, err := strconv.ParseUint(fields[2*d], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: value: %w", line, err)
			}
			s.Contents = v
		}
		if len(out) > 0 && len(out[0].Location) != d {
			return nil, fmt.Errorf("line %d: %d dims, expected %d", line, d, len(out[0].Location))
		}
		out = append(out, s)
	}
	return out, sc.Err()
}

// parsePosition parses "x,y,z".
func parsePosition(s string) ([]uint32, error) {
	parts := strings.Split(s, ",")
	pos := make([]uint32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("position %q: %w", s, err)
		}
		pos[i] = uint32(v)
	}
	return pos, nil
}
