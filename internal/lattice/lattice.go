// Package lattice provides the integer point helpers shared by the catalog,
// the surface projector and the hash builder: mixed-radix point/index
// conversion, the working bounding box, and normal direction utilities.
//
// Positions are unsigned lattice coordinates ([]uint32). Normals are signed
// directions ([]int32). All points of one structure share a dimension count
// between 1 and MaxDims.
package lattice

import (
	"math/bits"

	"github.com/pkg/errors"

	surferrors "github.com/tamirms/surfacehash/errors"
)

// MaxDims bounds the dimension count so fixed-size scratch arrays and
// comparable normal keys can live on the stack.
const MaxDims = 8

// Unsigned is the set of coordinate and bound widths accepted by the indexer.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// PointToIndex encodes p as a row-major mixed-radix number over bound (the
// last axis varies fastest) and reduces it modulo modulus.
//
// Point and bound widths may differ; both are promoted to uint64 and the
// running index and multiplier are kept reduced modulo modulus with 128-bit
// intermediates, so the accumulated multiplier never overflows. The result
// equals the exact mixed-radix value mod modulus.
func PointToIndex[P, B Unsigned](p []P, bound []B, modulus uint64) uint64 {
	if modulus == 0 {
		return 0
	}
	var index uint64
	mul := uint64(1) % modulus
	for s := len(p) - 1; s >= 0; s-- {
		index = addMod(index, mulMod(uint64(p[s])%modulus, mul, modulus), modulus)
		mul = mulMod(mul, uint64(bound[s])%modulus, modulus)
	}
	return index
}

// IndexToPoint is the inverse of PointToIndex for index < product(bound) and
// modulus >= product(bound). The index is first reduced modulo modulus; any
// remainder beyond the radix of axes 1..d-1 is left on axis 0. dst must have
// len(bound) elements and is returned.
func IndexToPoint[P, B Unsigned](index uint64, bound []B, modulus uint64, dst []P) []P {
	if modulus != 0 {
		index %= modulus
	}
	for s := len(bound) - 1; s > 0; s-- {
		radix := uint64(bound[s])
		if radix == 0 {
			dst[s] = 0
			continue
		}
		dst[s] = P(index % radix)
		index /= radix
	}
	if len(dst) > 0 {
		dst[0] = P(index)
	}
	return dst
}

// Volume returns the product of bound, saturating at MaxUint64.
func Volume[B Unsigned](bound []B) uint64 {
	v := uint64(1)
	for _, b := range bound {
		hi, lo := bits.Mul64(v, uint64(b))
		if hi != 0 {
			return ^uint64(0)
		}
		v = lo
	}
	return v
}

func mulMod(a, b, m uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi == 0 {
		return lo % m
	}
	return bits.Rem64(hi, lo, m)
}

func addMod(a, b, m uint64) uint64 {
	s, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return bits.Rem64(1, s, m)
	}
	return s % m
}

// CheckDims validates a dimension count.
func CheckDims(d int) error {
	if d < 1 || d > MaxDims {
		return errors.Wrapf(surferrors.ErrTooManyDims, "dimension count %d not in [1, %d]", d, MaxDims)
	}
	return nil
}
