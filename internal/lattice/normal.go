package lattice

// NormalKey is a comparable fixed-size copy of a normal, usable as a map key.
type NormalKey [MaxDims]int32

// KeyOf packs n into a NormalKey. Unused trailing axes are zero.
func KeyOf(n []int32) NormalKey {
	var k NormalKey
	copy(k[:], n)
	return k
}

// PointKey is a comparable fixed-size copy of a position.
type PointKey [MaxDims]uint32

// PointKeyOf packs p into a PointKey.
func PointKeyOf(p []uint32) PointKey {
	var k PointKey
	copy(k[:], p)
	return k
}

// IsZero reports whether every component of n is zero.
func IsZero(n []int32) bool {
	for _, c := range n {
		if c != 0 {
			return false
		}
	}
	return true
}

// Reduce divides n in place by the gcd of its components, so that parallel
// directions share one representation. Zero vectors are left unchanged.
func Reduce(n []int32) []int32 {
	var g uint32
	for _, c := range n {
		g = gcd(g, abs32(c))
	}
	if g > 1 {
		for i := range n {
			n[i] = int32(int64(n[i]) / int64(g))
		}
	}
	return n
}

func abs32(c int32) uint32 {
	if c < 0 {
		return uint32(-int64(c))
	}
	return uint32(c)
}

func gcd(a, b uint32) uint32 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
