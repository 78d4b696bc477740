package fks

// secondaryWeight is the polynomial weight applied per normal component.
// Odd, so multiplication is a bijection mod 2^64.
const secondaryWeight = 0x517cc1b727220a95

// MaxModulus is the largest secondary modulus the builder will try. Bucket
// moduli are stored as uint16 in the index file.
const MaxModulus = 1<<16 - 1

// SecondaryMix folds a verify token into 64 bits: a weighted polynomial over
// the distance and the normal components, followed by a SplitMix64
// finalizer so that small moduli see well-spread low bits.
func SecondaryMix(normal []int32, distance uint64) uint64 {
	h := distance
	for _, c := range normal {
		h = h*secondaryWeight + uint64(uint32(c))
	}
	h ^= h >> 30
	h *= 0xbf58476d1ce4e5b9
	h ^= h >> 27
	h *= 0x94d049bb133111eb
	h ^= h >> 31
	return h
}

// SecondaryHash returns the redirect bucket entry for a token under modulus k.
func SecondaryHash(normal []int32, distance uint64, k uint32) uint32 {
	return uint32(SecondaryMix(normal, distance) % uint64(k))
}
