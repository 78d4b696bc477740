// Package bitset provides the fixed-length bit vector used by the normal
// catalog to record which normals occur on each axis-aligned lattice plane.
package bitset

import (
	"math/bits"
	"strings"

	"github.com/pkg/errors"

	surferrors "github.com/tamirms/surfacehash/errors"
)

const wordBits = 64

// BitVector is a fixed-length bit array packed into 64-bit words.
// Bits beyond Len in the last word are always zero.
type BitVector struct {
	n     int
	words []uint64
}

// New returns a zeroed BitVector holding n bits.
func New(n int) *BitVector {
	if n < 0 {
		n = 0
	}
	return &BitVector{n: n, words: make([]uint64, wordsFor(n))}
}

// FromWords wraps words as a BitVector of n bits. The slice is used
// directly, not copied. Stray bits past n are cleared.
func FromWords(n int, words []uint64) (*BitVector, error) {
	if n < 0 || len(words) != wordsFor(n) {
		return nil, errors.Wrapf(surferrors.ErrLengthMismatch, "%d words for %d bits", len(words), n)
	}
	b := &BitVector{n: n, words: words}
	b.trim()
	return b, nil
}

func wordsFor(n int) int {
	return (n + wordBits - 1) / wordBits
}

// Len returns the logical length in bits.
func (b *BitVector) Len() int {
	return b.n
}

// Words exposes the backing words. Callers must not modify them.
func (b *BitVector) Words() []uint64 {
	return b.words
}

// Set sets bit i.
func (b *BitVector) Set(i int) error {
	if uint(i) >= uint(b.n) {
		return errors.Wrapf(surferrors.ErrIndexOutOfRange, "set %d on length %d", i, b.n)
	}
	b.words[i/wordBits] |= 1 << (uint(i) % wordBits)
	return nil
}

// Clear clears bit i.
func (b *BitVector) Clear(i int) error {
	if uint(i) >= uint(b.n) {
		return errors.Wrapf(surferrors.ErrIndexOutOfRange, "clear %d on length %d", i, b.n)
	}
	b.words[i/wordBits] &^= 1 << (uint(i) % wordBits)
	return nil
}

// Test reports whether bit i is set. Out-of-range indices report false.
func (b *BitVector) Test(i int) bool {
	if uint(i) >= uint(b.n) {
		return false
	}
	return b.words[i/wordBits]&(1<<(uint(i)%wordBits)) != 0
}

// And returns a new vector holding the bitwise AND of b and other.
func (b *BitVector) And(other *BitVector) (*BitVector, error) {
	if b.n != other.n {
		return nil, errors.Wrapf(surferrors.ErrLengthMismatch, "and %d with %d", b.n, other.n)
	}
	out := New(b.n)
	for i, w := range b.words {
		out.words[i] = w & other.words[i]
	}
	return out, nil
}

// AndInPlace replaces b with b AND other.
func (b *BitVector) AndInPlace(other *BitVector) error {
	if b.n != other.n {
		return errors.Wrapf(surferrors.ErrLengthMismatch, "and %d with %d", b.n, other.n)
	}
	for i := range b.words {
		b.words[i] &= other.words[i]
	}
	return nil
}

// First returns the index of the lowest set bit.
func (b *BitVector) First() (int, bool) {
	for i, w := range b.words {
		if w != 0 {
			return i*wordBits + bits.TrailingZeros64(w), true
		}
	}
	return -1, false
}

// Last returns the index of the highest set bit.
func (b *BitVector) Last() (int, bool) {
	for i := len(b.words) - 1; i >= 0; i-- {
		if w := b.words[i]; w != 0 {
			return i*wordBits + wordBits - 1 - bits.LeadingZeros64(w), true
		}
	}
	return -1, false
}

// Count returns the number of set bits.
func (b *BitVector) Count() int {
	c := 0
	for _, w := range b.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// MemorySize returns the bytes held by the backing words.
func (b *BitVector) MemorySize() int {
	return cap(b.words) * 8
}

// String renders the vector as '0'/'1' characters, bit 0 first.
func (b *BitVector) String() string {
	var sb strings.Builder
	sb.Grow(b.n)
	for i := 0; i < b.n; i++ {
		if b.Test(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func (b *BitVector) trim() {
	if tail := b.n % wordBits; tail != 0 {
		b.words[len(b.words)-1] &= (1 << uint(tail)) - 1
	}
}

// FirstCommon returns the lowest bit index set in every vector, scanning a
// word at a time without materializing the intersection. All vectors must
// share one length.
func FirstCommon(vs ...*BitVector) (int, bool) {
	if len(vs) == 0 {
		return -1, false
	}
	n := vs[0].n
	for _, v := range vs[1:] {
		if v.n != n {
			return -1, false
		}
	}
	for i := range vs[0].words {
		w := vs[0].words[i]
		for _, v := range vs[1:] {
			if w == 0 {
				break
			}
			w &= v.words[i]
		}
		if w != 0 {
			return i*wordBits + bits.TrailingZeros64(w), true
		}
	}
	return -1, false
}

// CountCommon returns the number of bits set in every vector, stopping
// early once limit is reached (limit <= 0 counts all).
func CountCommon(limit int, vs ...*BitVector) int {
	if len(vs) == 0 {
		return 0
	}
	c := 0
	for i := range vs[0].words {
		w := vs[0].words[i]
		for _, v := range vs[1:] {
			if v.n != vs[0].n {
				return 0
			}
			w &= v.words[i]
		}
		c += bits.OnesCount64(w)
		if limit > 0 && c >= limit {
			return c
		}
	}
	return c
}
