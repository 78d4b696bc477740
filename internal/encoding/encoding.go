// Package encoding provides the fixed-width little-endian record codecs used
// by the index file: primary slots, payloads, normal components and bit
// vector words.
package encoding

import (
	"encoding/binary"

	"github.com/tamirms/surfacehash/internal/fks"
)

// SlotSize is the encoded size of one primary slot.
//
// Layout:
//
//	Offset  Size  Field
//	0       4     Normal id + 1, bit 31 set for redirected occupants
//	4       8     Quantized distance
//	12      4     Redirect bucket + 1 (0 = none)
const SlotSize = 16

const redirectedBit = 1 << 31

// MaxNormals is the largest normal count a slot can reference.
const MaxNormals = redirectedBit - 2

// PutSlot encodes s into buf[:SlotSize].
func PutSlot(buf []byte, s fks.Slot) {
	n := s.Token.Normal
	if s.Redirected {
		n |= redirectedBit
	}
	binary.LittleEndian.PutUint32(buf[0:4], n)
	binary.LittleEndian.PutUint64(buf[4:12], s.Token.Distance)
	binary.LittleEndian.PutUint32(buf[12:16], s.Redirect)
}

// ReadSlot decodes a slot written by PutSlot.
func ReadSlot(buf []byte) fks.Slot {
	n := binary.LittleEndian.Uint32(buf[0:4])
	return fks.Slot{
		Token: fks.Token{
			Normal:   n &^ redirectedBit,
			Distance: binary.LittleEndian.Uint64(buf[4:12]),
		},
		Redirect:   binary.LittleEndian.Uint32(buf[12:16]),
		Redirected: n&redirectedBit != 0,
	}
}

// WritePayload stores the low payloadSize bytes of v little-endian.
func WritePayload(buf []byte, payloadSize int, v uint64) {
	for i := range payloadSize {
		buf[i] = byte(v >> (i * 8))
	}
}

// ReadPayload reads a little-endian payload of payloadSize bytes from buf.
// This is the read counterpart to WritePayload.
func ReadPayload(buf []byte, payloadSize int) uint64 {
	var v uint64
	for i := range payloadSize {
		v |= uint64(buf[i]) << (i * 8)
	}
	return v
}

// FitsPayload reports whether v survives a round trip through payloadSize
// bytes.
func FitsPayload(v uint64, payloadSize int) bool {
	if payloadSize >= 8 {
		return true
	}
	return v>>(payloadSize*8) == 0
}

// PutInt32s appends vs to buf and returns the number of bytes written.
func PutInt32s(buf []byte, vs []int32) int {
	for i, v := range vs {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(v))
	}
	return len(vs) * 4
}

// ReadInt32s fills dst from buf and returns the number of bytes consumed.
func ReadInt32s(buf []byte, dst []int32) int {
	for i := range dst {
		dst[i] = int32(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return len(dst) * 4
}

// PutUint32s writes vs to buf and returns the number of bytes written.
func PutUint32s(buf []byte, vs []uint32) int {
	for i, v := range vs {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return len(vs) * 4
}

// ReadUint32s fills dst from buf and returns the number of bytes consumed.
func ReadUint32s(buf []byte, dst []uint32) int {
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	return len(dst) * 4
}

// PutWords writes bit vector words to buf and returns the number of bytes
// written.
func PutWords(buf []byte, words []uint64) int {
	for i, w := range words {
		binary.LittleEndian.PutUint64(buf[i*8:], w)
	}
	return len(words) * 8
}

// ReadWords fills dst from buf and returns the number of bytes consumed.
func ReadWords(buf []byte, dst []uint64) int {
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint64(buf[i*8:])
	}
	return len(dst) * 8
}
