package surfacehash

import (
	"encoding/binary"

	"github.com/zeebo/xxh3"
)

// sampleDigest fingerprints the (location, normal) stream in input order.
// It is recorded in Stats and in the index header so two indexes can be
// checked for having been built from the same dataset.
func sampleDigest[T any](samples []Sample[T]) uint64 {
	h := xxh3.New()
	var buf [8]byte
	for _, s := range samples {
		for _, v := range s.Location {
			binary.LittleEndian.PutUint32(buf[:4], v)
			_, _ = h.Write(buf[:4])
		}
		for _, c := range s.Normal {
			binary.LittleEndian.PutUint32(buf[:4], uint32(c))
			_, _ = h.Write(buf[:4])
		}
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(len(samples)))
	_, _ = h.Write(buf[:])
	return h.Sum64()
}
