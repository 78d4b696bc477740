package surfacehash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"

	surferrors "github.com/tamirms/surfacehash/errors"
	"github.com/tamirms/surfacehash/internal/bitset"
	"github.com/tamirms/surfacehash/internal/catalog"
	"github.com/tamirms/surfacehash/internal/encoding"
	"github.com/tamirms/surfacehash/internal/fks"
	"github.com/tamirms/surfacehash/internal/lattice"
	"github.com/tamirms/surfacehash/internal/surface"
)

const (
	// minFileSize is the smallest well-formed file: header, empty user
	// metadata, one extent and the footer.
	minFileSize = headerSize + 4 + 4 + footerSize
)

// Index is a read-only persisted spatial hash for querying.
//
// Thread Safety:
// - Query, QueryPayload, and other read methods are safe for concurrent use
// - Close is NOT safe to call concurrently with queries
// - Close must only be called after all queries have completed
// - After Close returns, no methods may be called on the Index
type Index struct {
	// Memory map (no file handle needed after mmap)
	mmap mmap.MMap
	data []byte

	// Parsed header
	header *header
	layout fileLayout

	// Variable-length data from file
	userMetadata []byte

	// Decoded catalog and tables; payloads stay in data
	table   *fks.Table
	payload []byte

	closed atomic.Bool // Atomic for lock-free close check
}

// Open opens an index file for querying.
// It opens the file, memory-maps it, and closes the file descriptor.
func Open(path string) (*Index, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()
	return OpenFile(file)
}

// OpenFile opens an index by memory-mapping the given file.
// The caller is responsible for closing f. Per POSIX mmap(2), f may be
// closed immediately after OpenFile returns.
func OpenFile(f *os.File) (*Index, error) {
	stat, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat index file: %w", err)
	}
	fileSize := stat.Size()

	if fileSize < int64(minFileSize) {
		return nil, surferrors.ErrTruncatedFile
	}

	// Open decodes every section before the payload region in one pass.
	fadviseWillNeed(int(f.Fd()), 0, fileSize)

	mm, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap index file: %w", err)
	}

	idx := &Index{
		mmap: mm,
		data: []byte(mm),
	}
	if err := idx.initFromData(); err != nil {
		return nil, errors.Join(err, idx.Close())
	}
	return idx, nil
}

// OpenBytes creates an index from an in-memory byte slice.
// No file is opened or memory-mapped; Close is a no-op.
// The caller must ensure data is not modified while the Index is in use.
func OpenBytes(data []byte) (*Index, error) {
	if len(data) < minFileSize {
		return nil, surferrors.ErrTruncatedFile
	}
	idx := &Index{
		data: data,
	}
	if err := idx.initFromData(); err != nil {
		return nil, err
	}
	return idx, nil
}

// initFromData parses the header and variable sections and rebuilds the
// catalog and tables. Footer decoding is deferred to Verify().
func (idx *Index) initFromData() error {
	fileSize := uint64(len(idx.data))

	hdr, err := decodeHeader(idx.data[:headerSize])
	if err != nil {
		return err
	}
	idx.header = hdr

	// Read userMetadata
	offset := uint64(headerSize)
	userMetadataLen := uint64(binary.LittleEndian.Uint32(idx.data[offset:]))
	offset += 4
	if offset+userMetadataLen+4*uint64(hdr.Dims)+footerSize > fileSize {
		return surferrors.ErrTruncatedFile
	}
	idx.userMetadata = idx.data[offset : offset+userMetadataLen]
	offset += userMetadataLen

	extents := make([]uint32, hdr.Dims)
	encoding.ReadUint32s(idx.data[offset:], extents)

	idx.layout = computeLayout(hdr, extents, int(userMetadataLen))
	switch {
	case idx.layout.size > fileSize:
		return surferrors.ErrTruncatedFile
	case idx.layout.size < fileSize:
		return surferrors.ErrCorruptedIndex
	}

	box := lattice.Box{Extents: extents, Offset: hdr.Offset}
	layout, err := surface.NewLayout(box)
	if err != nil {
		return errors.Join(surferrors.ErrCorruptedIndex, err)
	}
	if layout.TableSize() != hdr.TableSize {
		return surferrors.ErrCorruptedIndex
	}

	cat, err := idx.decodeCatalog(extents)
	if err != nil {
		return err
	}
	slots, buckets, err := idx.decodeTables()
	if err != nil {
		return err
	}
	idx.table, err = fks.NewTable(layout, cat, slots, buckets)
	if err != nil {
		return err
	}
	idx.payload = idx.data[idx.layout.payload:idx.layout.footer]
	return nil
}

func (idx *Index) decodeCatalog(extents []uint32) (*catalog.Catalog, error) {
	hdr := idx.header
	d := int(hdr.Dims)

	normals := make([][]int32, hdr.NumNormals)
	flat := make([]int32, int(hdr.NumNormals)*d)
	encoding.ReadInt32s(idx.data[idx.layout.normals:], flat)
	for i := range normals {
		normals[i] = flat[i*d : (i+1)*d : (i+1)*d]
	}

	words := int(hdr.planeWords())
	planes := make([][]*bitset.BitVector, d)
	off := idx.layout.planes
	for a, e := range extents {
		planes[a] = make([]*bitset.BitVector, uint64(e)+1)
		backing := make([]uint64, len(planes[a])*words)
		off += uint64(encoding.ReadWords(idx.data[off:], backing))
		for v := range planes[a] {
			bv, err := bitset.FromWords(int(hdr.NumNormals), backing[v*words:(v+1)*words:(v+1)*words])
			if err != nil {
				return nil, errors.Join(surferrors.ErrCorruptedIndex, err)
			}
			planes[a][v] = bv
		}
	}
	return catalog.FromParts(normals, planes)
}

func (idx *Index) decodeTables() ([]fks.Slot, []fks.Bucket, error) {
	hdr := idx.header
	slots := make([]fks.Slot, hdr.TableSize)
	off := idx.layout.slots
	for i := range slots {
		slots[i] = encoding.ReadSlot(idx.data[off:])
		off += encoding.SlotSize
	}

	buckets := make([]fks.Bucket, hdr.NumBuckets)
	entries := make([]uint32, hdr.RedirectSlots)
	encoding.ReadUint32s(idx.data[idx.layout.entries:], entries)
	off = idx.layout.moduli
	var used uint64
	for i := range buckets {
		k := uint64(binary.LittleEndian.Uint16(idx.data[off:]))
		off += bucketModulusSize
		if k == 0 || used+k > uint64(len(entries)) {
			return nil, nil, surferrors.ErrCorruptedIndex
		}
		buckets[i] = fks.Bucket{Modulus: uint32(k), Slots: entries[used : used+k : used+k]}
		used += k
	}
	if used != uint64(len(entries)) {
		return nil, nil, surferrors.ErrCorruptedIndex
	}
	return slots, buckets, nil
}

// Close closes the index and releases resources.
func (idx *Index) Close() error {
	if idx.closed.Swap(true) {
		return nil // Already closed
	}

	if idx.mmap != nil {
		return idx.mmap.Unmap()
	}
	return nil
}

// Query returns the primary slot holding the sample stored at pos.
// Returns surferrors.ErrNotFound when no sample is stored there.
func (idx *Index) Query(pos []uint32) (uint64, error) {
	if idx.closed.Load() {
		return 0, surferrors.ErrIndexClosed
	}
	slot, ok := idx.table.Locate(pos)
	if !ok {
		return 0, surferrors.ErrNotFound
	}
	return uint64(slot), nil
}

// QueryPayload returns the payload stored for pos as a uint64.
// Payloads are stored in little-endian format and can be 1-8 bytes.
// Returns surferrors.ErrNoPayload if the index has no payload data.
func (idx *Index) QueryPayload(pos []uint32) (uint64, error) {
	if idx.closed.Load() {
		return 0, surferrors.ErrIndexClosed
	}
	if !idx.header.hasPayload() {
		return 0, surferrors.ErrNoPayload
	}
	slot, ok := idx.table.Locate(pos)
	if !ok {
		return 0, surferrors.ErrNotFound
	}
	size := idx.header.payloadSizeInt()
	return encoding.ReadPayload(idx.payload[slot*size:], size), nil
}

// Contains reports whether a sample is stored at pos.
func (idx *Index) Contains(pos []uint32) (bool, error) {
	if idx.closed.Load() {
		return false, surferrors.ErrIndexClosed
	}
	_, ok := idx.table.Locate(pos)
	return ok, nil
}

// NumSamples returns the number of stored samples.
func (idx *Index) NumSamples() uint64 {
	return idx.header.NumSamples
}

// Dims returns the dimension count.
func (idx *Index) Dims() int {
	return int(idx.header.Dims)
}

// HasPayload returns whether the index stores payloads.
func (idx *Index) HasPayload() bool {
	return idx.header.hasPayload()
}

// PayloadSize returns the payload size per slot.
func (idx *Index) PayloadSize() int {
	return idx.header.payloadSizeInt()
}

// SampleDigest returns the digest of the sample stream the index was built
// from.
func (idx *Index) SampleDigest() uint64 {
	return idx.header.SampleDigest
}

// UserMetadata returns the variable-length user-defined metadata.
// The returned slice is backed by the index data.
func (idx *Index) UserMetadata() []byte {
	return idx.userMetadata
}

// GetStats returns statistics for an index file.
func GetStats(path string) (*Stats, error) {
	idx, err := Open(path)
	if err != nil {
		return nil, err
	}

	return idx.Stats(), idx.Close()
}

// Stats returns statistics for the index.
func (idx *Index) Stats() *Stats {
	st := newStats(idx.table, idx.header.NumSamples, int(idx.header.Attempts), idx.header.SampleDigest)
	st.PayloadSize = idx.header.payloadSizeInt()
	st.IndexSize = int64(len(idx.data))
	if idx.header.NumSamples > 0 {
		st.BitsPerKey = float64(st.IndexSize*8) / float64(idx.header.NumSamples)
	}
	return st
}

// Verify checks the integrity of the entire index against the footer
// checksums: one over the header and every structure section, one over the
// payload region.
//
// The footer (last 32 bytes) is decoded on each Verify call rather than at
// Open time.
func (idx *Index) Verify() error {
	if idx.closed.Load() {
		return surferrors.ErrIndexClosed
	}

	ft, err := decodeFooter(idx.data[idx.layout.footer:])
	if err != nil {
		return err
	}
	if xxhash.Sum64(idx.data[:idx.layout.payload]) != ft.StructureHash {
		return surferrors.ErrChecksumFailed
	}
	if xxhash.Sum64(idx.payload) != ft.PayloadRegionHash {
		return surferrors.ErrChecksumFailed
	}
	return nil
}
