package surfacehash

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"

	surferrors "github.com/tamirms/surfacehash/errors"
	"github.com/tamirms/surfacehash/internal/encoding"
	"github.com/tamirms/surfacehash/internal/fks"
)

// payloadChunkSlots is how many slots of payload are written before the
// chunk is folded into the streaming payload hash.
const payloadChunkSlots = 4096

// allocateFile sizes a freshly created index file. Replaced in tests.
var allocateFile = fallocateFile

// WriteFile persists the map as an index file at path. payload converts each
// stored value into the low payloadSize bytes (0 to 8) kept per slot; it is
// not called when payloadSize is 0. A value that does not fit returns
// ErrPayloadOverflow. No file is left behind on any error.
func (m *Map[T]) WriteFile(path string, payloadSize int, payload func(T) uint64, opts ...WriteOption) error {
	if payloadSize < 0 || payloadSize > maxPayloadSize {
		return surferrors.ErrPayloadTooLarge
	}
	if payloadSize > 0 && payload == nil {
		return surferrors.Invalidf("payload size %d without a payload function", payloadSize)
	}
	cfg := &writeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	if uint64(len(cfg.userMetadata)) > math.MaxUint32 {
		return surferrors.Invalidf("user metadata of %d bytes", len(cfg.userMetadata))
	}

	st := m.table.Stats()
	box := m.table.Layout().Box()
	h := header{
		Magic:         magic,
		Version:       version,
		Dims:          uint8(box.Dims()),
		PayloadSize:   uint8(payloadSize),
		NumSamples:    uint64(m.n),
		TableSize:     st.TableSize,
		NumNormals:    uint32(m.table.Catalog().Len()),
		NumBuckets:    uint32(st.Buckets),
		RedirectSlots: uint32(st.RedirectSlots),
		Offset:        box.Offset,
		SampleDigest:  m.digest,
		Attempts:      uint16(min(m.attempts, math.MaxUint16)),
	}
	if h.NumNormals > encoding.MaxNormals {
		return surferrors.Invalidf("%d normals exceed the index limit %d", h.NumNormals, encoding.MaxNormals)
	}

	iw, err := newIndexWriter(path, h, box.Extents, cfg.userMetadata)
	if err != nil {
		return err
	}
	if err := iw.writeStructure(m.table); err != nil {
		return iw.abort(err)
	}

	slots := m.table.Slots()
	err = iw.writePayloads(func(slot int) (uint64, error) {
		if slots[slot].Token.Empty() {
			return 0, nil
		}
		v := payload(m.contents[slot])
		if !encoding.FitsPayload(v, payloadSize) {
			return 0, fmt.Errorf("slot %d value %#x: %w", slot, v, surferrors.ErrPayloadOverflow)
		}
		return v, nil
	})
	if err != nil {
		return iw.abort(err)
	}
	if err := iw.finalize(); err != nil {
		return errors.Join(err, os.Remove(path))
	}
	return nil
}

// indexWriter handles writing index data to disk using mmap-based zero-copy writes.
// The file size is known upfront, so the whole file is mapped once.
type indexWriter struct {
	path string
	file *os.File
	mmap mmap.MMap // Memory-mapped region
	data []byte    // View into mmap for direct writes

	header       header
	layout       fileLayout
	extents      []uint32
	userMetadata []byte

	// Streaming hasher for the payload region, fed chunk by chunk while the
	// data is hot in cache.
	payloadHasher *xxhash.Digest
}

// newIndexWriter creates the file, pre-allocates it and maps it for writing.
func newIndexWriter(path string, h header, extents []uint32, userMetadata []byte) (*indexWriter, error) {
	layout := computeLayout(&h, extents, len(userMetadata))
	if layout.size > math.MaxInt {
		return nil, surferrors.Invalidf("index of %d bytes cannot be mapped", layout.size)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create index file: %w", err)
	}

	// Pre-allocate disk blocks to prevent SIGBUS on disk full
	if err := allocateFile(file, int64(layout.size)); err != nil {
		primaryErr := fmt.Errorf("failed to allocate disk space: %w", err)
		return nil, errors.Join(primaryErr, file.Close(), os.Remove(path))
	}

	// Memory map the file for zero-copy writes
	mm, err := mmap.MapRegion(file, int(layout.size), mmap.RDWR, 0, 0)
	if err != nil {
		primaryErr := fmt.Errorf("failed to mmap file: %w", err)
		return nil, errors.Join(primaryErr, file.Close(), os.Remove(path))
	}

	iw := &indexWriter{
		path:          path,
		file:          file,
		mmap:          mm,
		data:          []byte(mm),
		header:        h,
		layout:        layout,
		extents:       extents,
		userMetadata:  userMetadata,
		payloadHasher: xxhash.New(),
	}

	// Prefault the slot and payload regions, the bulk of the file.
	// On Linux 5.14+, uses MADV_POPULATE_WRITE. No-op on other platforms.
	prefaultRegion(iw.data[layout.slots:layout.footer])

	return iw, nil
}

// writeStructure writes the header and every section up to the payload
// region.
func (iw *indexWriter) writeStructure(t *fks.Table) error {
	l := &iw.layout
	iw.header.encodeTo(iw.data[0:headerSize])

	// UserMetadata: [length 4B][data]
	binary.LittleEndian.PutUint32(iw.data[l.userMetadata:], uint32(len(iw.userMetadata)))
	copy(iw.data[l.userMetadata+4:], iw.userMetadata)

	encoding.PutUint32s(iw.data[l.extents:], iw.extents)

	off := l.normals
	for _, n := range t.Catalog().Normals() {
		off += uint64(encoding.PutInt32s(iw.data[off:], n))
	}

	off = l.planes
	for a := range iw.extents {
		for _, p := range t.Catalog().Planes(a) {
			off += uint64(encoding.PutWords(iw.data[off:], p.Words()))
		}
	}

	off = l.slots
	for _, s := range t.Slots() {
		encoding.PutSlot(iw.data[off:], s)
		off += encoding.SlotSize
	}

	off = l.moduli
	entries := l.entries
	for _, b := range t.Buckets() {
		binary.LittleEndian.PutUint16(iw.data[off:], uint16(b.Modulus))
		off += bucketModulusSize
		entries += uint64(encoding.PutUint32s(iw.data[entries:], b.Slots))
	}
	if entries != l.payload {
		return fmt.Errorf("bucket entries end at %d, payload starts at %d: %w", entries, l.payload, surferrors.ErrCorruptedIndex)
	}
	return nil
}

// writePayloads fills the payload region in slot order, hashing each chunk
// after it is written.
func (iw *indexWriter) writePayloads(valueAt func(slot int) (uint64, error)) error {
	size := iw.header.payloadSizeInt()
	if size == 0 {
		return nil
	}
	region := iw.data[iw.layout.payload:iw.layout.footer]
	total := int(iw.header.TableSize)
	for start := 0; start < total; start += payloadChunkSlots {
		end := min(total, start+payloadChunkSlots)
		for slot := start; slot < end; slot++ {
			v, err := valueAt(slot)
			if err != nil {
				return err
			}
			encoding.WritePayload(region[slot*size:], size, v)
		}
		if _, err := iw.payloadHasher.Write(region[start*size : end*size]); err != nil {
			panic("hash.Hash.Write returned unexpected error: " + err.Error())
		}
	}
	return nil
}

// finalize writes the footer and flushes the file.
// On error, delegates to close() for idempotent cleanup.
// On success, nils mmap/file so that close() is a safe no-op.
func (iw *indexWriter) finalize() error {
	ftr := footer{
		PayloadRegionHash: iw.payloadHasher.Sum64(),
		StructureHash:     xxhash.Sum64(iw.data[:iw.layout.payload]),
	}
	ftr.encodeTo(iw.data[iw.layout.footer:])

	// Flush dirty pages to file (ensures writes visible before unmap)
	if err := iw.mmap.Flush(); err != nil {
		primaryErr := fmt.Errorf("mmap flush failed: %w", err)
		return errors.Join(primaryErr, iw.close())
	}

	// Nil mmap regardless of outcome to prevent close() from retrying.
	unmapErr := iw.mmap.Unmap()
	iw.mmap = nil
	if unmapErr != nil {
		primaryErr := fmt.Errorf("mmap unmap failed: %w", unmapErr)
		return errors.Join(primaryErr, iw.close())
	}

	closeErr := iw.file.Close()
	iw.file = nil
	return closeErr
}

// abort releases the writer and removes the partial file.
func (iw *indexWriter) abort(err error) error {
	return errors.Join(err, iw.close(), os.Remove(iw.path))
}

// close closes the writer without finalizing (for error cleanup).
// Idempotent: safe to call multiple times.
func (iw *indexWriter) close() error {
	var unmapErr error
	if iw.mmap != nil {
		unmapErr = iw.mmap.Unmap()
		iw.mmap = nil
	}
	var closeErr error
	if iw.file != nil {
		closeErr = iw.file.Close()
		iw.file = nil
	}
	return errors.Join(unmapErr, closeErr)
}
