package surfacehash

import (
	"encoding/binary"

	surferrors "github.com/tamirms/surfacehash/errors"
	"github.com/tamirms/surfacehash/internal/encoding"
	"github.com/tamirms/surfacehash/internal/lattice"
	"github.com/tamirms/surfacehash/internal/surface"
)

const (
	// magic number for surface hash index files
	// "SFSH" in little-endian
	magic = uint32(0x48534653)

	// version is the current format version
	version = uint16(0x0001)

	// headerSize is the exact size of the serialized header (64 bytes)
	headerSize = 64

	// footerSize is the exact size of the serialized footer (32 bytes)
	footerSize = 32

	// bucketModulusSize is the encoded width of one redirect bucket modulus.
	bucketModulusSize = 2
)

// header is the 64-byte file header.
//
// Layout:
//
//	Offset  Size  Field          Type
//	0       4     Magic          0x48534653 ("SFSH")
//	4       2     Version        0x0001
//	6       1     Dims           uint8
//	7       1     PayloadSize    uint8 (bytes per primary slot, 0 = presence only)
//	8       8     NumSamples     uint64_le
//	16      8     TableSize      uint64_le (primary slots)
//	24      4     NumNormals     uint32_le
//	28      4     NumBuckets     uint32_le
//	32      4     RedirectSlots  uint32_le (sum of bucket moduli)
//	36      4     Offset         uint32_le (box offset)
//	40      8     SampleDigest   uint64_le (xxh3 of the sample stream)
//	48      2     Attempts       uint16_le
//	50      14    Reserved       [14]byte (zero)
//
// Box extents and user metadata are stored in variable-length sections
// after the header.
type header struct {
	Magic         uint32
	Version       uint16
	Dims          uint8
	PayloadSize   uint8
	NumSamples    uint64
	TableSize     uint64
	NumNormals    uint32
	NumBuckets    uint32
	RedirectSlots uint32
	Offset        uint32
	SampleDigest  uint64
	Attempts      uint16
	Reserved      [14]byte
}

// encodeTo serializes the header to an existing buffer.
func (h *header) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:6], h.Version)
	buf[6] = h.Dims
	buf[7] = h.PayloadSize
	binary.LittleEndian.PutUint64(buf[8:16], h.NumSamples)
	binary.LittleEndian.PutUint64(buf[16:24], h.TableSize)
	binary.LittleEndian.PutUint32(buf[24:28], h.NumNormals)
	binary.LittleEndian.PutUint32(buf[28:32], h.NumBuckets)
	binary.LittleEndian.PutUint32(buf[32:36], h.RedirectSlots)
	binary.LittleEndian.PutUint32(buf[36:40], h.Offset)
	binary.LittleEndian.PutUint64(buf[40:48], h.SampleDigest)
	binary.LittleEndian.PutUint16(buf[48:50], h.Attempts)
	copy(buf[50:64], h.Reserved[:])
}

// decodeHeader parses a 64-byte header.
func decodeHeader(buf []byte) (*header, error) {
	if len(buf) < headerSize {
		return nil, surferrors.ErrTruncatedFile
	}

	h := &header{
		Magic:         binary.LittleEndian.Uint32(buf[0:4]),
		Version:       binary.LittleEndian.Uint16(buf[4:6]),
		Dims:          buf[6],
		PayloadSize:   buf[7],
		NumSamples:    binary.LittleEndian.Uint64(buf[8:16]),
		TableSize:     binary.LittleEndian.Uint64(buf[16:24]),
		NumNormals:    binary.LittleEndian.Uint32(buf[24:28]),
		NumBuckets:    binary.LittleEndian.Uint32(buf[28:32]),
		RedirectSlots: binary.LittleEndian.Uint32(buf[32:36]),
		Offset:        binary.LittleEndian.Uint32(buf[36:40]),
		SampleDigest:  binary.LittleEndian.Uint64(buf[40:48]),
		Attempts:      binary.LittleEndian.Uint16(buf[48:50]),
	}
	copy(h.Reserved[:], buf[50:64])

	if h.Magic != magic {
		return nil, surferrors.ErrInvalidMagic
	}
	if h.Version != version {
		return nil, surferrors.ErrInvalidVersion
	}
	if h.Dims == 0 || int(h.Dims) > lattice.MaxDims {
		return nil, surferrors.ErrCorruptedIndex
	}
	if h.PayloadSize > maxPayloadSize {
		return nil, surferrors.ErrCorruptedIndex
	}
	if h.NumNormals == 0 || h.NumNormals > encoding.MaxNormals {
		return nil, surferrors.ErrCorruptedIndex
	}
	if h.TableSize > surface.MaxTableSize || h.NumSamples == 0 || h.NumSamples > h.TableSize {
		return nil, surferrors.ErrCorruptedIndex
	}

	return h, nil
}

// payloadSizeInt returns PayloadSize as int for arithmetic convenience.
func (h *header) payloadSizeInt() int {
	return int(h.PayloadSize)
}

// hasPayload returns true if the index stores payloads.
func (h *header) hasPayload() bool {
	return h.PayloadSize > 0
}

// planeWords returns the words per catalog plane vector.
func (h *header) planeWords() uint64 {
	return (uint64(h.NumNormals) + 63) / 64
}

// footer is the 32-byte file footer.
//
// Layout:
//
//	Offset  Size  Field               Type
//	0       8     PayloadRegionHash   uint64_le (xxHash64 of payload region)
//	8       8     StructureHash       uint64_le (xxHash64 of header through redirect entries)
//	16      16    Reserved            [16]byte (zero)
type footer struct {
	PayloadRegionHash uint64
	StructureHash     uint64
	Reserved          [16]byte
}

// encodeTo serializes the footer into an existing buffer.
func (f *footer) encodeTo(buf []byte) {
	binary.LittleEndian.PutUint64(buf[0:8], f.PayloadRegionHash)
	binary.LittleEndian.PutUint64(buf[8:16], f.StructureHash)
	copy(buf[16:32], f.Reserved[:])
}

// decodeFooter parses a 32-byte footer.
func decodeFooter(buf []byte) (*footer, error) {
	if len(buf) < footerSize {
		return nil, surferrors.ErrTruncatedFile
	}

	f := &footer{
		PayloadRegionHash: binary.LittleEndian.Uint64(buf[0:8]),
		StructureHash:     binary.LittleEndian.Uint64(buf[8:16]),
	}
	copy(f.Reserved[:], buf[16:32])

	return f, nil
}

// fileLayout holds the byte offsets of every section. It is derived from
// the header, the extents and the user metadata length alone, so writer and
// reader compute identical offsets.
//
//	[Header 64B][UserMetaLen 4B][UserMeta][Extents d×4B][Normals N×d×4B]
//	[Planes Σ(ext+1)×W×8B][Slots S×16B][Moduli B×2B][Entries R×4B]
//	[Payload S×P][Footer 32B]
type fileLayout struct {
	userMetadata uint64
	extents      uint64
	normals      uint64
	planes       uint64
	slots        uint64
	moduli       uint64
	entries      uint64
	payload      uint64 // end of the structure region
	footer       uint64
	size         uint64
}

func computeLayout(h *header, extents []uint32, userMetadataLen int) fileLayout {
	var l fileLayout
	d := uint64(h.Dims)
	l.userMetadata = headerSize
	l.extents = l.userMetadata + 4 + uint64(userMetadataLen)
	l.normals = l.extents + 4*d
	l.planes = l.normals + uint64(h.NumNormals)*d*4
	var planeCount uint64
	for _, e := range extents {
		planeCount += uint64(e) + 1
	}
	l.slots = l.planes + planeCount*h.planeWords()*8
	l.moduli = l.slots + h.TableSize*encoding.SlotSize
	l.entries = l.moduli + uint64(h.NumBuckets)*bucketModulusSize
	l.payload = l.entries + uint64(h.RedirectSlots)*4
	l.footer = l.payload + h.TableSize*uint64(h.PayloadSize)
	l.size = l.footer + footerSize
	return l
}
