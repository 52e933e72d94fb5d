package hierarchy

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/pointstore/internal/chunk"
	"github.com/hupe1980/pointstore/internal/hash"
	"github.com/hupe1980/pointstore/model"
)

const (
	MagicNumber = 0x31584350 // "PCX1"
	Version     = 1

	// HeaderSize is the size of the fixed file header.
	HeaderSize = 192
	// NodeRecordSize is the size of one node table entry.
	NodeRecordSize = 96

	headerCRCOffset = HeaderSize - 4
)

var (
	ErrInvalidMagic   = errors.New("hierarchy: invalid magic number")
	ErrInvalidVersion = errors.New("hierarchy: unsupported version")
	ErrChecksum       = errors.New("hierarchy: checksum mismatch")
	ErrMalformed      = errors.New("hierarchy: malformed index")
)

// OpenError reports why an index could not be opened.
type OpenError struct {
	Offset int64
	Reason string
	cause  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("hierarchy: open failed at offset %d: %s", e.Offset, e.Reason)
}

func (e *OpenError) Unwrap() error { return e.cause }

func openErr(cause error, off int64, format string, args ...any) error {
	return &OpenError{Offset: off, Reason: fmt.Sprintf(format, args...), cause: cause}
}

// Node flags.
const (
	FlagLeaf     uint8 = 1 << 0
	FlagOverview uint8 = 1 << 1
)

// Header is the fixed file header.
type Header struct {
	Magic       uint32
	Version     uint16
	Format      model.PointFormat
	Compression chunk.Compression
	MaxDepth    uint8
	DatasetID   uuid.UUID
	CreatedAt   time.Time
	PointCount  uint64
	NodeCount   uint32
	LeafCount   uint32
	Bounds      model.BBox
	Scale       model.Scale

	NodeTableOffset uint64
	NodeTableLength uint64
	ChunkOffset     uint64
	ChunkLength     uint64
	NodeTableCRC    uint32
}

// Encode serializes the header. The trailing checksum covers all preceding bytes.
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:], h.Version)
	buf[6] = uint8(h.Format)
	buf[7] = uint8(h.Compression)
	buf[8] = h.MaxDepth
	// Padding [9:16]
	copy(buf[16:32], h.DatasetID[:])
	binary.LittleEndian.PutUint64(buf[32:], uint64(h.CreatedAt.UnixNano()))
	binary.LittleEndian.PutUint64(buf[40:], h.PointCount)
	binary.LittleEndian.PutUint32(buf[48:], h.NodeCount)
	binary.LittleEndian.PutUint32(buf[52:], h.LeafCount)
	putBBox(buf[56:], h.Bounds)
	putFloat(buf[104:], h.Scale.X)
	putFloat(buf[112:], h.Scale.Y)
	putFloat(buf[120:], h.Scale.Z)
	binary.LittleEndian.PutUint64(buf[128:], h.NodeTableOffset)
	binary.LittleEndian.PutUint64(buf[136:], h.NodeTableLength)
	binary.LittleEndian.PutUint64(buf[144:], h.ChunkOffset)
	binary.LittleEndian.PutUint64(buf[152:], h.ChunkLength)
	binary.LittleEndian.PutUint32(buf[160:], h.NodeTableCRC)
	// Reserved [164:188]
	binary.LittleEndian.PutUint32(buf[headerCRCOffset:], hash.CRC32C(buf[:headerCRCOffset]))
	return buf
}

// DecodeHeader parses and verifies a header.
func DecodeHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, openErr(ErrMalformed, int64(len(buf)), "header truncated: %d of %d bytes", len(buf), HeaderSize)
	}
	h := &Header{}
	h.Magic = binary.LittleEndian.Uint32(buf[0:])
	if h.Magic != MagicNumber {
		return nil, openErr(ErrInvalidMagic, 0, "magic %#x", h.Magic)
	}
	h.Version = binary.LittleEndian.Uint16(buf[4:])
	if h.Version != Version {
		return nil, openErr(ErrInvalidVersion, 4, "version %d", h.Version)
	}
	want := binary.LittleEndian.Uint32(buf[headerCRCOffset:])
	if got := hash.CRC32C(buf[:headerCRCOffset]); got != want {
		return nil, openErr(ErrChecksum, headerCRCOffset, "header crc %#x, want %#x", got, want)
	}
	h.Format = model.PointFormat(buf[6])
	h.Compression = chunk.Compression(buf[7])
	h.MaxDepth = buf[8]
	copy(h.DatasetID[:], buf[16:32])
	h.CreatedAt = time.Unix(0, int64(binary.LittleEndian.Uint64(buf[32:])))
	h.PointCount = binary.LittleEndian.Uint64(buf[40:])
	h.NodeCount = binary.LittleEndian.Uint32(buf[48:])
	h.LeafCount = binary.LittleEndian.Uint32(buf[52:])
	h.Bounds = getBBox(buf[56:])
	h.Scale = model.Scale{X: getFloat(buf[104:]), Y: getFloat(buf[112:]), Z: getFloat(buf[120:])}
	h.NodeTableOffset = binary.LittleEndian.Uint64(buf[128:])
	h.NodeTableLength = binary.LittleEndian.Uint64(buf[136:])
	h.ChunkOffset = binary.LittleEndian.Uint64(buf[144:])
	h.ChunkLength = binary.LittleEndian.Uint64(buf[152:])
	h.NodeTableCRC = binary.LittleEndian.Uint32(buf[160:])

	if !h.Format.Valid() {
		return nil, openErr(ErrMalformed, 6, "unknown point format %d", buf[6])
	}
	if !h.Compression.Valid() {
		return nil, openErr(ErrMalformed, 7, "unknown compression %d", buf[7])
	}
	if err := h.Scale.Validate(); err != nil {
		return nil, openErr(ErrMalformed, 104, "%v", err)
	}
	if err := h.Bounds.Validate(); err != nil {
		return nil, openErr(ErrMalformed, 56, "%v", err)
	}
	return h, nil
}

// Node is one decoded node table entry.
type Node struct {
	ID           uint32
	BBox         model.BBox
	Depth        uint8
	ChildCount   uint8
	ChildMask    uint8
	Flags        uint8
	FirstChild   uint32
	PointCount   uint64
	ChunkOffset  uint64
	ChunkLength  uint32
	ChunkCRC     uint32
	ChunkPoints  uint32
	IntensityMin uint16
	IntensityMax uint16
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.Flags&FlagLeaf != 0 }

// HasChunk reports whether the node carries encoded points.
func (n *Node) HasChunk() bool { return n.Flags&(FlagLeaf|FlagOverview) != 0 }

func (n *Node) encode(buf []byte) {
	putBBox(buf[0:], n.BBox)
	buf[48] = n.Depth
	buf[49] = n.ChildCount
	buf[50] = n.ChildMask
	buf[51] = n.Flags
	binary.LittleEndian.PutUint32(buf[52:], n.FirstChild)
	binary.LittleEndian.PutUint64(buf[56:], n.PointCount)
	binary.LittleEndian.PutUint64(buf[64:], n.ChunkOffset)
	binary.LittleEndian.PutUint32(buf[72:], n.ChunkLength)
	binary.LittleEndian.PutUint32(buf[76:], n.ChunkCRC)
	binary.LittleEndian.PutUint16(buf[80:], n.IntensityMin)
	binary.LittleEndian.PutUint16(buf[82:], n.IntensityMax)
	binary.LittleEndian.PutUint32(buf[84:], n.ChunkPoints)
	// Reserved [88:96]
}

func decodeNode(id uint32, buf []byte) Node {
	return Node{
		ID:           id,
		BBox:         getBBox(buf[0:]),
		Depth:        buf[48],
		ChildCount:   buf[49],
		ChildMask:    buf[50],
		Flags:        buf[51],
		FirstChild:   binary.LittleEndian.Uint32(buf[52:]),
		PointCount:   binary.LittleEndian.Uint64(buf[56:]),
		ChunkOffset:  binary.LittleEndian.Uint64(buf[64:]),
		ChunkLength:  binary.LittleEndian.Uint32(buf[72:]),
		ChunkCRC:     binary.LittleEndian.Uint32(buf[76:]),
		IntensityMin: binary.LittleEndian.Uint16(buf[80:]),
		IntensityMax: binary.LittleEndian.Uint16(buf[82:]),
		ChunkPoints:  binary.LittleEndian.Uint32(buf[84:]),
	}
}

func putFloat(buf []byte, v float64) {
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
}

func getFloat(buf []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(buf))
}

func putBBox(buf []byte, b model.BBox) {
	putFloat(buf[0:], b.MinX)
	putFloat(buf[8:], b.MinY)
	putFloat(buf[16:], b.MinZ)
	putFloat(buf[24:], b.MaxX)
	putFloat(buf[32:], b.MaxY)
	putFloat(buf[40:], b.MaxZ)
}

func getBBox(buf []byte) model.BBox {
	return model.BBox{
		MinX: getFloat(buf[0:]),
		MinY: getFloat(buf[8:]),
		MinZ: getFloat(buf[16:]),
		MaxX: getFloat(buf[24:]),
		MaxY: getFloat(buf[32:]),
		MaxZ: getFloat(buf[40:]),
	}
}
