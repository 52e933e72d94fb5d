package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/hupe1980/pointstore/internal/hash"
)

// ErrNoChunk is returned by ReadChunk for nodes without encoded points.
var ErrNoChunk = errors.New("hierarchy: node has no chunk")

// Index is an opened, immutable hierarchy. It is safe for concurrent use.
type Index struct {
	r      io.ReaderAt
	size   int64
	header Header
	nodes  []Node
	levels []int
}

// Open reads and validates the header and node table. Chunks are not read.
func Open(r io.ReaderAt, size int64) (*Index, error) {
	if size < HeaderSize {
		return nil, openErr(ErrMalformed, size, "file too small: %d bytes", size)
	}
	hb := make([]byte, HeaderSize)
	if err := readAt(r, hb, 0); err != nil {
		return nil, openErr(ErrMalformed, 0, "read header: %v", err)
	}
	h, err := DecodeHeader(hb)
	if err != nil {
		return nil, err
	}

	if h.NodeCount == 0 {
		return nil, openErr(ErrMalformed, 48, "node count is zero")
	}
	if h.NodeTableOffset != HeaderSize {
		return nil, openErr(ErrMalformed, 128, "node table offset %d, want %d", h.NodeTableOffset, HeaderSize)
	}
	if h.NodeTableLength != uint64(h.NodeCount)*NodeRecordSize {
		return nil, openErr(ErrMalformed, 136, "node table length %d does not match %d nodes", h.NodeTableLength, h.NodeCount)
	}
	if h.ChunkOffset != h.NodeTableOffset+h.NodeTableLength {
		return nil, openErr(ErrMalformed, 144, "chunk region offset %d, want %d", h.ChunkOffset, h.NodeTableOffset+h.NodeTableLength)
	}
	if h.ChunkOffset > uint64(size) || h.ChunkLength != uint64(size)-h.ChunkOffset {
		return nil, openErr(ErrMalformed, 152, "chunk region [%d,+%d) does not end at file size %d", h.ChunkOffset, h.ChunkLength, size)
	}

	table := make([]byte, h.NodeTableLength)
	if err := readAt(r, table, int64(h.NodeTableOffset)); err != nil {
		return nil, openErr(ErrMalformed, int64(h.NodeTableOffset), "read node table: %v", err)
	}
	if got := hash.CRC32C(table); got != h.NodeTableCRC {
		return nil, openErr(ErrChecksum, int64(h.NodeTableOffset), "node table crc %#x, want %#x", got, h.NodeTableCRC)
	}

	idx := &Index{r: r, size: size, header: *h, nodes: make([]Node, h.NodeCount)}
	for id := range idx.nodes {
		idx.nodes[id] = decodeNode(uint32(id), table[id*NodeRecordSize:])
	}
	if err := idx.validate(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) validate() error {
	h := &idx.header
	n := uint64(len(idx.nodes))
	end := h.ChunkOffset + h.ChunkLength
	leaves := uint32(0)

	root := &idx.nodes[0]
	if root.BBox != h.Bounds {
		return idx.nodeErr(0, "root box %v differs from header bounds %v", root.BBox, h.Bounds)
	}
	if root.PointCount != h.PointCount {
		return idx.nodeErr(0, "root point count %d differs from header %d", root.PointCount, h.PointCount)
	}

	for i := range idx.nodes {
		nd := &idx.nodes[i]
		if err := nd.BBox.Validate(); err != nil {
			return idx.nodeErr(nd.ID, "%v", err)
		}
		if nd.PointCount == 0 {
			return idx.nodeErr(nd.ID, "node is empty")
		}
		if bits.OnesCount8(nd.ChildMask) != int(nd.ChildCount) {
			return idx.nodeErr(nd.ID, "child mask %08b does not match %d children", nd.ChildMask, nd.ChildCount)
		}

		if nd.ChildCount == 0 {
			if !nd.IsLeaf() {
				return idx.nodeErr(nd.ID, "childless node is not flagged as leaf")
			}
			leaves++
		} else {
			if nd.IsLeaf() {
				return idx.nodeErr(nd.ID, "leaf has %d children", nd.ChildCount)
			}
			first := uint64(nd.FirstChild)
			if first <= uint64(nd.ID) || first+uint64(nd.ChildCount) > n {
				return idx.nodeErr(nd.ID, "child range [%d,+%d) outside table of %d nodes", first, nd.ChildCount, n)
			}
			var sum uint64
			for c := first; c < first+uint64(nd.ChildCount); c++ {
				child := &idx.nodes[c]
				if child.Depth != nd.Depth+1 {
					return idx.nodeErr(nd.ID, "child %d has depth %d, want %d", c, child.Depth, nd.Depth+1)
				}
				if !nd.BBox.ContainsBox(child.BBox) {
					return idx.nodeErr(nd.ID, "child %d box %v escapes parent %v", c, child.BBox, nd.BBox)
				}
				sum += child.PointCount
			}
			if sum != nd.PointCount {
				return idx.nodeErr(nd.ID, "children hold %d points, node claims %d", sum, nd.PointCount)
			}
		}

		if nd.HasChunk() {
			if nd.ChunkLength == 0 || nd.ChunkOffset < h.ChunkOffset || nd.ChunkOffset+uint64(nd.ChunkLength) > end {
				return idx.nodeErr(nd.ID, "chunk [%d,+%d) outside chunk region [%d,%d)", nd.ChunkOffset, nd.ChunkLength, h.ChunkOffset, end)
			}
		}
		if nd.IsLeaf() && uint64(nd.ChunkPoints) != nd.PointCount {
			return idx.nodeErr(nd.ID, "leaf chunk holds %d points, node claims %d", nd.ChunkPoints, nd.PointCount)
		}

		for int(nd.Depth) >= len(idx.levels) {
			idx.levels = append(idx.levels, 0)
		}
		idx.levels[nd.Depth]++
	}
	if leaves != h.LeafCount {
		return openErr(ErrMalformed, 52, "found %d leaves, header claims %d", leaves, h.LeafCount)
	}
	return nil
}

func (idx *Index) nodeErr(id uint32, format string, args ...any) error {
	off := int64(HeaderSize) + int64(id)*NodeRecordSize
	return openErr(ErrMalformed, off, "node %d: %s", id, fmt.Sprintf(format, args...))
}

// Header returns a copy of the file header.
func (idx *Index) Header() Header { return idx.header }

// Len returns the number of nodes.
func (idx *Index) Len() int { return len(idx.nodes) }

// Size returns the total file size.
func (idx *Index) Size() int64 { return idx.size }

// Root returns the root node.
func (idx *Index) Root() *Node { return &idx.nodes[0] }

// Node returns node id. The returned node must not be modified.
func (idx *Index) Node(id uint32) *Node { return &idx.nodes[id] }

// Children returns the child nodes of id in ascending octant order.
func (idx *Index) Children(id uint32) []Node {
	nd := &idx.nodes[id]
	if nd.ChildCount == 0 {
		return nil
	}
	return idx.nodes[nd.FirstChild : nd.FirstChild+uint32(nd.ChildCount)]
}

// Levels returns the number of nodes per depth.
func (idx *Index) Levels() []int {
	out := make([]int, len(idx.levels))
	copy(out, idx.levels)
	return out
}

// ChunkError reports a chunk that could not be read or failed its checksum.
type ChunkError struct {
	NodeID uint32
	Offset uint64
	Length uint32
	Err    error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("hierarchy: chunk of node %d at [%d,+%d): %v", e.NodeID, e.Offset, e.Length, e.Err)
}

func (e *ChunkError) Unwrap() error { return e.Err }

// ReadChunk reads and verifies the chunk of node id into buf, growing it if
// needed, and returns the chunk bytes.
func (idx *Index) ReadChunk(ctx context.Context, id uint32, buf []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	nd := &idx.nodes[id]
	if !nd.HasChunk() {
		return nil, ErrNoChunk
	}
	if cap(buf) < int(nd.ChunkLength) {
		buf = make([]byte, nd.ChunkLength)
	}
	buf = buf[:nd.ChunkLength]
	if err := idx.readAt(ctx, buf, int64(nd.ChunkOffset)); err != nil {
		return nil, &ChunkError{NodeID: id, Offset: nd.ChunkOffset, Length: nd.ChunkLength, Err: err}
	}
	if got := hash.CRC32C(buf); got != nd.ChunkCRC {
		return nil, &ChunkError{
			NodeID: id, Offset: nd.ChunkOffset, Length: nd.ChunkLength,
			Err: fmt.Errorf("%w: crc %#x, want %#x", ErrChecksum, got, nd.ChunkCRC),
		}
	}
	return buf, nil
}

// ContextReaderAt is implemented by remote blobs whose reads honor a context.
type ContextReaderAt interface {
	ReadAtContext(ctx context.Context, p []byte, off int64) (int, error)
}

func (idx *Index) readAt(ctx context.Context, buf []byte, off int64) error {
	cr, ok := idx.r.(ContextReaderAt)
	if !ok {
		return readAt(idx.r, buf, off)
	}
	return readAt(readerAtFunc(func(p []byte, off int64) (int, error) {
		return cr.ReadAtContext(ctx, p, off)
	}), buf, off)
}

type readerAtFunc func(p []byte, off int64) (int, error)

func (f readerAtFunc) ReadAt(p []byte, off int64) (int, error) { return f(p, off) }

// readAt treats io.EOF after a complete read as success.
func readAt(r io.ReaderAt, buf []byte, off int64) error {
	n, err := r.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
