package hierarchy

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/pointstore/internal/chunk"
	"github.com/hupe1980/pointstore/internal/hash"
	"github.com/hupe1980/pointstore/internal/octree"
	"github.com/hupe1980/pointstore/model"
)

// Source provides a partitioned tree and the encoded chunk of every node.
type Source interface {
	Tree() *octree.Tree
	// Chunk returns the encoded chunk of node id, or nil if it has none.
	Chunk(id uint32) []byte
}

// Encoded is a Source backed by an in-memory chunk slice indexed by node id.
type Encoded struct {
	T      *octree.Tree
	Chunks [][]byte
}

func (e *Encoded) Tree() *octree.Tree { return e.T }

func (e *Encoded) Chunk(id uint32) []byte {
	if int(id) >= len(e.Chunks) {
		return nil
	}
	return e.Chunks[id]
}

// Meta describes dataset-level header fields.
type Meta struct {
	DatasetID   uuid.UUID
	CreatedAt   time.Time
	Format      model.PointFormat
	Compression chunk.Compression
	Scale       model.Scale
	MaxDepth    int
}

// WriteStats summarizes a written index.
type WriteStats struct {
	Bytes      int64
	Nodes      int
	Leaves     int
	Chunks     int
	ChunkBytes int64
}

// Write serializes the header, the node table and all chunks to w.
func Write(w io.Writer, src Source, meta Meta) (WriteStats, error) {
	tree := src.Tree()
	if tree == nil || tree.Len() == 0 {
		return WriteStats{}, fmt.Errorf("hierarchy: empty tree")
	}
	n := tree.Len()
	if uint64(n) > math.MaxUint32 {
		return WriteStats{}, fmt.Errorf("hierarchy: too many nodes: %d", n)
	}

	var stats WriteStats
	stats.Nodes = n

	tableOff := uint64(HeaderSize)
	tableLen := uint64(n) * NodeRecordSize
	chunkOff := tableOff + tableLen

	table := make([]byte, tableLen)
	cursor := chunkOff
	for id := uint32(0); id < uint32(n); id++ {
		tn := tree.Node(id)
		rec := Node{
			ID:         id,
			BBox:       tn.BBox,
			Depth:      tn.Depth,
			ChildCount: tn.ChildCount,
			ChildMask:  tn.ChildMask,
			FirstChild: tn.FirstChild,
			PointCount: uint64(tn.PointCount()),
		}
		rec.IntensityMin, rec.IntensityMax = intensityRange(tree.Points(id))
		if tn.IsLeaf() {
			rec.Flags |= FlagLeaf
			stats.Leaves++
		}

		data := src.Chunk(id)
		if len(data) > 0 {
			if uint64(len(data)) > math.MaxUint32 {
				return stats, fmt.Errorf("hierarchy: chunk of node %d too large: %d bytes", id, len(data))
			}
			count, err := chunk.Count(data)
			if err != nil {
				return stats, fmt.Errorf("hierarchy: chunk of node %d: %w", id, err)
			}
			if !tn.IsLeaf() {
				rec.Flags |= FlagOverview
			}
			rec.ChunkOffset = cursor
			rec.ChunkLength = uint32(len(data))
			rec.ChunkCRC = hash.CRC32C(data)
			rec.ChunkPoints = uint32(count)
			cursor += uint64(len(data))
			stats.Chunks++
		} else if tn.IsLeaf() {
			return stats, fmt.Errorf("hierarchy: leaf %d has no chunk", id)
		}
		rec.encode(table[uint64(id)*NodeRecordSize:])
	}

	h := &Header{
		Magic:           MagicNumber,
		Version:         Version,
		Format:          meta.Format,
		Compression:     meta.Compression,
		MaxDepth:        uint8(meta.MaxDepth),
		DatasetID:       meta.DatasetID,
		CreatedAt:       meta.CreatedAt,
		PointCount:      uint64(tree.PointCount()),
		NodeCount:       uint32(n),
		LeafCount:       uint32(stats.Leaves),
		Bounds:          tree.Bounds(),
		Scale:           meta.Scale,
		NodeTableOffset: tableOff,
		NodeTableLength: tableLen,
		ChunkOffset:     chunkOff,
		ChunkLength:     cursor - chunkOff,
		NodeTableCRC:    hash.CRC32C(table),
	}

	bw := bufio.NewWriterSize(w, 1<<16)
	if _, err := bw.Write(h.Encode()); err != nil {
		return stats, fmt.Errorf("hierarchy: write header: %w", err)
	}
	if _, err := bw.Write(table); err != nil {
		return stats, fmt.Errorf("hierarchy: write node table: %w", err)
	}
	for id := uint32(0); id < uint32(n); id++ {
		data := src.Chunk(id)
		if len(data) == 0 {
			continue
		}
		if _, err := bw.Write(data); err != nil {
			return stats, fmt.Errorf("hierarchy: write chunk %d: %w", id, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("hierarchy: flush: %w", err)
	}

	stats.ChunkBytes = int64(h.ChunkLength)
	stats.Bytes = int64(cursor)
	return stats, nil
}

func intensityRange(points []model.Point) (lo, hi uint16) {
	lo = math.MaxUint16
	for i := range points {
		lo = min(lo, points[i].Intensity)
		hi = max(hi, points[i].Intensity)
	}
	return lo, hi
}
