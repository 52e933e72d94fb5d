package hierarchy

import (
	"bytes"
	"context"
	"encoding/binary"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pointstore/internal/chunk"
	"github.com/hupe1980/pointstore/internal/hash"
	"github.com/hupe1980/pointstore/internal/octree"
	"github.com/hupe1980/pointstore/model"
)

var testMeta = Meta{
	DatasetID:   uuid.MustParse("6f1c2a8e-3b7d-4c5e-9a10-2b3c4d5e6f70"),
	CreatedAt:   time.Unix(1700000000, 123),
	Format:      model.FormatXYZI,
	Compression: chunk.CompressionZstd,
	Scale:       model.Scale{X: 1e-3, Y: 1e-3, Z: 1e-3},
	MaxDepth:    8,
}

func randomPoints(n int) []model.Point {
	rng := rand.New(rand.NewSource(7))
	pts := make([]model.Point, n)
	for i := range pts {
		pts[i] = model.Point{
			X:         rng.Float64() * 100,
			Y:         rng.Float64() * 100,
			Z:         rng.Float64() * 20,
			Intensity: uint16(100 + rng.Intn(900)),
		}
	}
	return pts
}

func encodeTree(t *testing.T, tree *octree.Tree, meta Meta) *Encoded {
	t.Helper()
	src := &Encoded{T: tree, Chunks: make([][]byte, tree.Len())}
	opts := chunk.EncodeOptions{Format: meta.Format, Scale: meta.Scale, Compression: meta.Compression}
	for id := uint32(0); id < uint32(tree.Len()); id++ {
		if !tree.HasChunk(id) {
			continue
		}
		data, err := chunk.Encode(tree.ChunkPoints(id), tree.Node(id).BBox, opts)
		require.NoError(t, err)
		src.Chunks[id] = data
	}
	return src
}

func build(t *testing.T, cfg octree.Config) ([]byte, *octree.Tree) {
	t.Helper()
	tree, err := octree.Partition(randomPoints(2000), cfg)
	require.NoError(t, err)

	var buf bytes.Buffer
	stats, err := Write(&buf, encodeTree(t, tree, testMeta), testMeta)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), stats.Bytes)
	assert.Equal(t, tree.Len(), stats.Nodes)
	assert.Equal(t, len(tree.Leaves()), stats.Leaves)
	return buf.Bytes(), tree
}

// reseal recomputes the node table and header checksums after tampering.
func reseal(t *testing.T, data []byte) {
	t.Helper()
	h, err := DecodeHeader(data[:HeaderSize])
	if err != nil {
		// The header checksum may already be stale; recompute from raw fields.
		binary.LittleEndian.PutUint32(data[headerCRCOffset:], hash.CRC32C(data[:headerCRCOffset]))
		h, err = DecodeHeader(data[:HeaderSize])
		require.NoError(t, err)
	}
	h.NodeTableCRC = hash.CRC32C(data[h.NodeTableOffset : h.NodeTableOffset+h.NodeTableLength])
	copy(data, h.Encode())
}

func TestWriteOpen_RoundTrip(t *testing.T) {
	data, tree := build(t, octree.Config{MaxPointsPerLeaf: 100, MaxDepth: 8})

	idx, err := Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	h := idx.Header()
	assert.Equal(t, testMeta.DatasetID, h.DatasetID)
	assert.True(t, testMeta.CreatedAt.Equal(h.CreatedAt))
	assert.Equal(t, testMeta.Format, h.Format)
	assert.Equal(t, testMeta.Compression, h.Compression)
	assert.Equal(t, testMeta.Scale, h.Scale)
	assert.Equal(t, uint8(8), h.MaxDepth)
	assert.Equal(t, uint64(2000), h.PointCount)
	assert.Equal(t, tree.Bounds(), h.Bounds)
	assert.Equal(t, int64(len(data)), idx.Size())

	require.Equal(t, tree.Len(), idx.Len())
	for id := uint32(0); id < uint32(tree.Len()); id++ {
		want := tree.Node(id)
		got := idx.Node(id)
		assert.Equal(t, want.BBox, got.BBox)
		assert.Equal(t, want.Depth, got.Depth)
		assert.Equal(t, want.ChildCount, got.ChildCount)
		assert.Equal(t, want.ChildMask, got.ChildMask)
		assert.Equal(t, uint64(want.PointCount()), got.PointCount)
		assert.Equal(t, want.IsLeaf(), got.IsLeaf())
		assert.Equal(t, want.FirstChild, got.FirstChild)
		for i, c := range idx.Children(id) {
			assert.Equal(t, want.FirstChild+uint32(i), c.ID)
		}
	}

	levels := idx.Levels()
	total := 0
	for _, n := range levels {
		total += n
	}
	assert.Equal(t, idx.Len(), total)
	assert.Equal(t, 1, levels[0])
}

func TestReadChunk_DecodesLeafPoints(t *testing.T) {
	data, tree := build(t, octree.Config{MaxPointsPerLeaf: 100, MaxDepth: 8})
	idx, err := Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	ctx := context.Background()
	var buf []byte
	for _, id := range tree.Leaves() {
		nd := idx.Node(id)
		buf, err = idx.ReadChunk(ctx, id, buf)
		require.NoError(t, err)
		pts, err := chunk.Decode(buf, nd.BBox, chunk.DecodeOptions{
			Format: testMeta.Format, Scale: testMeta.Scale, Compression: testMeta.Compression,
		})
		require.NoError(t, err)
		want := tree.Points(id)
		require.Len(t, pts, len(want))
		for i := range pts {
			assert.InDelta(t, want[i].X, pts[i].X, testMeta.Scale.X)
			assert.Equal(t, want[i].Intensity, pts[i].Intensity)
			assert.True(t, nd.BBox.Contains(&want[i]))
		}
	}
}

func TestReadChunk_NoChunkForInternalNode(t *testing.T) {
	data, _ := build(t, octree.Config{MaxPointsPerLeaf: 100, MaxDepth: 8})
	idx, err := Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	require.False(t, idx.Root().IsLeaf())
	_, err = idx.ReadChunk(context.Background(), 0, nil)
	assert.ErrorIs(t, err, ErrNoChunk)
}

func TestReadChunk_Overview(t *testing.T) {
	data, tree := build(t, octree.Config{MaxPointsPerLeaf: 100, MaxDepth: 8, OverviewPoints: 32})
	idx, err := Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	root := idx.Root()
	assert.True(t, root.HasChunk())
	assert.False(t, root.IsLeaf())
	assert.Equal(t, uint32(32), root.ChunkPoints)

	raw, err := idx.ReadChunk(context.Background(), 0, nil)
	require.NoError(t, err)
	n, err := chunk.Count(raw)
	require.NoError(t, err)
	assert.Len(t, tree.Overview(0), n)
}

func TestReadChunk_Canceled(t *testing.T) {
	data, tree := build(t, octree.Config{MaxPointsPerLeaf: 100, MaxDepth: 8})
	idx, err := Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = idx.ReadChunk(ctx, tree.Leaves()[0], nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadChunk_ChecksumMismatch(t *testing.T) {
	data, tree := build(t, octree.Config{MaxPointsPerLeaf: 100, MaxDepth: 8})
	idx, err := Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	leaf := tree.Leaves()[0]
	nd := idx.Node(leaf)
	data[nd.ChunkOffset+uint64(nd.ChunkLength)/2] ^= 0xFF

	_, err = idx.ReadChunk(context.Background(), leaf, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChecksum)
	var ce *ChunkError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, leaf, ce.NodeID)
	assert.Equal(t, nd.ChunkOffset, ce.Offset)

	// Other chunks are unaffected.
	_, err = idx.ReadChunk(context.Background(), tree.Leaves()[1], nil)
	assert.NoError(t, err)
}

func TestOpen_Rejects(t *testing.T) {
	cfg := octree.Config{MaxPointsPerLeaf: 100, MaxDepth: 8}

	tests := []struct {
		name   string
		tamper func(t *testing.T, data []byte) []byte
		want   error
	}{
		{
			name:   "bad magic",
			tamper: func(_ *testing.T, d []byte) []byte { d[0] ^= 0xFF; return d },
			want:   ErrInvalidMagic,
		},
		{
			name: "bad version",
			tamper: func(_ *testing.T, d []byte) []byte {
				binary.LittleEndian.PutUint16(d[4:], Version+1)
				return d
			},
			want: ErrInvalidVersion,
		},
		{
			name:   "header checksum",
			tamper: func(_ *testing.T, d []byte) []byte { d[40] ^= 0x01; return d },
			want:   ErrChecksum,
		},
		{
			name:   "truncated header",
			tamper: func(_ *testing.T, d []byte) []byte { return d[:HeaderSize/2] },
			want:   ErrMalformed,
		},
		{
			name:   "truncated chunks",
			tamper: func(_ *testing.T, d []byte) []byte { return d[:len(d)-1] },
			want:   ErrMalformed,
		},
		{
			name:   "node table checksum",
			tamper: func(_ *testing.T, d []byte) []byte { d[HeaderSize+10] ^= 0xFF; return d },
			want:   ErrChecksum,
		},
		{
			name: "child points backwards",
			tamper: func(t *testing.T, d []byte) []byte {
				binary.LittleEndian.PutUint32(d[HeaderSize+52:], 0)
				reseal(t, d)
				return d
			},
			want: ErrMalformed,
		},
		{
			name: "child range past table",
			tamper: func(t *testing.T, d []byte) []byte {
				binary.LittleEndian.PutUint32(d[HeaderSize+52:], 1<<30)
				reseal(t, d)
				return d
			},
			want: ErrMalformed,
		},
		{
			name: "child mask mismatch",
			tamper: func(t *testing.T, d []byte) []byte {
				d[HeaderSize+50] = 0
				reseal(t, d)
				return d
			},
			want: ErrMalformed,
		},
		{
			name: "chunk outside region",
			tamper: func(t *testing.T, d []byte) []byte {
				h, err := DecodeHeader(d[:HeaderSize])
				require.NoError(t, err)
				last := uint64(h.NodeCount - 1)
				rec := d[HeaderSize+last*NodeRecordSize:]
				binary.LittleEndian.PutUint64(rec[64:], uint64(len(d)))
				reseal(t, d)
				return d
			},
			want: ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, _ := build(t, cfg)
			data = tt.tamper(t, data)

			_, err := Open(bytes.NewReader(data), int64(len(data)))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			var oe *OpenError
			assert.ErrorAs(t, err, &oe)
		})
	}
}

func TestWrite_RejectsLeafWithoutChunk(t *testing.T) {
	tree, err := octree.Partition(randomPoints(50), octree.Config{MaxPointsPerLeaf: 100, MaxDepth: 4})
	require.NoError(t, err)

	_, err = Write(&bytes.Buffer{}, &Encoded{T: tree}, testMeta)
	assert.Error(t, err)
}

func TestNodeRecord_RoundTrip(t *testing.T) {
	n := Node{
		ID:           3,
		BBox:         model.NewBBox(-1, -2, -3, 4, 5, 6),
		Depth:        2,
		ChildCount:   3,
		ChildMask:    0b10100010,
		Flags:        FlagOverview,
		FirstChild:   17,
		PointCount:   1 << 40,
		ChunkOffset:  9000,
		ChunkLength:  512,
		ChunkCRC:     0xDEADBEEF,
		ChunkPoints:  64,
		IntensityMin: 3,
		IntensityMax: 65000,
	}
	buf := make([]byte, NodeRecordSize)
	n.encode(buf)
	assert.Equal(t, n, decodeNode(3, buf))
}

type ctxReader struct {
	*bytes.Reader
	calls int
}

func (r *ctxReader) ReadAtContext(ctx context.Context, p []byte, off int64) (int, error) {
	r.calls++
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return r.ReadAt(p, off)
}

func TestReadChunk_UsesContextReader(t *testing.T) {
	data, tree := build(t, octree.Config{MaxPointsPerLeaf: 100, MaxDepth: 8})
	r := &ctxReader{Reader: bytes.NewReader(data)}
	idx, err := Open(r, int64(len(data)))
	require.NoError(t, err)

	_, err = idx.ReadChunk(context.Background(), tree.Leaves()[0], nil)
	require.NoError(t, err)
	assert.Equal(t, 1, r.calls)
}
