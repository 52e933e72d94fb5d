package pointstore

import (
	"context"
	"errors"
	"math/rand/v2"
	"runtime"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/pointstore/blobstore"
	"github.com/hupe1980/pointstore/internal/hierarchy"
	"github.com/hupe1980/pointstore/model"
)

func ingestRandom(t *testing.T, store blobstore.BlobStore, name string, n int, opts ...Option) {
	t.Helper()
	rng := rand.New(rand.NewPCG(uint64(n), 99))
	buf := model.NewBuffer(n)
	for i := 0; i < n; i++ {
		buf.Append(model.Point{X: rng.Float64() * 100, Y: rng.Float64() * 100, Z: rng.Float64() * 10, Intensity: uint16(rng.IntN(4000))})
	}
	_, err := Ingest(context.Background(), store, name, buf, opts...)
	require.NoError(t, err)
}

func TestQuery_CorruptLeafYieldsDecodeError(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	ingestRandom(t, store, "a", 2000, WithMaxPointsPerLeaf(64))

	cloud, err := Open(ctx, store, "a")
	require.NoError(t, err)
	var leaf hierarchy.Node
	for id := 1; id < cloud.idx.Len(); id++ {
		if n := cloud.idx.Node(uint32(id)); n.IsLeaf() {
			leaf = *n
			break
		}
	}
	require.NotZero(t, leaf.ID)
	require.NoError(t, cloud.Close())

	blob, err := store.Open(ctx, "a")
	require.NoError(t, err)
	raw, err := blob.(blobstore.Mappable).Bytes()
	require.NoError(t, err)
	data := slices.Clone(raw)
	data[leaf.ChunkOffset+uint64(leaf.ChunkLength)/2] ^= 0x5A
	require.NoError(t, store.Put(ctx, "a", data))

	cloud, err = Open(ctx, store, "a")
	require.NoError(t, err)
	defer cloud.Close()

	var (
		points int
		errs   []error
	)
	for _, err := range cloud.Query(ctx, cloud.Bounds()) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		points++
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrCorruptChunk)
	assert.ErrorIs(t, errs[0], hierarchy.ErrChecksum)
	var de *DecodeError
	require.ErrorAs(t, errs[0], &de)
	assert.Equal(t, leaf.ID, de.NodeID)
	assert.Equal(t, leaf.ChunkOffset, de.Offset)
	assert.Equal(t, 2000-int(leaf.PointCount), points)
}

func TestQuery_LODReadsOverviews(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	ingestRandom(t, store, "a", 3000, WithMaxPointsPerLeaf(64), WithOverviewPoints(16))

	cloud, err := Open(ctx, store, "a")
	require.NoError(t, err)
	defer cloud.Close()
	require.Greater(t, len(cloud.Levels()), 2)

	var stats Stats
	pts, err := cloud.Collect(ctx, cloud.Bounds(), WithLOD(1), WithStats(&stats))
	require.NoError(t, err)

	want := 0
	it := stats.DecodedNodes.Iterator()
	for it.HasNext() {
		n := cloud.idx.Node(it.Next())
		assert.Equal(t, uint8(1), n.Depth)
		want += int(n.ChunkPoints)
	}
	assert.Equal(t, want, len(pts))
	assert.Less(t, len(pts), 3000)
	assert.Equal(t, cloud.Levels()[1], stats.Decoded)
}

func TestGuardedBlob_ReadAfterClose(t *testing.T) {
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), "x", []byte("abcdef")))
	b, err := store.Open(context.Background(), "x")
	require.NoError(t, err)

	g := &guardedBlob{b: b}
	buf := make([]byte, 3)
	_, err = g.ReadAt(buf, 1)
	require.NoError(t, err)
	assert.Equal(t, "bcd", string(buf))

	first, err := g.close()
	require.NoError(t, err)
	assert.True(t, first)
	first, _ = g.close()
	assert.False(t, first)

	_, err = g.ReadAt(buf, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestNoGoroutineLeaks(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewLocalStore(t.TempDir())
	ingestRandom(t, store, "a", 4000, WithMaxPointsPerLeaf(32), WithWorkers(4))

	before := runtime.NumGoroutine()

	cloud, err := Open(ctx, store, "a", WithChunkCache(1<<20))
	require.NoError(t, err)
	for range 10 {
		n := 0
		for _, err := range cloud.Query(ctx, cloud.Bounds(), WithParallelism(8)) {
			require.NoError(t, err)
			if n++; n == 100 {
				break
			}
		}
	}
	require.NoError(t, cloud.Close())

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+1
	}, 2*time.Second, 20*time.Millisecond)
}

func TestTranslateError(t *testing.T) {
	assert.Nil(t, translateError(nil))

	other := errors.New("other")
	assert.Equal(t, other, translateError(other))

	err := translateError(&hierarchy.ChunkError{NodeID: 3, Offset: 10, Length: 4, Err: hierarchy.ErrChecksum})
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, uint32(3), de.NodeID)
	assert.ErrorIs(t, err, ErrCorruptChunk)
	assert.ErrorIs(t, err, hierarchy.ErrChecksum)
}
