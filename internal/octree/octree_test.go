package octree

import (
	"math/rand"
	"testing"

	"github.com/hupe1980/pointstore/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diagonal() []model.Point {
	return []model.Point{
		{X: 0, Y: 0, Z: 0, Intensity: 10},
		{X: 1, Y: 1, Z: 1, Intensity: 20},
		{X: 2, Y: 2, Z: 2, Intensity: 30},
		{X: 3, Y: 3, Z: 3, Intensity: 40},
	}
}

func randomPoints(rng *rand.Rand, n int) []model.Point {
	pts := make([]model.Point, n)
	for i := range pts {
		pts[i] = model.Point{
			X:         rng.Float64() * 100,
			Y:         rng.Float64() * 50,
			Z:         rng.Float64() * 10,
			Intensity: uint16(rng.Intn(4096)),
		}
	}
	return pts
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Config{MaxPointsPerLeaf: 1, MaxDepth: 1}.Validate())
	assert.ErrorIs(t, Config{MaxPointsPerLeaf: 0, MaxDepth: 4}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{MaxPointsPerLeaf: 4, MaxDepth: 0}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{MaxPointsPerLeaf: 4, MaxDepth: -3}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{MaxPointsPerLeaf: 4, MaxDepth: MaxDepthLimit + 1}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{MaxPointsPerLeaf: 4, MaxDepth: 4, OverviewPoints: -1}.Validate(), ErrInvalidConfig)
}

func TestPartition_Empty(t *testing.T) {
	_, err := Partition(nil, Config{MaxPointsPerLeaf: 4, MaxDepth: 4})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestPartition_Diagonal(t *testing.T) {
	tree, err := Partition(diagonal(), Config{MaxPointsPerLeaf: 1, MaxDepth: 12})
	require.NoError(t, err)

	assert.Equal(t, model.NewBBox(0, 0, 0, 3, 3, 3), tree.Bounds())
	assert.Equal(t, 4, tree.PointCount())

	leaves := tree.Leaves()
	total := 0
	for _, id := range leaves {
		n := tree.Node(id)
		assert.LessOrEqual(t, n.PointCount(), 1)
		total += n.PointCount()
	}
	assert.Equal(t, 4, total)

	root := tree.Node(0)
	assert.False(t, root.IsLeaf())
	// Center 1.5: (0,0,0) and (1,1,1) go to octant 0, the others to octant 7.
	assert.Equal(t, uint8(0b1000_0001), root.ChildMask)
	assert.Equal(t, uint32(1), root.FirstChild)
	assert.Equal(t, uint8(2), root.ChildCount)
	assert.Equal(t, model.NewBBox(0, 0, 0, 1.5, 1.5, 1.5), tree.Node(1).BBox)
}

func TestPartition_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pts := randomPoints(rng, 5000)

	cfg := Config{MaxPointsPerLeaf: 64, MaxDepth: 8}
	tree, err := Partition(pts, cfg)
	require.NoError(t, err)

	total := 0
	for id := uint32(0); id < uint32(tree.Len()); id++ {
		n := tree.Node(id)
		for _, p := range tree.Points(id) {
			assert.True(t, n.BBox.Contains(&p), "node %d does not contain %v", id, p)
		}
		if n.IsLeaf() {
			total += n.PointCount()
			if n.PointCount() > cfg.MaxPointsPerLeaf {
				assert.Equal(t, cfg.MaxDepth, int(n.Depth))
			}
			continue
		}
		sum := 0
		prev := id
		for _, c := range tree.Children(id) {
			child := tree.Node(c)
			assert.Greater(t, c, prev, "children must follow parent in BFS order")
			prev = c
			assert.True(t, n.BBox.ContainsBox(child.BBox))
			assert.Equal(t, n.Depth+1, child.Depth)
			sum += child.PointCount()
		}
		assert.Equal(t, n.PointCount(), sum)
	}
	assert.Equal(t, len(pts), total)
}

func TestPartition_BreadthFirstOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	tree, err := Partition(randomPoints(rng, 2000), Config{MaxPointsPerLeaf: 16, MaxDepth: 10})
	require.NoError(t, err)

	prevDepth := uint8(0)
	for id := uint32(0); id < uint32(tree.Len()); id++ {
		d := tree.Node(id).Depth
		assert.GreaterOrEqual(t, d, prevDepth)
		prevDepth = d
	}
}

func TestPartition_CoincidentPointsStop(t *testing.T) {
	pts := make([]model.Point, 100)
	for i := range pts {
		pts[i] = model.Point{X: 5, Y: 5, Z: 5, Intensity: uint16(i)}
	}
	tree, err := Partition(pts, Config{MaxPointsPerLeaf: 1, MaxDepth: 12})
	require.NoError(t, err)
	assert.Equal(t, 1, tree.Len())
	root := tree.Node(0)
	assert.Equal(t, 100, root.PointCount())
}

func TestPartition_DuplicateClusterStopsAtRepeat(t *testing.T) {
	pts := []model.Point{{X: 0, Y: 0, Z: 0}, {X: 10, Y: 10, Z: 10}}
	for i := 0; i < 20; i++ {
		pts = append(pts, model.Point{X: 7, Y: 7, Z: 7})
	}
	tree, err := Partition(pts, Config{MaxPointsPerLeaf: 2, MaxDepth: 12})
	require.NoError(t, err)

	var dupLeaf *Node
	for _, id := range tree.Leaves() {
		n := tree.Node(id)
		if n.PointCount() == 20 {
			dupLeaf = &n
		}
	}
	require.NotNil(t, dupLeaf)
	assert.Less(t, int(dupLeaf.Depth), 12)
}

func TestPartition_DepthLimit(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	tree, err := Partition(randomPoints(rng, 1000), Config{MaxPointsPerLeaf: 1, MaxDepth: 2})
	require.NoError(t, err)
	assert.LessOrEqual(t, tree.Depth(), 2)
}

func TestPartition_StableWithinLeaf(t *testing.T) {
	pts := make([]model.Point, 10)
	for i := range pts {
		pts[i] = model.Point{X: float64(i % 2), Y: 0, Z: 0, Intensity: uint16(i)}
	}
	tree, err := Partition(pts, Config{MaxPointsPerLeaf: 5, MaxDepth: 4})
	require.NoError(t, err)

	for _, id := range tree.Leaves() {
		leaf := tree.Points(id)
		for i := 1; i < len(leaf); i++ {
			assert.Less(t, leaf[i-1].Intensity, leaf[i].Intensity)
		}
	}
}

func TestPartition_DoesNotMutateInput(t *testing.T) {
	pts := diagonal()
	pts[0], pts[3] = pts[3], pts[0]
	orig := append([]model.Point(nil), pts...)
	_, err := Partition(pts, Config{MaxPointsPerLeaf: 1, MaxDepth: 12})
	require.NoError(t, err)
	assert.Equal(t, orig, pts)
}

func TestPartition_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	pts := randomPoints(rng, 3000)
	cfg := Config{MaxPointsPerLeaf: 50, MaxDepth: 9, OverviewPoints: 8}

	a, err := Partition(pts, cfg)
	require.NoError(t, err)
	b, err := Partition(pts, cfg)
	require.NoError(t, err)

	require.Equal(t, a.Len(), b.Len())
	for id := uint32(0); id < uint32(a.Len()); id++ {
		assert.Equal(t, a.Node(id), b.Node(id))
		assert.Equal(t, a.ChunkPoints(id), b.ChunkPoints(id))
	}
}

func TestTree_Overview(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	tree, err := Partition(randomPoints(rng, 1000), Config{MaxPointsPerLeaf: 100, MaxDepth: 6, OverviewPoints: 10})
	require.NoError(t, err)

	root := tree.Node(0)
	require.False(t, root.IsLeaf())
	ov := tree.Overview(0)
	assert.Len(t, ov, 10)
	for _, p := range ov {
		assert.True(t, root.BBox.Contains(&p))
	}
	assert.True(t, tree.HasChunk(0))

	for _, id := range tree.Leaves() {
		assert.Nil(t, tree.Overview(id))
		assert.Equal(t, tree.Points(id), tree.ChunkPoints(id))
	}

	noOv, err := Partition(randomPoints(rng, 1000), Config{MaxPointsPerLeaf: 100, MaxDepth: 6})
	require.NoError(t, err)
	assert.False(t, noOv.HasChunk(0))
	assert.Nil(t, noOv.Overview(0))
}
