package octree

import (
	"errors"
	"fmt"

	"github.com/hupe1980/pointstore/model"
)

// MaxDepthLimit bounds the configurable tree depth.
const MaxDepthLimit = 32

var (
	// ErrEmpty is returned when partitioning an empty point set.
	ErrEmpty = errors.New("octree: no points to partition")
	// ErrInvalidConfig is wrapped by configuration errors.
	ErrInvalidConfig = errors.New("octree: invalid config")
)

// Config controls the split policy.
type Config struct {
	// MaxPointsPerLeaf is the split threshold.
	MaxPointsPerLeaf int
	// MaxDepth is the deepest level a node may reach. The root has depth 0.
	MaxDepth int
	// OverviewPoints is the size of the stride sample kept for internal nodes.
	// Zero disables overviews.
	OverviewPoints int
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxPointsPerLeaf <= 0 {
		return fmt.Errorf("%w: max points per leaf must be positive, got %d", ErrInvalidConfig, c.MaxPointsPerLeaf)
	}
	if c.MaxDepth <= 0 || c.MaxDepth > MaxDepthLimit {
		return fmt.Errorf("%w: max depth must be in [1, %d], got %d", ErrInvalidConfig, MaxDepthLimit, c.MaxDepth)
	}
	if c.OverviewPoints < 0 {
		return fmt.Errorf("%w: overview points must not be negative, got %d", ErrInvalidConfig, c.OverviewPoints)
	}
	return nil
}

// Node is one arena entry.
type Node struct {
	BBox       model.BBox
	Depth      uint8
	FirstChild uint32
	ChildCount uint8
	// ChildMask has bit i set when octant i has a child.
	ChildMask uint8

	start, end int
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool { return n.ChildCount == 0 }

// PointCount returns the number of points in the subtree.
func (n *Node) PointCount() int { return n.end - n.start }

// Tree is the immutable result of Partition.
type Tree struct {
	nodes    []Node
	points   []model.Point
	overview int
	depth    int
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns a copy of node id.
func (t *Tree) Node(id uint32) Node { return t.nodes[id] }

// Bounds returns the root box.
func (t *Tree) Bounds() model.BBox { return t.nodes[0].BBox }

// PointCount returns the total number of points.
func (t *Tree) PointCount() int { return len(t.points) }

// Depth returns the depth of the deepest node.
func (t *Tree) Depth() int { return t.depth }

// Points returns the points of the subtree rooted at id in partition order.
// The slice is shared and must not be modified.
func (t *Tree) Points(id uint32) []model.Point {
	n := &t.nodes[id]
	return t.points[n.start:n.end:n.end]
}

// Children returns the child ids of id.
func (t *Tree) Children(id uint32) []uint32 {
	n := &t.nodes[id]
	if n.ChildCount == 0 {
		return nil
	}
	ids := make([]uint32, n.ChildCount)
	for i := range ids {
		ids[i] = n.FirstChild + uint32(i)
	}
	return ids
}

// Overview returns the deterministic stride sample of an internal node, or nil
// for leaves and when overviews are disabled.
func (t *Tree) Overview(id uint32) []model.Point {
	n := &t.nodes[id]
	if t.overview == 0 || n.IsLeaf() {
		return nil
	}
	total := n.PointCount()
	k := min(t.overview, total)
	sample := make([]model.Point, k)
	for i := range sample {
		sample[i] = t.points[n.start+i*total/k]
	}
	return sample
}

// HasChunk reports whether node id carries encoded points: every leaf does, and
// internal nodes do when overviews are enabled.
func (t *Tree) HasChunk(id uint32) bool {
	return t.nodes[id].IsLeaf() || t.overview > 0
}

// ChunkPoints returns the points stored in the chunk of node id.
func (t *Tree) ChunkPoints(id uint32) []model.Point {
	if t.nodes[id].IsLeaf() {
		return t.Points(id)
	}
	return t.Overview(id)
}

// Leaves returns the ids of all leaves in breadth-first order.
func (t *Tree) Leaves() []uint32 {
	var ids []uint32
	for i := range t.nodes {
		if t.nodes[i].IsLeaf() {
			ids = append(ids, uint32(i))
		}
	}
	return ids
}

// Partition builds the octree over a copy of points.
func Partition(points []model.Point, cfg Config) (*Tree, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, ErrEmpty
	}

	t := &Tree{
		points:   make([]model.Point, len(points)),
		overview: cfg.OverviewPoints,
	}
	copy(t.points, points)
	scratch := make([]model.Point, len(points))

	t.nodes = append(t.nodes, Node{
		BBox:  model.BoundsOf(t.points),
		start: 0,
		end:   len(t.points),
	})

	// The arena doubles as the BFS queue.
	for id := 0; id < len(t.nodes); id++ {
		n := t.nodes[id]
		t.depth = max(t.depth, int(n.Depth))
		if n.PointCount() <= cfg.MaxPointsPerLeaf || int(n.Depth) >= cfg.MaxDepth {
			continue
		}
		pts := t.points[n.start:n.end]
		if model.BoundsOf(pts).Degenerate() {
			continue
		}

		var counts [8]int
		center := n.BBox.Center()
		for i := range pts {
			counts[model.OctantIndex(&pts[i], center)]++
		}

		var offsets [8]int
		acc := 0
		for o := 0; o < 8; o++ {
			offsets[o] = acc
			acc += counts[o]
		}

		// Stable counting sort keeps input order inside every octant.
		buf := scratch[:len(pts)]
		cursor := offsets
		for i := range pts {
			o := model.OctantIndex(&pts[i], center)
			buf[cursor[o]] = pts[i]
			cursor[o]++
		}
		copy(pts, buf)

		first := uint32(len(t.nodes))
		var mask uint8
		var childCount uint8
		for o := 0; o < 8; o++ {
			if counts[o] == 0 {
				continue
			}
			mask |= 1 << o
			childCount++
			t.nodes = append(t.nodes, Node{
				BBox:  n.BBox.Octant(o),
				Depth: n.Depth + 1,
				start: n.start + offsets[o],
				end:   n.start + offsets[o] + counts[o],
			})
		}
		t.nodes[id].FirstChild = first
		t.nodes[id].ChildCount = childCount
		t.nodes[id].ChildMask = mask
	}

	return t, nil
}
