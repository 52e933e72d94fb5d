// Package octree partitions a point set into an octree built as a flat arena.
//
// Nodes are created breadth-first, so node ids follow breadth-first order and the
// children of a node occupy a contiguous id range. The points are permuted so that
// every node, leaf or internal, owns a contiguous slice of the permuted array.
//
// Split policy:
//
//   - A node splits while it holds more than MaxPointsPerLeaf points and its depth
//     is below MaxDepth.
//   - Octant bit 0 is x > cx, bit 1 is y > cy, bit 2 is z > cz. Points exactly on a
//     splitting plane go to the lower half.
//   - Children exist only for non-empty octants and are ordered by octant index.
//   - A node whose points are all coincident never splits.
package octree
