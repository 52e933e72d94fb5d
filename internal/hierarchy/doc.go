// Package hierarchy implements the on-disk index of a point cloud.
//
// A file is laid out as
//
//	[header 192B][node table N*96B][chunk region]
//
// The node table lists every octree node in breadth-first order, so a node id
// is its position in the table and children are contiguous. Chunk offsets are
// absolute file positions. Readers load the header and the table only; chunk
// bytes are fetched lazily through an io.ReaderAt.
package hierarchy
