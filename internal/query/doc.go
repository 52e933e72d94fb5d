// Package query streams the points of a hierarchy that fall inside a box.
//
// Traversal is depth-first with an explicit stack. Children are pushed in
// descending id order, so siblings are visited in ascending octant order and
// the output order is fully determined by the index. Subtrees whose box misses
// the query, or whose statistics rule out every predicate, are skipped
// without reading their chunks.
package query
