// Package ingest turns an unordered point batch into a hierarchy file.
//
// The pipeline partitions the points into an octree, encodes the chunk of
// every leaf (and every internal node when overviews are enabled) on a bounded
// worker pool, and streams header, node table and chunks to the output writer
// through the resource controller's IO limiter.
package ingest
