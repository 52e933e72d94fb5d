package query

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Stats records the work done by one query. It is filled by the goroutine
// driving the iterator and must not be read before iteration ends.
type Stats struct {
	// Visited counts nodes popped from the traversal stack.
	Visited int
	// Pruned counts nodes whose subtree was skipped.
	Pruned int
	// Decoded counts chunks decoded or served from the cache.
	Decoded int
	// CacheHits counts chunks served from the cache.
	CacheHits int
	// Failed counts chunks that yielded a LeafError.
	Failed int
	// BytesRead counts chunk bytes read from storage.
	BytesRead int64
	// Returned counts emitted points.
	Returned int
	// DecodedNodes holds the ids of decoded nodes.
	DecodedNodes *roaring.Bitmap
}

func (s *Stats) reset() {
	*s = Stats{DecodedNodes: roaring.New()}
}

func (s *Stats) recordDecode(id uint32, bytes int64, hit bool) {
	s.Decoded++
	s.DecodedNodes.Add(id)
	if hit {
		s.CacheHits++
	} else {
		s.BytesRead += bytes
	}
}
