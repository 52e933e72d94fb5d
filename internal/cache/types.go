package cache

import (
	"unsafe"

	"github.com/google/uuid"

	"github.com/hupe1980/pointstore/model"
)

// Key identifies one decoded chunk.
type Key struct {
	Dataset uuid.UUID
	NodeID  uint32
	// CoordsOnly marks entries decoded without attributes.
	CoordsOnly bool
}

// Cache stores decoded chunks. Returned slices are shared and read-only.
type Cache interface {
	Get(key Key) ([]model.Point, bool)
	Set(key Key, points []model.Point)
	// Invalidate drops all entries of a dataset.
	Invalidate(dataset uuid.UUID)
	Stats() (hits, misses int64)
	Size() int64
}

const pointSize = int64(unsafe.Sizeof(model.Point{}))

// Cost returns the number of bytes charged for points.
func Cost(points []model.Point) int64 {
	return int64(len(points)) * pointSize
}
