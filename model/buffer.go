package model

// Buffer is a resizable array of points. It is the unit handed from a reader to
// the ingestion pipeline. A Buffer is not safe for concurrent mutation.
type Buffer struct {
	points []Point
}

// NewBuffer creates an empty buffer with room for capacity points.
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{points: make([]Point, 0, capacity)}
}

// BufferOf wraps existing points without copying.
func BufferOf(points ...Point) *Buffer {
	return &Buffer{points: points}
}

// Append adds points to the end of the buffer.
func (b *Buffer) Append(points ...Point) {
	b.points = append(b.points, points...)
}

// Len returns the number of points.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.points)
}

// At returns a pointer to the i-th point.
func (b *Buffer) At(i int) *Point {
	return &b.points[i]
}

// Points returns the backing slice. Callers must not retain it across Append.
func (b *Buffer) Points() []Point {
	if b == nil {
		return nil
	}
	return b.points
}

// Reset empties the buffer but keeps its capacity.
func (b *Buffer) Reset() {
	b.points = b.points[:0]
}

// Bounds returns the tight bounding box of all points. The result IsEmpty when
// the buffer holds no points.
func (b *Buffer) Bounds() BBox {
	return BoundsOf(b.Points())
}

// BoundsOf returns the tight bounding box of points.
func BoundsOf(points []Point) BBox {
	bb := EmptyBBox()
	for i := range points {
		bb.Extend(&points[i])
	}
	return bb
}
