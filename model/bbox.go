package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// BBox is an axis-aligned bounding box. Every interval is closed, so a degenerate
// box (min == max on some axis) is legal and matches coincident points only.
type BBox struct {
	MinX, MinY, MinZ float64
	MaxX, MaxY, MaxZ float64
}

// NewBBox builds a box from two corners.
func NewBBox(minX, minY, minZ, maxX, maxY, maxZ float64) BBox {
	return BBox{MinX: minX, MinY: minY, MinZ: minZ, MaxX: maxX, MaxY: maxY, MaxZ: maxZ}
}

// EmptyBBox returns an inverted box that every Extend call shrinks onto the
// extended points.
func EmptyBBox() BBox {
	return BBox{
		MinX: math.MaxFloat64, MinY: math.MaxFloat64, MinZ: math.MaxFloat64,
		MaxX: -math.MaxFloat64, MaxY: -math.MaxFloat64, MaxZ: -math.MaxFloat64,
	}
}

// Validate reports an error if a bound is not finite or min > max on an axis.
func (b BBox) Validate() error {
	lo, hi := b.Min(), b.Max()
	for i, pair := range [3][2]float64{{lo.X, hi.X}, {lo.Y, hi.Y}, {lo.Z, hi.Z}} {
		if !isFinite(pair[0]) || !isFinite(pair[1]) {
			return fmt.Errorf("bbox bound on axis %c is not finite", "xyz"[i])
		}
		if pair[0] > pair[1] {
			return fmt.Errorf("bbox min %g > max %g on axis %c", pair[0], pair[1], "xyz"[i])
		}
	}
	return nil
}

// IsEmpty reports whether the box is inverted on any axis.
func (b BBox) IsEmpty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY || b.MinZ > b.MaxZ
}

// Min returns the lower corner.
func (b BBox) Min() r3.Vec { return r3.Vec{X: b.MinX, Y: b.MinY, Z: b.MinZ} }

// Max returns the upper corner.
func (b BBox) Max() r3.Vec { return r3.Vec{X: b.MaxX, Y: b.MaxY, Z: b.MaxZ} }

// Center returns the midpoint of the box.
func (b BBox) Center() r3.Vec {
	return r3.Scale(0.5, r3.Add(b.Min(), b.Max()))
}

// Contains reports whether p lies inside the box (min <= c <= max on all axes).
func (b BBox) Contains(p *Point) bool {
	return p.X >= b.MinX && p.X <= b.MaxX &&
		p.Y >= b.MinY && p.Y <= b.MaxY &&
		p.Z >= b.MinZ && p.Z <= b.MaxZ
}

// ContainsBox reports whether o lies inside b.
func (b BBox) ContainsBox(o BBox) bool {
	return o.MinX >= b.MinX && o.MaxX <= b.MaxX &&
		o.MinY >= b.MinY && o.MaxY <= b.MaxY &&
		o.MinZ >= b.MinZ && o.MaxZ <= b.MaxZ
}

// Intersects reports whether the closed boxes share at least one point.
// Boxes that only touch on a face, edge or corner intersect.
func (b BBox) Intersects(o BBox) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX &&
		b.MinY <= o.MaxY && o.MinY <= b.MaxY &&
		b.MinZ <= o.MaxZ && o.MinZ <= b.MaxZ
}

// Extend grows the box to include p.
func (b *BBox) Extend(p *Point) {
	b.MinX = math.Min(b.MinX, p.X)
	b.MinY = math.Min(b.MinY, p.Y)
	b.MinZ = math.Min(b.MinZ, p.Z)
	b.MaxX = math.Max(b.MaxX, p.X)
	b.MaxY = math.Max(b.MaxY, p.Y)
	b.MaxZ = math.Max(b.MaxZ, p.Z)
}

// Degenerate reports whether the box has zero extent on every axis.
func (b BBox) Degenerate() bool {
	return b.MinX == b.MaxX && b.MinY == b.MaxY && b.MinZ == b.MaxZ
}

// OctantIndex returns the octant of p relative to center c.
// Bit 0 is set iff x > c.X, bit 1 iff y > c.Y, bit 2 iff z > c.Z, so points on a
// splitting plane fall into the lower half.
func OctantIndex(p *Point, c r3.Vec) int {
	i := 0
	if p.X > c.X {
		i |= 1
	}
	if p.Y > c.Y {
		i |= 2
	}
	if p.Z > c.Z {
		i |= 4
	}
	return i
}

// Octant returns the box of octant i, using the same bit layout as OctantIndex.
func (b BBox) Octant(i int) BBox {
	c := b.Center()
	o := BBox{MinX: b.MinX, MinY: b.MinY, MinZ: b.MinZ, MaxX: c.X, MaxY: c.Y, MaxZ: c.Z}
	if i&1 != 0 {
		o.MinX, o.MaxX = c.X, b.MaxX
	}
	if i&2 != 0 {
		o.MinY, o.MaxY = c.Y, b.MaxY
	}
	if i&4 != 0 {
		o.MinZ, o.MaxZ = c.Z, b.MaxZ
	}
	return o
}

// String renders the box as "[minx,miny,minz]-[maxx,maxy,maxz]".
func (b BBox) String() string {
	return fmt.Sprintf("[%g,%g,%g]-[%g,%g,%g]", b.MinX, b.MinY, b.MinZ, b.MaxX, b.MaxY, b.MaxZ)
}
