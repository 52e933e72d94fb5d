package model

import (
	"fmt"
	"math"
)

// PointFormat describes which attributes a stored point carries.
type PointFormat uint8

const (
	// FormatXYZI stores coordinates and intensity.
	FormatXYZI PointFormat = 0
	// FormatXYZIT stores coordinates, intensity and acquisition time.
	FormatXYZIT PointFormat = 1
)

// String returns the name of the format.
func (f PointFormat) String() string {
	switch f {
	case FormatXYZI:
		return "xyzi"
	case FormatXYZIT:
		return "xyzit"
	default:
		return fmt.Sprintf("PointFormat(%d)", uint8(f))
	}
}

// Valid reports whether f is a known format.
func (f PointFormat) Valid() bool {
	return f == FormatXYZI || f == FormatXYZIT
}

// HasTime reports whether the format carries the time attribute.
func (f PointFormat) HasTime() bool {
	return f == FormatXYZIT
}

// Attribute identifies a numeric field of a Point.
type Attribute uint8

const (
	AttrX Attribute = iota
	AttrY
	AttrZ
	AttrIntensity
	AttrTime
)

var attributeNames = [...]string{"x", "y", "z", "intensity", "time"}

// String returns the lower-case attribute name.
func (a Attribute) String() string {
	if int(a) < len(attributeNames) {
		return attributeNames[a]
	}
	return fmt.Sprintf("Attribute(%d)", uint8(a))
}

// ParseAttribute resolves a lower-case attribute name.
func ParseAttribute(name string) (Attribute, error) {
	for i, n := range attributeNames {
		if n == name {
			return Attribute(i), nil
		}
	}
	return 0, fmt.Errorf("unknown attribute %q", name)
}

// Point is a single LiDAR return.
type Point struct {
	X, Y, Z   float64
	Intensity uint16
	// Time is only persisted for FormatXYZIT.
	Time float64
}

// Value returns the attribute a as float64.
func (p *Point) Value(a Attribute) float64 {
	switch a {
	case AttrX:
		return p.X
	case AttrY:
		return p.Y
	case AttrZ:
		return p.Z
	case AttrIntensity:
		return float64(p.Intensity)
	case AttrTime:
		return p.Time
	default:
		return math.NaN()
	}
}

// Finite reports whether all coordinates are finite numbers.
func (p *Point) Finite() bool {
	return isFinite(p.X) && isFinite(p.Y) && isFinite(p.Z)
}

// String returns a compact representation of the point.
func (p Point) String() string {
	return fmt.Sprintf("(%g, %g, %g; i=%d)", p.X, p.Y, p.Z, p.Intensity)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Scale is the fixed-point precision per axis.
type Scale struct {
	X, Y, Z float64
}

// DefaultScale stores longitude/latitude in micro-degrees and altitude in 0.1 mm.
var DefaultScale = Scale{X: 1e-6, Y: 1e-6, Z: 1e-4}

// Validate checks that every axis has a positive finite scale.
func (s Scale) Validate() error {
	for i, v := range [3]float64{s.X, s.Y, s.Z} {
		if !isFinite(v) || v <= 0 {
			return fmt.Errorf("scale on axis %c must be positive and finite, got %g", "xyz"[i], v)
		}
	}
	return nil
}

// Axis returns the scale of axis i (0=x, 1=y, 2=z).
func (s Scale) Axis(i int) float64 {
	switch i {
	case 0:
		return s.X
	case 1:
		return s.Y
	default:
		return s.Z
	}
}
