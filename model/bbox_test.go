package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBBox_Validate(t *testing.T) {
	tests := []struct {
		name    string
		box     BBox
		wantErr bool
	}{
		{"unit", NewBBox(0, 0, 0, 1, 1, 1), false},
		{"degenerate", NewBBox(1, 1, 1, 1, 1, 1), false},
		{"inverted x", NewBBox(2, 0, 0, 1, 1, 1), true},
		{"inverted z", NewBBox(0, 0, 5, 1, 1, 1), true},
		{"nan", NewBBox(math.NaN(), 0, 0, 1, 1, 1), true},
		{"inf", NewBBox(0, 0, 0, math.Inf(1), 1, 1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.box.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBBox_IntersectsTouchingFace(t *testing.T) {
	a := NewBBox(0, 0, 0, 1, 1, 1)
	b := NewBBox(1, 0, 0, 2, 1, 1)
	c := NewBBox(1.0000001, 0, 0, 2, 1, 1)

	assert.True(t, a.Intersects(b))
	assert.True(t, b.Intersects(a))
	assert.False(t, a.Intersects(c))

	corner := NewBBox(1, 1, 1, 1, 1, 1)
	assert.True(t, a.Intersects(corner))
}

func TestBBox_ContainsInclusive(t *testing.T) {
	b := NewBBox(0, 0, 0, 1, 1, 1)
	assert.True(t, b.Contains(&Point{X: 0, Y: 0, Z: 0}))
	assert.True(t, b.Contains(&Point{X: 1, Y: 1, Z: 1}))
	assert.False(t, b.Contains(&Point{X: 1.5, Y: 0.5, Z: 0.5}))

	d := NewBBox(2, 2, 2, 2, 2, 2)
	assert.True(t, d.Contains(&Point{X: 2, Y: 2, Z: 2}))
	assert.False(t, d.Contains(&Point{X: 2, Y: 2, Z: 2.0001}))
}

func TestBBox_Octants(t *testing.T) {
	b := NewBBox(0, 0, 0, 2, 4, 8)
	c := b.Center()
	assert.Equal(t, 1.0, c.X)
	assert.Equal(t, 2.0, c.Y)
	assert.Equal(t, 4.0, c.Z)

	for i := 0; i < 8; i++ {
		o := b.Octant(i)
		require.NoError(t, o.Validate())
		assert.True(t, b.ContainsBox(o), "octant %d", i)
	}
	assert.Equal(t, NewBBox(0, 0, 0, 1, 2, 4), b.Octant(0))
	assert.Equal(t, NewBBox(1, 2, 4, 2, 4, 8), b.Octant(7))
	assert.Equal(t, NewBBox(1, 0, 4, 2, 2, 8), b.Octant(5))
}

func TestOctantIndex_TieGoesLow(t *testing.T) {
	b := NewBBox(0, 0, 0, 2, 2, 2)
	c := b.Center()

	assert.Equal(t, 0, OctantIndex(&Point{X: 1, Y: 1, Z: 1}, c))
	assert.Equal(t, 1, OctantIndex(&Point{X: 1.5, Y: 1, Z: 1}, c))
	assert.Equal(t, 6, OctantIndex(&Point{X: 0, Y: 2, Z: 2}, c))

	for i := 0; i < 8; i++ {
		p := Point{X: 0.5, Y: 0.5, Z: 0.5}
		if i&1 != 0 {
			p.X = 1.5
		}
		if i&2 != 0 {
			p.Y = 1.5
		}
		if i&4 != 0 {
			p.Z = 1.5
		}
		idx := OctantIndex(&p, c)
		assert.Equal(t, i, idx)
		assert.True(t, b.Octant(idx).Contains(&p))
	}
}

func TestBuffer_Bounds(t *testing.T) {
	buf := NewBuffer(4)
	assert.True(t, buf.Bounds().IsEmpty())

	buf.Append(Point{X: 1, Y: -2, Z: 3}, Point{X: -1, Y: 5, Z: 0})
	assert.Equal(t, 2, buf.Len())
	assert.Equal(t, NewBBox(-1, -2, 0, 1, 5, 3), buf.Bounds())

	buf.Reset()
	assert.Equal(t, 0, buf.Len())
}

func TestPoint_Value(t *testing.T) {
	p := Point{X: 1, Y: 2, Z: 3, Intensity: 40, Time: 5.5}
	assert.Equal(t, 1.0, p.Value(AttrX))
	assert.Equal(t, 2.0, p.Value(AttrY))
	assert.Equal(t, 3.0, p.Value(AttrZ))
	assert.Equal(t, 40.0, p.Value(AttrIntensity))
	assert.Equal(t, 5.5, p.Value(AttrTime))
	assert.True(t, math.IsNaN(p.Value(Attribute(99))))

	a, err := ParseAttribute("intensity")
	require.NoError(t, err)
	assert.Equal(t, AttrIntensity, a)
	_, err = ParseAttribute("color")
	assert.Error(t, err)
}

func TestScale_Validate(t *testing.T) {
	assert.NoError(t, DefaultScale.Validate())
	assert.Error(t, Scale{X: 0, Y: 1, Z: 1}.Validate())
	assert.Error(t, Scale{X: 1, Y: -1, Z: 1}.Validate())
	assert.Error(t, Scale{X: 1, Y: 1, Z: math.Inf(1)}.Validate())
}
