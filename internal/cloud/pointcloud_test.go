package cloud

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tableseg/internal/geom"
)

func TestNewStructured_LayoutMismatch(t *testing.T) {
	_, err := NewStructured(2, 3, make([]r3.Vector, 5))
	if !errors.Is(err, ErrLayoutMismatch) {
		t.Fatalf("expected ErrLayoutMismatch, got %v", err)
	}
	c, err := NewStructured(2, 3, make([]r3.Vector, 6))
	require.NoError(t, err)
	assert.True(t, c.IsStructured())
	assert.False(t, New(make([]r3.Vector, 6)).IsStructured())

	row1, err := NewStructured(1, 4, make([]r3.Vector, 4))
	require.NoError(t, err)
	assert.True(t, row1.IsStructured(), "a single-row image still has a layout")
	assert.True(t, row1.Transform(geom.IdentityTransform).IsStructured())

	row, col := c.Pixel(4)
	assert.Equal(t, 1, row)
	assert.Equal(t, 1, col)
}

func TestRemoveInvalid_KeepsOriginIndices(t *testing.T) {
	pts := []r3.Vector{
		{X: 1},
		InvalidPoint(),
		{X: 2},
		{X: math.Inf(1)},
		{X: 3},
	}
	c := New(pts)
	assert.Equal(t, 3, c.CountValid())

	dense, origin := c.RemoveInvalid()
	assert.Equal(t, 3, dense.Len())
	if diff := cmp.Diff([]int{0, 2, 4}, origin); diff != "" {
		t.Errorf("origin mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 5, c.Len(), "source cloud must keep invalid points")
}

func TestTransform_PreservesLayoutAndInvalid(t *testing.T) {
	c, err := NewStructured(1, 2, []r3.Vector{{X: 1, Y: 2, Z: 3}, InvalidPoint()})
	require.NoError(t, err)

	T := geom.IdentityTransform
	T[11] = 10
	out := c.Transform(T)

	assert.Equal(t, r3.Vector{X: 1, Y: 2, Z: 13}, out.At(0))
	assert.False(t, IsValid(out.At(1)))
	assert.Equal(t, c.Height, out.Height)
	assert.Equal(t, c.Width, out.Width)
	assert.Equal(t, 3.0, c.At(0).Z, "source cloud must not change")
}

func TestSubset_IndexesIntoParent(t *testing.T) {
	c := New([]r3.Vector{{X: 0}, {X: 1}, {X: 2}, {X: 3}})
	s := Select(c, []int{3, 1})

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 3.0, s.At(0).X)
	assert.Equal(t, 1, s.Index(1))

	only := s.Where([]int{-1, 7}, 7)
	require.Equal(t, 1, only.Len())
	assert.Equal(t, 1, only.Index(0))
	assert.Equal(t, 1.0, only.At(0).X)
}

func TestBounds(t *testing.T) {
	c := New([]r3.Vector{{X: -1, Y: 0, Z: 2}, InvalidPoint(), {X: 1, Y: 4, Z: 0}})
	b, ok := c.Bounds()
	require.True(t, ok)
	assert.Equal(t, r3.Vector{X: 0, Y: 2, Z: 1}, b.Center)
	assert.Equal(t, r3.Vector{X: 2, Y: 4, Z: 2}, b.Extent)

	_, ok = New([]r3.Vector{InvalidPoint()}).Bounds()
	assert.False(t, ok)
}

func TestFromDepthImage(t *testing.T) {
	d := DepthImage{
		Width:  2,
		Height: 2,
		Depth:  []float64{1, 0, math.NaN(), 2},
	}
	in := Intrinsics{Fx: 1, Fy: 1, Cx: 0, Cy: 0}

	c, err := FromDepthImage(d, in)
	require.NoError(t, err)
	require.Equal(t, 4, c.Len())
	assert.Equal(t, 2, c.Height)

	assert.Equal(t, r3.Vector{X: 0, Y: 0, Z: 1}, c.At(0))
	assert.False(t, IsValid(c.At(1)), "zero depth is no return")
	assert.False(t, IsValid(c.At(2)), "NaN depth is no return")
	assert.Equal(t, r3.Vector{X: 2, Y: 2, Z: 2}, c.At(3))

	_, err = FromDepthImage(d, Intrinsics{})
	assert.ErrorIs(t, err, ErrBadIntrinsics)

	d.Depth = d.Depth[:3]
	_, err = FromDepthImage(d, in)
	assert.ErrorIs(t, err, ErrLayoutMismatch)
}

func TestReadDepthPNG(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 3, 1))
	img.SetGray16(0, 0, color.Gray16{Y: 1000})
	img.SetGray16(2, 0, color.Gray16{Y: 2500})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	d, err := ReadDepthPNG(&buf, DefaultDepthScale)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Width)
	assert.Equal(t, 1, d.Height)
	assert.InDelta(t, 1.0, d.Depth[0], 1e-12)
	assert.Equal(t, 0.0, d.Depth[1])
	assert.InDelta(t, 2.5, d.Depth[2], 1e-12)
}
