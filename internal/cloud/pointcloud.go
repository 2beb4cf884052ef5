package cloud

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/tableseg/internal/geom"
)

// ErrLayoutMismatch is returned when a structured layout does not match the
// number of points.
var ErrLayoutMismatch = errors.New("point count does not match height*width")

// Points is read-only indexed access to a set of 3-D points.
type Points interface {
	Len() int
	At(i int) r3.Vector
}

// PointCloud is an ordered arena of points. Height and Width describe the
// image layout the points came from; an unstructured cloud has Height 1.
type PointCloud struct {
	Height     int
	Width      int
	points     []r3.Vector
	structured bool
}

// New wraps points as an unstructured cloud. The slice is not copied.
func New(points []r3.Vector) *PointCloud {
	return &PointCloud{Height: 1, Width: len(points), points: points}
}

// NewStructured wraps points laid out row-major as height×width.
func NewStructured(height, width int, points []r3.Vector) (*PointCloud, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrLayoutMismatch, height, width)
	}
	if height*width != len(points) {
		return nil, fmt.Errorf("%w: %d points for %dx%d", ErrLayoutMismatch, len(points), height, width)
	}
	return &PointCloud{Height: height, Width: width, points: points, structured: true}, nil
}

// Len returns the number of points, including invalid ones.
func (c *PointCloud) Len() int { return len(c.points) }

// At returns point i.
func (c *PointCloud) At(i int) r3.Vector { return c.points[i] }

// IsStructured reports whether the cloud carries an image layout, so that
// point i maps to a pixel. A single-row image is structured; New is not.
func (c *PointCloud) IsStructured() bool { return c.structured }

// Pixel returns the (row, col) of point i in the image layout.
func (c *PointCloud) Pixel(i int) (row, col int) {
	return i / c.Width, i % c.Width
}

// IsValid reports whether every coordinate of p is finite.
func IsValid(p r3.Vector) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsNaN(p.Z) &&
		!math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0) && !math.IsInf(p.Z, 0)
}

// InvalidPoint is the placeholder stored for missing depth.
func InvalidPoint() r3.Vector {
	nan := math.NaN()
	return r3.Vector{X: nan, Y: nan, Z: nan}
}

// CountValid returns the number of finite points.
func (c *PointCloud) CountValid() int {
	n := 0
	for _, p := range c.points {
		if IsValid(p) {
			n++
		}
	}
	return n
}

// RemoveInvalid returns an unstructured copy without invalid points, and for
// each kept point its index in c.
func (c *PointCloud) RemoveInvalid() (*PointCloud, []int) {
	kept := make([]r3.Vector, 0, len(c.points))
	origin := make([]int, 0, len(c.points))
	for i, p := range c.points {
		if IsValid(p) {
			kept = append(kept, p)
			origin = append(origin, i)
		}
	}
	return New(kept), origin
}

// Transform returns a new cloud with every point mapped through T. Invalid
// points stay invalid and the layout is preserved.
func (c *PointCloud) Transform(T geom.Transform) *PointCloud {
	out := make([]r3.Vector, len(c.points))
	for i, p := range c.points {
		if !IsValid(p) {
			out[i] = InvalidPoint()
			continue
		}
		out[i] = T.Apply(p)
	}
	return &PointCloud{Height: c.Height, Width: c.Width, points: out, structured: c.structured}
}

// Bounds returns the axis-aligned box around the valid points, and false when
// there are none.
func (c *PointCloud) Bounds() (geom.OrientedBox, bool) {
	min := r3.Vector{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	max := r3.Vector{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	found := false
	for _, p := range c.points {
		if !IsValid(p) {
			continue
		}
		found = true
		min = r3.Vector{X: math.Min(min.X, p.X), Y: math.Min(min.Y, p.Y), Z: math.Min(min.Z, p.Z)}
		max = r3.Vector{X: math.Max(max.X, p.X), Y: math.Max(max.Y, p.Y), Z: math.Max(max.Z, p.Z)}
	}
	if !found {
		return geom.OrientedBox{}, false
	}
	return geom.NewAxisAlignedBox(min, max), true
}
