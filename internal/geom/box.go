package geom

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"
)

// ContainmentEpsilon is the slack, in metres, added to each half extent by
// Contains so that points lying on a face count as inside.
const ContainmentEpsilon = 1e-9

// ErrBadBoxDimensions is returned for boxes with negative or non-finite extents.
var ErrBadBoxDimensions = errors.New("box extents must be finite and non-negative")

// ErrBadRotation is returned when a box rotation is not a proper rotation.
var ErrBadRotation = errors.New("box rotation must be orthonormal with determinant +1")

// boxVertices lists the corners of the unit cube in a fixed order.
var boxVertices = [8]r3.Vector{
	{X: 1, Y: 1, Z: 1},
	{X: 1, Y: 1, Z: -1},
	{X: 1, Y: -1, Z: 1},
	{X: 1, Y: -1, Z: -1},
	{X: -1, Y: 1, Z: 1},
	{X: -1, Y: 1, Z: -1},
	{X: -1, Y: -1, Z: 1},
	{X: -1, Y: -1, Z: -1},
}

// OrientedBox is a rectangular prism with a centre, a full extent along each
// of its local axes, and a rotation taking local axes into the working frame.
type OrientedBox struct {
	Center   r3.Vector
	Extent   r3.Vector
	Rotation Rotation
}

// NewOrientedBox validates the extent and returns the box.
func NewOrientedBox(center, extent r3.Vector, rot Rotation) (OrientedBox, error) {
	b := OrientedBox{Center: center, Extent: extent, Rotation: rot}
	if err := b.Validate(); err != nil {
		return OrientedBox{}, err
	}
	return b, nil
}

// NewAxisAlignedBox returns an unrotated box spanning min..max.
func NewAxisAlignedBox(min, max r3.Vector) OrientedBox {
	return OrientedBox{
		Center:   min.Add(max).Mul(0.5),
		Extent:   max.Sub(min),
		Rotation: IdentityRotation,
	}
}

// Validate checks that the extents are finite and non-negative, the center
// is finite and the rotation is proper.
func (b OrientedBox) Validate() error {
	if !b.Rotation.IsProper() {
		return fmt.Errorf("%w: %v", ErrBadRotation, b.Rotation)
	}
	for i := 0; i < 3; i++ {
		e := Component(b.Extent, i)
		if e < 0 || math.IsNaN(e) || math.IsInf(e, 0) {
			return fmt.Errorf("%w: extent %v", ErrBadBoxDimensions, b.Extent)
		}
		c := Component(b.Center, i)
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("%w: center %v", ErrBadBoxDimensions, b.Center)
		}
	}
	return nil
}

// Volume is the product of the three extents.
func (b OrientedBox) Volume() float64 {
	return b.Extent.X * b.Extent.Y * b.Extent.Z
}

// HalfExtent returns half of Extent.
func (b OrientedBox) HalfExtent() r3.Vector {
	return b.Extent.Mul(0.5)
}

// ToLocal expresses p in the box frame (origin at Center).
func (b OrientedBox) ToLocal(p r3.Vector) r3.Vector {
	return b.Rotation.ApplyInverse(p.Sub(b.Center))
}

// FromLocal maps a box-frame point back into the working frame.
func (b OrientedBox) FromLocal(p r3.Vector) r3.Vector {
	return b.Rotation.Apply(p).Add(b.Center)
}

// Contains reports whether p lies inside the box or on its boundary.
// Points with NaN coordinates are never contained.
func (b OrientedBox) Contains(p r3.Vector) bool {
	l := b.ToLocal(p)
	h := b.HalfExtent()
	return math.Abs(l.X) <= h.X+ContainmentEpsilon &&
		math.Abs(l.Y) <= h.Y+ContainmentEpsilon &&
		math.Abs(l.Z) <= h.Z+ContainmentEpsilon
}

// Corners returns the eight box vertices in the working frame.
func (b OrientedBox) Corners() [8]r3.Vector {
	h := b.HalfExtent()
	var out [8]r3.Vector
	for i, v := range boxVertices {
		out[i] = b.FromLocal(r3.Vector{X: v.X * h.X, Y: v.Y * h.Y, Z: v.Z * h.Z})
	}
	return out
}

// VerticalAxis returns the index of the local axis most aligned with the
// working-frame Z axis and the sign (+1 or -1) that makes it point up.
func (b OrientedBox) VerticalAxis() (int, float64) {
	best, bestDot := 2, 0.0
	for i := 0; i < 3; i++ {
		d := b.Rotation.Axis(i).Z
		if math.Abs(d) > math.Abs(bestDot) {
			best, bestDot = i, d
		}
	}
	if bestDot < 0 {
		return best, -1
	}
	return best, 1
}

// CarveAbove derives the search volume for objects resting on b, treated as
// a table top. The two horizontal extents grow by margin; the vertical extent
// becomes height, with the base on b's top face. b itself is not modified.
func (b OrientedBox) CarveAbove(margin, height float64) OrientedBox {
	k, sign := b.VerticalAxis()
	up := b.Rotation.Axis(k).Mul(sign)

	top := b.Center.Add(up.Mul(Component(b.Extent, k) / 2))

	extent := b.Extent
	for i := 0; i < 3; i++ {
		if i == k {
			extent = WithComponent(extent, i, height)
		} else {
			extent = WithComponent(extent, i, Component(extent, i)+margin)
		}
	}

	return OrientedBox{
		Center:   top.Add(up.Mul(height / 2)),
		Extent:   extent,
		Rotation: b.Rotation,
	}
}
