package segment

import (
	"errors"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/tableseg/internal/cloud"
	"github.com/banshee-data/tableseg/internal/geom"
)

// fitterTieTolerance is the relative volume margin a later candidate must win
// by to replace an earlier one, so upright boxes survive rounding noise.
const fitterTieTolerance = 1e-9

// ErrNoPoints is returned when a box is requested for an empty point set.
var ErrNoPoints = errors.New("cannot fit a box to zero points")

// BoundingVolumeFitter computes an oriented box enclosing a point set.
type BoundingVolumeFitter interface {
	Fit(pts cloud.Points) (geom.OrientedBox, error)
}

// MinimalBoxFitter fits a small-volume oriented box. It tries the working
// Z axis and the three principal axes of the point covariance as the box's
// third axis; for each it projects the points onto the perpendicular plane
// and runs rotating calipers over their convex hull, which is exact for that
// axis. The smallest candidate wins, with ties going to the earlier one, so
// upright boxes are preferred.
//
// Flat or collinear input yields zero extents along the degenerate axes.
type MinimalBoxFitter struct{}

// Verify at compile time that MinimalBoxFitter implements BoundingVolumeFitter.
var _ BoundingVolumeFitter = MinimalBoxFitter{}

// Fit returns the box. Invalid points are ignored; ErrNoPoints is returned if
// none are valid.
func (MinimalBoxFitter) Fit(pts cloud.Points) (geom.OrientedBox, error) {
	valid := make([]r3.Vector, 0, pts.Len())
	for i, n := 0, pts.Len(); i < n; i++ {
		if p := pts.At(i); cloud.IsValid(p) {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return geom.OrientedBox{}, ErrNoPoints
	}

	var mean r3.Vector
	for _, p := range valid {
		mean = mean.Add(p)
	}
	mean = mean.Mul(1 / float64(len(valid)))

	// Work relative to the mean for numerical stability.
	centred := make([]r3.Vector, len(valid))
	for i, p := range valid {
		centred[i] = p.Sub(mean)
	}

	best := boxAroundAxis(centred, r3.Vector{Z: 1})
	bestVol := best.Volume()
	for _, axis := range principalAxes(centred) {
		cand := boxAroundAxis(centred, axis)
		if v := cand.Volume(); v < bestVol*(1-fitterTieTolerance) {
			best, bestVol = cand, v
		}
	}

	best.Center = best.Center.Add(mean)
	return best, nil
}

// principalAxes returns the covariance eigenvectors, largest eigenvalue
// first. It returns nil if the decomposition fails.
func principalAxes(centred []r3.Vector) []r3.Vector {
	var c [6]float64 // xx, xy, xz, yy, yz, zz
	for _, p := range centred {
		c[0] += p.X * p.X
		c[1] += p.X * p.Y
		c[2] += p.X * p.Z
		c[3] += p.Y * p.Y
		c[4] += p.Y * p.Z
		c[5] += p.Z * p.Z
	}
	n := float64(len(centred))
	cov := mat.NewSymDense(3, []float64{
		c[0] / n, c[1] / n, c[2] / n,
		c[1] / n, c[3] / n, c[4] / n,
		c[2] / n, c[4] / n, c[5] / n,
	})

	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return nil
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	// Eigenvalues come back ascending.
	axes := make([]r3.Vector, 0, 3)
	for j := 2; j >= 0; j-- {
		v := r3.Vector{X: vecs.At(0, j), Y: vecs.At(1, j), Z: vecs.At(2, j)}
		if norm := v.Norm(); norm > 0 && !math.IsNaN(norm) {
			axes = append(axes, v.Mul(1/norm))
		}
	}
	return axes
}

// boxAroundAxis fits the minimal box whose third axis is up (a unit vector).
func boxAroundAxis(pts []r3.Vector, up r3.Vector) geom.OrientedBox {
	// Orthonormal basis (a, b, up) with a × b = up.
	helper := r3.Vector{Z: 1}
	if math.Abs(up.Z) > 0.9 {
		helper = r3.Vector{X: 1}
	}
	a := helper.Cross(up).Normalize()
	b := up.Cross(a)

	proj := make([]vec2, len(pts))
	minH, maxH := math.Inf(1), math.Inf(-1)
	for i, p := range pts {
		proj[i] = vec2{p.Dot(a), p.Dot(b)}
		h := p.Dot(up)
		minH, maxH = math.Min(minH, h), math.Max(maxH, h)
	}

	r := minAreaRect(convexHull(proj))

	// (dir, perp) is a counter-clockwise frame, so e1 × e2 = a × b = up.
	e1 := a.Mul(r.dir.x).Add(b.Mul(r.dir.y))
	e2 := a.Mul(r.perp.x).Add(b.Mul(r.perp.y))

	center := e1.Mul((r.minU + r.maxU) / 2).
		Add(e2.Mul((r.minV + r.maxV) / 2)).
		Add(up.Mul((minH + maxH) / 2))

	return geom.OrientedBox{
		Center:   center,
		Extent:   r3.Vector{X: r.maxU - r.minU, Y: r.maxV - r.minV, Z: maxH - minH},
		Rotation: geom.RotationFromAxes(e1, e2, up),
	}
}
