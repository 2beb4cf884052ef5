package segment

import (
	"math"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/tableseg/internal/cloud"
	"github.com/banshee-data/tableseg/internal/geom"
)

// gridBlock returns points on a regular grid filling [min, max] with the
// given spacing.
func gridBlock(min, max r3.Vector, step float64) []r3.Vector {
	var pts []r3.Vector
	nx := int(math.Round((max.X-min.X)/step)) + 1
	ny := int(math.Round((max.Y-min.Y)/step)) + 1
	nz := int(math.Round((max.Z-min.Z)/step)) + 1
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			for k := 0; k < nz; k++ {
				pts = append(pts, r3.Vector{
					X: min.X + float64(i)*step,
					Y: min.Y + float64(j)*step,
					Z: min.Z + float64(k)*step,
				})
			}
		}
	}
	return pts
}

// tableTop is a 1 m square table whose top face is at z = 0.71.
func tableTop() geom.OrientedBox {
	return geom.NewAxisAlignedBox(r3.Vector{X: -0.5, Y: -0.5, Z: 0.69}, r3.Vector{X: 0.5, Y: 0.5, Z: 0.71})
}

// frame packs pts into a structured cloud of the given width, padding the
// tail with invalid points.
func frame(width int, groups ...[]r3.Vector) *cloud.PointCloud {
	var all []r3.Vector
	for _, g := range groups {
		all = append(all, g...)
	}
	height := (len(all) + width - 1) / width
	if height == 0 {
		height = 1
	}
	for len(all) < height*width {
		all = append(all, cloud.InvalidPoint())
	}
	c, err := cloud.NewStructured(height, width, all)
	if err != nil {
		panic(err)
	}
	return c
}

// smallObject is a 5 x 2 x 1 cm block (10 cm³) resting on tableTop.
func smallObject(offset r3.Vector) []r3.Vector {
	return gridBlock(
		r3.Vector{X: 0, Y: 0, Z: 0.72}.Add(offset),
		r3.Vector{X: 0.05, Y: 0.02, Z: 0.73}.Add(offset),
		0.005,
	)
}

// floorClutter lies well below the table and must never be segmented.
func floorClutter() []r3.Vector {
	return gridBlock(r3.Vector{X: -0.2, Y: -0.2, Z: 0}, r3.Vector{X: 0.2, Y: 0.2, Z: 0.02}, 0.01)
}

func testParams() Params {
	return Params{
		ClusterRadius:    0.01,
		ClusterMinPoints: 3,
		MinObjectVolume:  1e-6,
		MaxObjectHeight:  0.3,
		LateralMargin:    DefaultLateralMargin,
		PlanePolicy:      FirstPlaneOnly,
	}
}
