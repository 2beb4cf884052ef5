package segment

import (
	"math"

	"github.com/banshee-data/tableseg/internal/cloud"
)

// EstimatedPointsPerCell is used for initial spatial index capacity estimation.
const EstimatedPointsPerCell = 4

// cellKey identifies one cube of the grid.
type cellKey struct {
	x, y, z int64
}

// SpatialIndex provides radius queries over a uniform 3-D grid.
// Cell size should match the query radius so a query only visits the 27
// cells around the query point.
type SpatialIndex struct {
	CellSize float64
	Grid     map[cellKey][]int // cell → point indices
}

// NewSpatialIndex creates a spatial index with the specified cell size.
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	return &SpatialIndex{
		CellSize: cellSize,
		Grid:     make(map[cellKey][]int),
	}
}

// Build populates the index from pts. Invalid points are not indexed.
func (si *SpatialIndex) Build(pts cloud.Points) {
	n := pts.Len()
	si.Grid = make(map[cellKey][]int, n/EstimatedPointsPerCell+1)
	for i := 0; i < n; i++ {
		p := pts.At(i)
		if !cloud.IsValid(p) {
			continue
		}
		key := si.cellOf(p.X, p.Y, p.Z)
		si.Grid[key] = append(si.Grid[key], i)
	}
}

func (si *SpatialIndex) cellOf(x, y, z float64) cellKey {
	return cellKey{
		x: int64(math.Floor(x / si.CellSize)),
		y: int64(math.Floor(y / si.CellSize)),
		z: int64(math.Floor(z / si.CellSize)),
	}
}

// RegionQuery returns the indices of all indexed points within eps of
// pts[idx], including idx itself. eps must not exceed CellSize.
// Results are ordered by cell then by index, so repeated queries agree.
func (si *SpatialIndex) RegionQuery(pts cloud.Points, idx int, eps float64) []int {
	p := pts.At(idx)
	eps2 := eps * eps
	base := si.cellOf(p.X, p.Y, p.Z)

	var neighbors []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			for dz := int64(-1); dz <= 1; dz++ {
				key := cellKey{x: base.x + dx, y: base.y + dy, z: base.z + dz}
				for _, candidateIdx := range si.Grid[key] {
					if pts.At(candidateIdx).Sub(p).Norm2() <= eps2 {
						neighbors = append(neighbors, candidateIdx)
					}
				}
			}
		}
	}
	return neighbors
}
