package segment

import (
	"github.com/banshee-data/tableseg/internal/cloud"
	"github.com/banshee-data/tableseg/internal/geom"
)

// PointsInBox returns, in ascending order, the indices of pts that lie inside
// box (boundary inclusive). Indices are those of pts itself, never compacted.
// Invalid points are never inside.
func PointsInBox(box geom.OrientedBox, pts cloud.Points) []int {
	// Bounding-sphere reject before the exact local-frame test.
	r := box.HalfExtent().Norm() + geom.ContainmentEpsilon
	r2 := r * r

	var inside []int
	for i, n := 0, pts.Len(); i < n; i++ {
		p := pts.At(i)
		if p.Sub(box.Center).Norm2() > r2 {
			continue
		}
		if box.Contains(p) {
			inside = append(inside, i)
		}
	}
	return inside
}
