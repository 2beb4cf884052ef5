package segment

import (
	"math"
	"sort"
)

// vec2 is a point in a projection plane.
type vec2 struct{ x, y float64 }

func (a vec2) sub(b vec2) vec2      { return vec2{a.x - b.x, a.y - b.y} }
func (a vec2) dot(b vec2) float64   { return a.x*b.x + a.y*b.y }
func (a vec2) cross(b vec2) float64 { return a.x*b.y - a.y*b.x }

// convexHull returns the hull of pts in counter-clockwise order using
// Andrew's monotone chain. Collinear and duplicate points are dropped, so a
// degenerate input yields one or two points.
func convexHull(pts []vec2) []vec2 {
	switch len(pts) {
	case 0:
		return nil
	case 1:
		return []vec2{pts[0]}
	}
	sorted := make([]vec2, len(pts))
	copy(sorted, pts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].x != sorted[j].x {
			return sorted[i].x < sorted[j].x
		}
		return sorted[i].y < sorted[j].y
	})

	hull := make([]vec2, 0, 2*len(sorted))
	for _, p := range sorted {
		for len(hull) >= 2 && hull[len(hull)-1].sub(hull[len(hull)-2]).cross(p.sub(hull[len(hull)-2])) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(sorted) - 2; i >= 0; i-- {
		p := sorted[i]
		for len(hull) >= lower && hull[len(hull)-1].sub(hull[len(hull)-2]).cross(p.sub(hull[len(hull)-2])) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	hull = hull[:len(hull)-1]

	if len(hull) == 2 && hull[0] == hull[1] {
		hull = hull[:1]
	}
	return hull
}

// rect2 is an oriented rectangle in a projection plane: dir is its unit
// long-side direction, perp = dir rotated +90°, and the min/max values are
// coordinates along dir and perp.
type rect2 struct {
	dir, perp  vec2
	minU, maxU float64
	minV, maxV float64
}

func (r rect2) area() float64 { return (r.maxU - r.minU) * (r.maxV - r.minV) }

// minAreaRect finds the smallest-area rectangle enclosing a convex hull.
// One side of the optimum is collinear with a hull edge, so trying each edge
// direction (rotating calipers) is exact.
func minAreaRect(hull []vec2) rect2 {
	best := rect2{dir: vec2{1, 0}, perp: vec2{0, 1}}
	switch len(hull) {
	case 0:
		return best
	case 1:
		best.minU, best.maxU = hull[0].x, hull[0].x
		best.minV, best.maxV = hull[0].y, hull[0].y
		return best
	}

	bestArea := math.Inf(1)
	for i := range hull {
		e := hull[(i+1)%len(hull)].sub(hull[i])
		length := math.Hypot(e.x, e.y)
		if length == 0 {
			continue
		}
		dir := vec2{e.x / length, e.y / length}
		perp := vec2{-dir.y, dir.x}

		r := rect2{
			dir: dir, perp: perp,
			minU: math.Inf(1), maxU: math.Inf(-1),
			minV: math.Inf(1), maxV: math.Inf(-1),
		}
		for _, q := range hull {
			u, v := q.dot(dir), q.dot(perp)
			r.minU, r.maxU = math.Min(r.minU, u), math.Max(r.maxU, u)
			r.minV, r.maxV = math.Min(r.minV, v), math.Max(r.maxV, v)
		}
		if a := r.area(); a < bestArea {
			best, bestArea = r, a
		}
	}
	return best
}
