package cloud

import "github.com/golang/geo/r3"

// Subset is a view of selected points of a parent set. Indices refer to the
// parent, so labels computed on the subset can be written back to the
// parent's pixels directly.
type Subset struct {
	parent  Points
	indices []int
}

// Select returns the subset of parent at the given indices. The index slice
// is retained, not copied.
func Select(parent Points, indices []int) Subset {
	return Subset{parent: parent, indices: indices}
}

// Len returns the number of selected points.
func (s Subset) Len() int { return len(s.indices) }

// At returns the i-th selected point.
func (s Subset) At(i int) r3.Vector { return s.parent.At(s.indices[i]) }

// Index returns the parent index of the i-th selected point.
func (s Subset) Index(i int) int { return s.indices[i] }

// Indices returns the parent indices. Callers must not modify the slice.
func (s Subset) Indices() []int { return s.indices }

// Parent returns the set the subset indexes into.
func (s Subset) Parent() Points { return s.parent }

// Where returns the subset of s whose labels equal label. labels is
// parallel to s.
func (s Subset) Where(labels []int, label int) Subset {
	var picked []int
	for i, l := range labels {
		if l == label {
			picked = append(picked, s.indices[i])
		}
	}
	return Subset{parent: s.parent, indices: picked}
}
