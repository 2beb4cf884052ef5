package segment

import (
	"fmt"
	"math"
	"sort"
)

// LabelImage is a flattened height×width image of object ids. Pixels that
// belong to no object hold Noise.
type LabelImage struct {
	Height int
	Width  int
	Labels []int16
}

// NewLabelImage returns a label image with every pixel set to Noise.
func NewLabelImage(height, width int) *LabelImage {
	labels := make([]int16, height*width)
	for i := range labels {
		labels[i] = Noise
	}
	return &LabelImage{Height: height, Width: width, Labels: labels}
}

// Len returns height*width.
func (li *LabelImage) Len() int { return len(li.Labels) }

// At returns the label at (row, col).
func (li *LabelImage) At(row, col int) int16 { return li.Labels[row*li.Width+col] }

// WriteLabels stores labels[i] at pixel indices[i] for every non-noise
// label; noise entries leave the pixel untouched. indices and labels are
// parallel.
func (li *LabelImage) WriteLabels(indices []int, labels []int) error {
	if len(indices) != len(labels) {
		return fmt.Errorf("label write: %d indices but %d labels", len(indices), len(labels))
	}
	for i, idx := range indices {
		l := labels[i]
		if l == Noise {
			continue
		}
		if idx < 0 || idx >= len(li.Labels) {
			return fmt.Errorf("label write: index %d outside image of %d pixels", idx, len(li.Labels))
		}
		if l < 0 || l > math.MaxInt16 {
			return fmt.Errorf("%w: %d", ErrLabelOverflow, l)
		}
		li.Labels[idx] = int16(l)
	}
	return nil
}

// Rows returns the image reshaped to height rows of width labels. The rows
// share storage with Labels.
func (li *LabelImage) Rows() [][]int16 {
	rows := make([][]int16, li.Height)
	for r := range rows {
		rows[r] = li.Labels[r*li.Width : (r+1)*li.Width]
	}
	return rows
}

// Count returns the number of pixels carrying id.
func (li *LabelImage) Count(id int) int {
	n := 0
	for _, l := range li.Labels {
		if int(l) == id {
			n++
		}
	}
	return n
}

// IDs returns the distinct non-noise ids present, ascending.
func (li *LabelImage) IDs() []int {
	seen := make(map[int]struct{})
	for _, l := range li.Labels {
		if l != Noise {
			seen[int(l)] = struct{}{}
		}
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
