// Package annotate packages a segmentation result as an image-annotation
// response: one class id, class name and pose per object plus the label
// image. The segmenter cannot classify, so every object is reported as
// UnknownClassID / UnknownClassName.
package annotate

import (
	"fmt"
	"math"

	"github.com/banshee-data/tableseg/internal/cloud"
	"github.com/banshee-data/tableseg/internal/geom"
	"github.com/banshee-data/tableseg/internal/segment"
)

const (
	UnknownClassID   = -1
	UnknownClassName = "Unknown"

	// LabelEncoding names the label image pixel format: signed 16-bit, one
	// channel.
	LabelEncoding = "16SC1"
)

// Pose is a position in metres and an orientation quaternion ordered
// x, y, z, w.
type Pose struct {
	Position    [3]float64 `json:"position"`
	Orientation [4]float64 `json:"orientation"`
}

// PixelRect is an image region: top-left pixel and size.
type PixelRect struct {
	Row    int `json:"row"`
	Col    int `json:"col"`
	Height int `json:"height"`
	Width  int `json:"width"`
}

// Object describes one accepted object. PixelBounds is set when the object's
// points index a structured cloud.
type Object struct {
	ID          int              `json:"id"`
	PlaneIndex  int              `json:"plane_index"`
	PointCount  int              `json:"point_count"`
	Volume      float64          `json:"volume"`
	Box         geom.OrientedBox `json:"box"`
	PixelBounds *PixelRect       `json:"pixel_bounds,omitempty"`
}

// LabelImage is the wire form of a segment.LabelImage.
type LabelImage struct {
	Height   int       `json:"height"`
	Width    int       `json:"width"`
	Encoding string    `json:"encoding"`
	Data     [][]int16 `json:"data"` // Height rows of Width labels
}

// Annotation is the response for one frame. ClassIDs, ClassNames, Poses and
// Objects are parallel and ordered by object id.
type Annotation struct {
	Status     string     `json:"status"`
	ClassIDs   []int32    `json:"class_ids"`
	ClassNames []string   `json:"class_names"`
	Poses      []Pose     `json:"pose_results"`
	Objects    []Object   `json:"objects"`
	Image      LabelImage `json:"image"`
}

// Succeeded reports whether any object was found. Callers mapping onto an
// action interface abort otherwise.
func (a *Annotation) Succeeded() bool {
	return a.Status == segment.KindObjects.String()
}

// FromResult builds the annotation for res.
func FromResult(res *segment.Result) (*Annotation, error) {
	if res == nil || res.Labels == nil {
		return nil, fmt.Errorf("annotate: empty result")
	}

	n := len(res.Objects)
	a := &Annotation{
		Status:     res.Kind.String(),
		ClassIDs:   make([]int32, n),
		ClassNames: make([]string, n),
		Poses:      make([]Pose, n),
		Objects:    make([]Object, n),
		Image: LabelImage{
			Height:   res.Labels.Height,
			Width:    res.Labels.Width,
			Encoding: LabelEncoding,
			Data:     res.Labels.Rows(),
		},
	}
	for i, o := range res.Objects {
		a.ClassIDs[i] = UnknownClassID
		a.ClassNames[i] = UnknownClassName
		a.Poses[i] = PoseFromBox(o.Box)
		a.Objects[i] = Object{
			ID:          o.ID,
			PlaneIndex:  o.PlaneIndex,
			PointCount:  o.Points.Len(),
			Volume:      o.Box.Volume(),
			Box:         o.Box,
			PixelBounds: pixelBounds(o.Points),
		}
	}
	return a, nil
}

// pixelBounds is the smallest rectangle holding every pixel of pts.
func pixelBounds(pts cloud.Subset) *PixelRect {
	pc, ok := pts.Parent().(*cloud.PointCloud)
	if !ok || !pc.IsStructured() || pts.Len() == 0 {
		return nil
	}
	minRow, minCol := math.MaxInt, math.MaxInt
	maxRow, maxCol := -1, -1
	for _, i := range pts.Indices() {
		row, col := pc.Pixel(i)
		minRow, maxRow = min(minRow, row), max(maxRow, row)
		minCol, maxCol = min(minCol, col), max(maxCol, col)
	}
	return &PixelRect{Row: minRow, Col: minCol, Height: maxRow - minRow + 1, Width: maxCol - minCol + 1}
}

// PoseFromBox returns the box centre and orientation.
func PoseFromBox(b geom.OrientedBox) Pose {
	q := b.Rotation.Quaternion()
	return Pose{
		Position:    [3]float64{b.Center.X, b.Center.Y, b.Center.Z},
		Orientation: [4]float64{q.Imag, q.Jmag, q.Kmag, q.Real},
	}
}
